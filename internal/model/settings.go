package model

import "time"

const (
	// DefaultDigestTime は日次ダイジェスト送信時刻のデフォルト値（HH:MM）。
	DefaultDigestTime = "20:00"
)

// TenantSetting はテナント単位の設定。
type TenantSetting struct {
	ID           string
	TenantID     string
	DigestTime   string
	EnabledChats []string
	SummaryStyle SummaryStyle
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSetting はユーザー単位の設定。テナント設定を上書きする。
type UserSetting struct {
	ID           string
	UserID       string
	TenantID     string
	DigestTime   string
	EnabledChats []string
	SummaryStyle SummaryStyle
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
