// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/moriyama/linkdigest/internal/model"
)

// LinkRepository はリンクデータの永続化インターフェース。
type LinkRepository interface {
	// FindByID は指定IDのリンクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Link, error)

	// FindByURL はテナント内でURLが一致するリンクを検索する。
	// 見つからない場合はnilを返す。
	FindByURL(ctx context.Context, tenantID, url string) (*model.Link, error)

	// Create はリンクを作成する。テナント内で同一URLが既に存在する場合は
	// updated_atのみ更新し、既存レコードを保持する。
	Create(ctx context.Context, link *model.Link) error

	// UpdateSummary はリンクの要約テキストを更新する。
	UpdateSummary(ctx context.Context, id, summary string) error

	// ListByDateRange はテナント内でcreated_atが[from, to]に含まれる
	// リンクを作成日時昇順で返す。
	ListByDateRange(ctx context.Context, tenantID string, from, to time.Time) ([]*model.Link, error)
}

// SummaryRepository は要約データの永続化インターフェース。
type SummaryRepository interface {
	// Create は要約を作成する。
	Create(ctx context.Context, summary *model.Summary) error

	// FindByLinkID は指定リンクの最新の要約を取得する。
	// 見つからない場合はnilを返す。
	FindByLinkID(ctx context.Context, linkID string) (*model.Summary, error)
}

// DigestRepository は日次ダイジェストの永続化インターフェース。
// ダイジェストは追記専用であり、更新・削除操作を持たない。
type DigestRepository interface {
	// Create はダイジェストを追記する。
	Create(ctx context.Context, digest *model.DailyDigest) error

	// FindLatestByDate は指定日のうち最も新しく作成されたダイジェストを
	// 取得する。見つからない場合はnilを返す。
	FindLatestByDate(ctx context.Context, tenantID string, date time.Time) (*model.DailyDigest, error)
}

// TenantSettingRepository はテナント設定の永続化インターフェース。
type TenantSettingRepository interface {
	// FindByTenantID は指定テナントの設定を取得する。見つからない場合はnilを返す。
	FindByTenantID(ctx context.Context, tenantID string) (*model.TenantSetting, error)

	// Create はテナント設定を作成する。
	Create(ctx context.Context, setting *model.TenantSetting) error

	// Update はテナント設定を更新する。
	Update(ctx context.Context, setting *model.TenantSetting) error
}

// UserSettingRepository はユーザー設定の永続化インターフェース。
type UserSettingRepository interface {
	// FindByUserID はテナント内の指定ユーザーの設定を取得する。
	// 見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, tenantID, userID string) (*model.UserSetting, error)

	// Create はユーザー設定を作成する。
	Create(ctx context.Context, setting *model.UserSetting) error

	// Update はユーザー設定を更新する。
	Update(ctx context.Context, setting *model.UserSetting) error
}
