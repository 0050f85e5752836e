// Package model はドメインモデルを定義する。
package model

import "time"

// Platform はリンクの配信元プラットフォームを表す。
type Platform string

const (
	// PlatformWeixin は微信公衆号の記事。
	PlatformWeixin Platform = "weixin"
	// PlatformZhihu は知乎の記事・回答。
	PlatformZhihu Platform = "zhihu"
	// PlatformBilibili はbilibiliの動画。
	PlatformBilibili Platform = "bilibili"
	// PlatformDouyin は抖音の動画。
	PlatformDouyin Platform = "douyin"
	// PlatformXiaohongshu は小紅書の投稿。
	PlatformXiaohongshu Platform = "xiaohongshu"
	// PlatformUnknown はパターンに一致しないプラットフォーム。
	PlatformUnknown Platform = "unknown"
)

// Category はリンクの分類を表す。プラットフォームから一意に決まる。
type Category string

const (
	// CategoryWork は業務関連のリンク。
	CategoryWork Category = "work"
	// CategoryOther は業務外のリンク。
	CategoryOther Category = "other"
)

// SummaryStyle は要約の出力形式を表す。
type SummaryStyle string

const (
	// StyleBullet は箇条書き形式。デフォルト。
	StyleBullet SummaryStyle = "bullet"
	// StyleParagraph は段落形式。
	StyleParagraph SummaryStyle = "paragraph"
)

// ExtractedLink はメッセージテキストから抽出された1件のリンク。
// URLは末尾の句読点を除去した正規化済みの値で、重複排除のキーとなる。
type ExtractedLink struct {
	URL      string
	Platform Platform
	Category Category
	Tags     []string
}

// ValidationResult はリンク到達性検証の結果。呼び出しごとに生成される。
type ValidationResult struct {
	Valid  bool
	Status int
	Type   Platform
	Title  string
}

// Link は永続化されるリンクレコード。
// URLはテナント内で一意。Summaryは要約生成後に埋められる。
type Link struct {
	ID        string
	URL       string
	Platform  Platform
	Category  Category
	Title     string
	Summary   string
	TenantID  string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary は生成済み要約の永続化レコード。
type Summary struct {
	ID        string
	LinkID    string
	Content   string
	Style     SummaryStyle
	TenantID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
