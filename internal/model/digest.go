package model

import "time"

// DigestVersion は日次ダイジェストのテンプレートバージョン。
const DigestVersion = "v1"

// DailyDigest は1日分のリンクをまとめたダイジェスト文書。
// 追記専用の履歴であり、既存レコードを上書きすることはない。
type DailyDigest struct {
	ID        string
	Content   string
	Date      time.Time
	TenantID  string
	Version   string
	CreatedAt time.Time
}

// DigestArticle はダイジェスト生成に渡す1記事分の情報。
type DigestArticle struct {
	Title   string
	Summary string
}
