package digest

import (
	"fmt"
	"time"
)

// GenerateMarkdown はダイジェスト本文をMarkdown文書へ整形する。
// 見出しの日付はISO形式（YYYY-MM-DD）で、本文は末尾に改行を1つ持つ。
// この形式はDigestVersion v1として固定されている。
func GenerateMarkdown(content string, date time.Time) string {
	return fmt.Sprintf("# 每日摘要 (%s)\n\n%s\n", date.Format("2006-01-02"), content)
}
