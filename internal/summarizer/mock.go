package summarizer

import (
	"fmt"

	"github.com/moriyama/linkdigest/internal/model"
)

// MockSummary はネットワークに依存しない決定的なモック要約を返す。
// デモ環境および外部APIキーなしでの動作確認に使用する。
func MockSummary(url string, style model.SummaryStyle) string {
	if style == model.StyleBullet {
		return fmt.Sprintf("• 这是 %s 的摘要演示", url)
	}
	return fmt.Sprintf("这是 %s 的摘要演示", url)
}
