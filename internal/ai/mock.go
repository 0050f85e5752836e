package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/moriyama/linkdigest/internal/model"
)

// MockGenerator は外部APIを呼び出さずに決定的なテキストを返すGenerator。
// デモ環境およびAPIキーなしでの動作確認に使用する。
type MockGenerator struct{}

var _ Generator = (*MockGenerator)(nil)

// NewMockGenerator はMockGeneratorを生成する。
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// GenerateSummary は固定のモック要約を返す。
func (g *MockGenerator) GenerateSummary(_ context.Context, _ string, style model.SummaryStyle) (string, error) {
	if style == model.StyleParagraph {
		return "这是一段演示摘要，未调用真实的 AI 接口。", nil
	}
	return "• 这是一段演示摘要，未调用真实的 AI 接口。", nil
}

// GenerateDailyDigest は記事タイトルを箇条書きにしたモック本文を返す。
func (g *MockGenerator) GenerateDailyDigest(_ context.Context, articles []model.DigestArticle) (string, error) {
	var b strings.Builder
	b.WriteString("今日收录内容：\n")
	for i, article := range articles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, article.Title)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
