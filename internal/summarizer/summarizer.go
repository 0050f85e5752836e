// Package summarizer はコンテンツ取得とAI要約のオーケストレーションを提供する。
// 上限付きリトライ、メトリクス計測、失敗時のアラート送出を担う。
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/moriyama/linkdigest/internal/ai"
	"github.com/moriyama/linkdigest/internal/alert"
	"github.com/moriyama/linkdigest/internal/metrics"
	"github.com/moriyama/linkdigest/internal/model"
)

// defaultMaxRetries は初回失敗後に追加で試行する回数のデフォルト値。
const defaultMaxRetries = 2

// ContentSource はURLからクリーンなテキストを取得するインターフェース。
type ContentSource interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// outcome は1回の生成試行の分類結果。
type outcome int

const (
	// outcomeSuccess は試行成功。値が確定した。
	outcomeSuccess outcome = iota
	// outcomeRetryable は試行失敗。残り試行があれば即時リトライする。
	outcomeRetryable
	// outcomeExhausted は試行失敗かつ残り試行なし。最終エラーを再送出する。
	outcomeExhausted
)

// Config はSummarizerの動作設定。
type Config struct {
	// MaxRetries は初回失敗後の追加試行回数。負値の場合はデフォルト2を使用する。
	MaxRetries int
	// DefaultStyle は呼び出しごとの指定がない場合の要約スタイル。
	DefaultStyle model.SummaryStyle
	// MockMode が有効な場合、ネットワークに一切アクセスせず決定的な
	// モック要約を返す。
	MockMode bool
	// TenantID はメトリクスのラベルに使用するテナント識別子。
	TenantID string
}

// Summarizer はURLの要約生成を統括する。
// 部分的な要約を返すことはなく、完全な値か伝播された失敗のどちらかになる。
type Summarizer struct {
	source   ContentSource
	gen      ai.Generator
	recorder metrics.Recorder
	notifier alert.Notifier
	logger   *slog.Logger

	maxRetries   int
	defaultStyle model.SummaryStyle
	mockMode     bool
	tenantID     string
}

// New はSummarizerの新しいインスタンスを生成する。
func New(source ContentSource, gen ai.Generator, recorder metrics.Recorder, notifier alert.Notifier, logger *slog.Logger, cfg Config) *Summarizer {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	style := cfg.DefaultStyle
	if style == "" {
		style = model.StyleBullet
	}
	return &Summarizer{
		source:       source,
		gen:          gen,
		recorder:     recorder,
		notifier:     notifier,
		logger:       logger,
		maxRetries:   maxRetries,
		defaultStyle: style,
		mockMode:     cfg.MockMode,
		tenantID:     cfg.TenantID,
	}
}

// Summarize はURLのコンテンツを取得し、AI要約を生成して返す。
// styleが空の場合はインスタンスのデフォルトスタイルを使用する。
// 生成は失敗のたびに待機なしで即時リトライし、最大でMaxRetries+1回試行する。
// 全試行が失敗した場合は最終エラーを返し、URLと失敗理由を含むアラートを
// ノンブロッキングで送出する。
func (s *Summarizer) Summarize(ctx context.Context, url string, style model.SummaryStyle) (string, error) {
	if style == "" {
		style = s.defaultStyle
	}

	if s.mockMode {
		return MockSummary(url, style), nil
	}

	content, err := s.source.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	attempts := s.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		summary, err := s.gen.GenerateSummary(ctx, content, style)
		duration := time.Since(start)

		switch s.classify(err, attempt, attempts) {
		case outcomeSuccess:
			s.recorder.RecordSummarySuccess(s.tenantID)
			s.recorder.RecordSummaryDuration(duration)
			return summary, nil

		case outcomeRetryable:
			lastErr = err
			s.recorder.RecordSummaryFailure(s.tenantID, "generation")
			s.logger.Warn("要約生成に失敗しました。リトライします",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", attempts),
				slog.String("error", err.Error()),
			)

		case outcomeExhausted:
			lastErr = err
			s.recorder.RecordSummaryFailure(s.tenantID, "generation")
			s.logger.Error("要約生成の試行回数を使い切りました",
				slog.String("url", url),
				slog.Int("attempts", attempts),
				slog.String("error", err.Error()),
			)
			s.notifier.Notify(fmt.Sprintf("摘要生成失败: %s (%v)", url, err))
			return "", lastErr
		}
	}

	// attempts >= 1 のため到達しない
	return "", lastErr
}

// classify は試行結果を成功・リトライ可・枯渇のいずれかに分類する。
func (s *Summarizer) classify(err error, attempt, attempts int) outcome {
	if err == nil {
		return outcomeSuccess
	}
	if attempt < attempts {
		return outcomeRetryable
	}
	return outcomeExhausted
}
