// Package digest は1日分のリンクを集約した日次ダイジェストの生成と配信を提供する。
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/moriyama/linkdigest/internal/ai"
	"github.com/moriyama/linkdigest/internal/alert"
	"github.com/moriyama/linkdigest/internal/metrics"
	"github.com/moriyama/linkdigest/internal/model"
	"github.com/moriyama/linkdigest/internal/repository"
)

// defaultMaxRetries は配信の初回失敗後に追加で試行する回数のデフォルト値。
const defaultMaxRetries = 2

// Deliverer はダイジェスト文書をチャットへ送信するインターフェース。
type Deliverer interface {
	SendDigest(ctx context.Context, chatID, content string) error
}

// Config はAggregatorの動作設定。
type Config struct {
	// TenantID は集約対象のテナント識別子。
	TenantID string
	// ChatIDs は配信先チャットのリスト。空の場合は永続化のみ行う。
	ChatIDs []string
	// MaxRetries は配信の初回失敗後の追加試行回数。負値の場合はデフォルト2を使用する。
	MaxRetries int
}

// Aggregator は当日のリンクを集約し、ダイジェストの生成・永続化・配信を統括する。
// 永続化は配信より先に必ず行う。配信に全滅しても生成済みダイジェストは失われない。
type Aggregator struct {
	links     repository.LinkRepository
	summaries repository.SummaryRepository
	digests   repository.DigestRepository
	gen       ai.Generator
	deliverer Deliverer
	recorder  metrics.Recorder
	notifier  alert.Notifier
	logger    *slog.Logger

	tenantID   string
	chatIDs    []string
	maxRetries int
}

// NewAggregator はAggregatorの新しいインスタンスを生成する。
func NewAggregator(
	links repository.LinkRepository,
	summaries repository.SummaryRepository,
	digests repository.DigestRepository,
	gen ai.Generator,
	deliverer Deliverer,
	recorder metrics.Recorder,
	notifier alert.Notifier,
	logger *slog.Logger,
	cfg Config,
) *Aggregator {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	return &Aggregator{
		links:      links,
		summaries:  summaries,
		digests:    digests,
		gen:        gen,
		deliverer:  deliverer,
		recorder:   recorder,
		notifier:   notifier,
		logger:     logger,
		tenantID:   cfg.TenantID,
		chatIDs:    cfg.ChatIDs,
		maxRetries: maxRetries,
	}
}

// DayWindow はnowを含むローカル日の[開始, 終了]を返す。
// 開始はその日の0時ちょうど、終了は23:59:59.999。
func DayWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.Add(24*time.Hour - time.Millisecond)
	return start, end
}

// Run はnowを含むローカル日のダイジェストを生成・永続化・配信する。
// 対象リンクが1件もない場合は何も生成せずに正常終了する。
// 配信失敗はチャット単位で上限付き即時リトライし、全試行が失敗しても
// エラーとしては伝播しない。生成・永続化の失敗のみエラーを返す。
func (a *Aggregator) Run(ctx context.Context, now time.Time) error {
	from, to := DayWindow(now)

	links, err := a.links.ListByDateRange(ctx, a.tenantID, from, to)
	if err != nil {
		return fmt.Errorf("当日リンクの取得に失敗しました: %w", err)
	}

	if len(links) == 0 {
		a.logger.Info("当日のリンクがないためダイジェスト生成をスキップします",
			slog.String("tenant_id", a.tenantID),
			slog.String("date", from.Format("2006-01-02")),
		)
		return nil
	}

	articles := a.collectArticles(ctx, links)

	body, err := a.gen.GenerateDailyDigest(ctx, articles)
	if err != nil {
		return fmt.Errorf("ダイジェスト本文の生成に失敗しました: %w", err)
	}

	content := GenerateMarkdown(body, from)

	record := &model.DailyDigest{
		ID:        uuid.NewString(),
		Content:   content,
		Date:      from,
		TenantID:  a.tenantID,
		Version:   model.DigestVersion,
		CreatedAt: now,
	}
	if err := a.digests.Create(ctx, record); err != nil {
		return fmt.Errorf("ダイジェストの永続化に失敗しました: %w", err)
	}

	a.logger.Info("ダイジェストを生成しました",
		slog.String("tenant_id", a.tenantID),
		slog.String("date", from.Format("2006-01-02")),
		slog.Int("link_count", len(links)),
	)

	for _, chatID := range a.chatIDs {
		a.deliver(ctx, chatID, content)
	}

	return nil
}

// collectArticles はリンクごとにタイトルと要約を解決する。
// タイトルが空の場合はURLで代替する。要約はリンクに記録済みの値を優先し、
// 空の場合のみ最新の要約レコードを検索する。それもなければ空文字とする。
func (a *Aggregator) collectArticles(ctx context.Context, links []*model.Link) []model.DigestArticle {
	articles := make([]model.DigestArticle, 0, len(links))
	for _, link := range links {
		title := link.Title
		if title == "" {
			title = link.URL
		}

		summaryText := link.Summary
		if summaryText == "" {
			summary, err := a.summaries.FindByLinkID(ctx, link.ID)
			if err != nil {
				a.logger.Warn("要約の解決に失敗したため空の要約を使用します",
					slog.String("link_id", link.ID),
					slog.String("error", err.Error()),
				)
			} else if summary != nil {
				summaryText = summary.Content
			}
		}

		articles = append(articles, model.DigestArticle{
			Title:   title,
			Summary: summaryText,
		})
	}
	return articles
}

// deliver は1チャットへの配信を上限付き即時リトライで行う。
// 全試行が失敗した場合はログとアラートのみで、エラーは伝播しない。
func (a *Aggregator) deliver(ctx context.Context, chatID, content string) {
	attempts := a.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := a.deliverer.SendDigest(ctx, chatID, content); err != nil {
			lastErr = err
			a.logger.Warn("ダイジェスト配信に失敗しました",
				slog.String("chat_id", chatID),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", attempts),
				slog.String("error", err.Error()),
			)
			continue
		}

		a.recorder.RecordDigestDelivery("success", a.tenantID)
		return
	}

	a.recorder.RecordDigestDelivery("failure", a.tenantID)
	a.logger.Error("ダイジェスト配信の試行回数を使い切りました",
		slog.String("chat_id", chatID),
		slog.Int("attempts", attempts),
		slog.String("error", lastErr.Error()),
	)
	a.notifier.Notify(fmt.Sprintf("每日摘要发送失败: %s (%v)", chatID, lastErr))
}
