package digest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/moriyama/linkdigest/internal/metrics"
	"github.com/moriyama/linkdigest/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// fakeLinkRepo は期間検索のみを実装するLinkRepository。
type fakeLinkRepo struct {
	links   []*model.Link
	listErr error
}

func (r *fakeLinkRepo) FindByID(context.Context, string) (*model.Link, error) { return nil, nil }
func (r *fakeLinkRepo) FindByURL(context.Context, string, string) (*model.Link, error) {
	return nil, nil
}
func (r *fakeLinkRepo) Create(context.Context, *model.Link) error {
	return nil
}
func (r *fakeLinkRepo) UpdateSummary(context.Context, string, string) error {
	return nil
}
func (r *fakeLinkRepo) ListByDateRange(_ context.Context, _ string, _, _ time.Time) ([]*model.Link, error) {
	return r.links, r.listErr
}

// fakeSummaryRepo はリンクIDに対応する要約を返すSummaryRepository。
type fakeSummaryRepo struct {
	byLinkID map[string]*model.Summary
	lookups  int
}

func (r *fakeSummaryRepo) Create(context.Context, *model.Summary) error { return nil }
func (r *fakeSummaryRepo) FindByLinkID(_ context.Context, linkID string) (*model.Summary, error) {
	r.lookups++
	return r.byLinkID[linkID], nil
}

// fakeDigestRepo は作成されたダイジェストを記録するDigestRepository。
type fakeDigestRepo struct {
	created   []*model.DailyDigest
	createErr error
}

func (r *fakeDigestRepo) Create(_ context.Context, digest *model.DailyDigest) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, digest)
	return nil
}
func (r *fakeDigestRepo) FindLatestByDate(context.Context, string, time.Time) (*model.DailyDigest, error) {
	return nil, nil
}

// fakeGenerator は渡された記事を記録し固定本文を返すGenerator。
type fakeGenerator struct {
	articles []model.DigestArticle
	body     string
	err      error
	calls    int
}

func (g *fakeGenerator) GenerateSummary(context.Context, string, model.SummaryStyle) (string, error) {
	return "", errors.New("not used")
}
func (g *fakeGenerator) GenerateDailyDigest(_ context.Context, articles []model.DigestArticle) (string, error) {
	g.calls++
	g.articles = articles
	return g.body, g.err
}

// fakeDeliverer は配信を記録し、指定回数失敗するDeliverer。
type fakeDeliverer struct {
	failures  int
	calls     int
	delivered []string
}

func (d *fakeDeliverer) SendDigest(_ context.Context, chatID, content string) error {
	d.calls++
	if d.calls <= d.failures {
		return errors.New("delivery failed")
	}
	d.delivered = append(d.delivered, chatID)
	return nil
}

// nopNotifier はテスト用の何もしないNotifier。
type nopNotifier struct{}

func (nopNotifier) Notify(string) {}

func newTestAggregator(links *fakeLinkRepo, summaries *fakeSummaryRepo, digests *fakeDigestRepo, gen *fakeGenerator, deliverer *fakeDeliverer, chats []string) *Aggregator {
	var buf bytes.Buffer
	return NewAggregator(links, summaries, digests, gen, deliverer,
		metrics.Nop{}, nopNotifier{}, newTestLogger(&buf),
		Config{TenantID: "default", ChatIDs: chats, MaxRetries: 2},
	)
}

func testLink(id, url, title string) *model.Link {
	return &model.Link{ID: id, URL: url, Title: title, TenantID: "default"}
}

func TestRun_NoLinksIsStrictNoOp(t *testing.T) {
	digests := &fakeDigestRepo{}
	gen := &fakeGenerator{body: "unused"}
	deliverer := &fakeDeliverer{}
	a := newTestAggregator(&fakeLinkRepo{}, &fakeSummaryRepo{}, digests, gen, deliverer, []string{"chat-1"})

	if err := a.Run(context.Background(), time.Now()); err != nil {
		t.Fatalf("リンク0件のRunがエラーを返した: %v", err)
	}

	if gen.calls != 0 {
		t.Errorf("リンク0件で生成が呼ばれた: %d回", gen.calls)
	}
	if len(digests.created) != 0 {
		t.Errorf("リンク0件でダイジェストが永続化された: %d件", len(digests.created))
	}
	if deliverer.calls != 0 {
		t.Errorf("リンク0件で配信が呼ばれた: %d回", deliverer.calls)
	}
}

func TestRun_GeneratesPersistsAndDelivers(t *testing.T) {
	links := &fakeLinkRepo{links: []*model.Link{
		testLink("l1", "https://example.com/a", "記事A"),
		testLink("l2", "https://example.com/b", ""),
	}}
	summaries := &fakeSummaryRepo{byLinkID: map[string]*model.Summary{
		"l1": {LinkID: "l1", Content: "要約A"},
	}}
	digests := &fakeDigestRepo{}
	gen := &fakeGenerator{body: "今日总结"}
	deliverer := &fakeDeliverer{}
	a := newTestAggregator(links, summaries, digests, gen, deliverer, []string{"chat-1"})

	now := time.Date(2023, 1, 2, 20, 0, 0, 0, time.Local)
	if err := a.Run(context.Background(), now); err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}

	// 記事解決: タイトルなしはURLで代替、要約なしは空文字
	if len(gen.articles) != 2 {
		t.Fatalf("生成に渡された記事数 = %d, want 2", len(gen.articles))
	}
	if gen.articles[0].Title != "記事A" || gen.articles[0].Summary != "要約A" {
		t.Errorf("articles[0] = %+v", gen.articles[0])
	}
	if gen.articles[1].Title != "https://example.com/b" {
		t.Errorf("タイトル欠損時のフォールバック = %s, want URL", gen.articles[1].Title)
	}
	if gen.articles[1].Summary != "" {
		t.Errorf("要約欠損時 = %q, want 空文字", gen.articles[1].Summary)
	}

	// 永続化される内容はテンプレート適用済み
	if len(digests.created) != 1 {
		t.Fatalf("永続化されたダイジェスト数 = %d, want 1", len(digests.created))
	}
	record := digests.created[0]
	want := "# 每日摘要 (2023-01-02)\n\n今日总结\n"
	if record.Content != want {
		t.Errorf("ダイジェスト本文 = %q, want %q", record.Content, want)
	}
	if record.Version != model.DigestVersion {
		t.Errorf("バージョン = %s, want %s", record.Version, model.DigestVersion)
	}

	if len(deliverer.delivered) != 1 || deliverer.delivered[0] != "chat-1" {
		t.Errorf("配信先 = %v, want [chat-1]", deliverer.delivered)
	}
}

func TestRun_InlineLinkSummaryPreferred(t *testing.T) {
	// リンクに要約が記録済みの場合は要約レコードを検索しない
	link := testLink("l1", "https://example.com/a", "記事A")
	link.Summary = "リンク側の要約"
	links := &fakeLinkRepo{links: []*model.Link{link}}
	summaries := &fakeSummaryRepo{byLinkID: map[string]*model.Summary{
		"l1": {LinkID: "l1", Content: "レコード側の要約"},
	}}
	gen := &fakeGenerator{body: "本文"}
	a := newTestAggregator(links, summaries, &fakeDigestRepo{}, gen, &fakeDeliverer{}, nil)

	if err := a.Run(context.Background(), time.Now()); err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}

	if gen.articles[0].Summary != "リンク側の要約" {
		t.Errorf("Summary = %q, want リンク側の要約", gen.articles[0].Summary)
	}
	if summaries.lookups != 0 {
		t.Errorf("記録済み要約があるのにレコード検索が行われた: %d回", summaries.lookups)
	}
}

func TestRun_GenerationFailureBlocksPersistence(t *testing.T) {
	links := &fakeLinkRepo{links: []*model.Link{testLink("l1", "https://example.com/a", "記事A")}}
	digests := &fakeDigestRepo{}
	gen := &fakeGenerator{err: errors.New("ai down")}
	deliverer := &fakeDeliverer{}
	a := newTestAggregator(links, &fakeSummaryRepo{}, digests, gen, deliverer, []string{"chat-1"})

	if err := a.Run(context.Background(), time.Now()); err == nil {
		t.Fatal("生成失敗時はエラーを返さなければならない")
	}

	if len(digests.created) != 0 {
		t.Errorf("生成失敗後にダイジェストが永続化された: %d件", len(digests.created))
	}
	if deliverer.calls != 0 {
		t.Errorf("生成失敗後に配信が呼ばれた: %d回", deliverer.calls)
	}
}

func TestRun_PersistHappensBeforeDelivery(t *testing.T) {
	links := &fakeLinkRepo{links: []*model.Link{testLink("l1", "https://example.com/a", "記事A")}}
	digests := &fakeDigestRepo{createErr: errors.New("db down")}
	gen := &fakeGenerator{body: "本文"}
	deliverer := &fakeDeliverer{}
	a := newTestAggregator(links, &fakeSummaryRepo{}, digests, gen, deliverer, []string{"chat-1"})

	if err := a.Run(context.Background(), time.Now()); err == nil {
		t.Fatal("永続化失敗時はエラーを返さなければならない")
	}
	if deliverer.calls != 0 {
		t.Errorf("永続化失敗後に配信が呼ばれた: %d回", deliverer.calls)
	}
}

func TestRun_DeliveryRetriesThenSucceeds(t *testing.T) {
	links := &fakeLinkRepo{links: []*model.Link{testLink("l1", "https://example.com/a", "記事A")}}
	gen := &fakeGenerator{body: "本文"}
	deliverer := &fakeDeliverer{failures: 2}
	a := newTestAggregator(links, &fakeSummaryRepo{}, &fakeDigestRepo{}, gen, deliverer, []string{"chat-1"})

	if err := a.Run(context.Background(), time.Now()); err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}

	// 2回失敗 + 1回成功 = 3回（MaxRetries=2の上限ちょうど）
	if deliverer.calls != 3 {
		t.Errorf("配信試行回数 = %d, want 3", deliverer.calls)
	}
	if len(deliverer.delivered) != 1 {
		t.Errorf("配信成功数 = %d, want 1", len(deliverer.delivered))
	}
}

func TestRun_DeliveryTotalFailureIsSwallowed(t *testing.T) {
	links := &fakeLinkRepo{links: []*model.Link{testLink("l1", "https://example.com/a", "記事A")}}
	digests := &fakeDigestRepo{}
	gen := &fakeGenerator{body: "本文"}
	deliverer := &fakeDeliverer{failures: 100}
	a := newTestAggregator(links, &fakeSummaryRepo{}, digests, gen, deliverer, []string{"chat-1"})

	if err := a.Run(context.Background(), time.Now()); err != nil {
		t.Fatalf("配信全滅でもRunはエラーを返してはならない: %v", err)
	}

	if deliverer.calls != 3 {
		t.Errorf("配信試行回数 = %d, want 3", deliverer.calls)
	}
	// 配信に失敗しても生成済みダイジェストは残る
	if len(digests.created) != 1 {
		t.Errorf("永続化されたダイジェスト数 = %d, want 1", len(digests.created))
	}
}

func TestRun_DigestContentContainsHeader(t *testing.T) {
	links := &fakeLinkRepo{links: []*model.Link{testLink("l1", "https://example.com/a", "記事A")}}
	digests := &fakeDigestRepo{}
	gen := &fakeGenerator{body: "本文"}
	a := newTestAggregator(links, &fakeSummaryRepo{}, digests, gen, &fakeDeliverer{}, nil)

	if err := a.Run(context.Background(), time.Now()); err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}

	if !strings.HasPrefix(digests.created[0].Content, "# 每日摘要 (") {
		t.Errorf("ダイジェストの見出しが不正: %q", digests.created[0].Content)
	}
}
