// Package fetcher はページ取得とプレーンテキストへのクリーニングを提供する。
package fetcher

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/moriyama/linkdigest/internal/model"
	"github.com/moriyama/linkdigest/internal/security"
)

// defaultTimeout はコンテンツ取得のHTTPタイムアウト。
const defaultTimeout = 5 * time.Second

// whitespacePattern は連続する空白文字の正規化に使用する。
var whitespacePattern = regexp.MustCompile(`\s+`)

// Fetcher はページを取得し、クリーンなプレーンテキストへ縮約する。
// 結果はURLをキーにメモ化される。キャッシュはインスタンスが明示的に所有し、
// TTLや追い出しはなく、Clearによってのみ無効化される。
// 単一ゴルーチンでの協調実行を前提とし、並列アクセスに対しては安全でない。
type Fetcher struct {
	provider security.SafeClientProvider
	policy   *bluemonday.Policy
	logger   *slog.Logger
	timeout  time.Duration
	cache    map[string]string
}

// New はFetcherの新しいインスタンスを生成する。
// cacheがnilの場合は新しいマップを割り当てる。
// timeoutが0以下の場合はデフォルトの5秒を使用する。
func New(provider security.SafeClientProvider, logger *slog.Logger, timeout time.Duration, cache map[string]string) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if cache == nil {
		cache = make(map[string]string)
	}
	return &Fetcher{
		provider: provider,
		policy:   bluemonday.StrictPolicy(),
		logger:   logger,
		timeout:  timeout,
		cache:    cache,
	}
}

// Fetch はURLのクリーンなテキストを返す。キャッシュヒット時はネットワークに
// アクセスしない。ミス時はページを取得し、script/style/noscriptを除去した
// body本文をプレーンテキスト化して空白を正規化し、キャッシュして返す。
// ネットワーク・パースのあらゆる失敗はCONTENT_FETCH_FAILEDに正規化される。
// この層ではリトライしない。リトライは呼び出し元の責務。
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if text, ok := f.cache[url]; ok {
		return text, nil
	}

	if err := f.provider.ValidateURL(url); err != nil {
		return "", model.NewFetchFailedError(url, err)
	}

	client := f.provider.NewSafeClient(f.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", model.NewFetchFailedError(url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		f.logger.Warn("コンテンツ取得に失敗しました",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return "", model.NewFetchFailedError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", model.NewFetchFailedError(url, fmt.Errorf("http status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", model.NewFetchFailedError(url, err)
	}

	text := f.cleanDocument(doc)
	f.cache[url] = text
	return text, nil
}

// Clear はキャッシュを全消去する。唯一の無効化手段。
func (f *Fetcher) Clear() {
	clear(f.cache)
}

// CacheSize は現在のキャッシュ件数を返す。テストおよびメトリクス用。
func (f *Fetcher) CacheSize() int {
	return len(f.cache)
}

// cleanDocument はDOMからscript/style/noscriptを除去し、body本文を
// プレーンテキスト化する。残存マークアップはbluemondayで除去し、
// 連続空白を1つのスペースへ畳み込む。
func (f *Fetcher) cleanDocument(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()

	bodyHTML, err := doc.Find("body").Html()
	if err != nil {
		bodyHTML = ""
	}

	text := f.policy.Sanitize(bodyHTML)
	// StrictPolicyはテキストをHTMLエスケープして返すため実体参照を戻す
	text = html.UnescapeString(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
