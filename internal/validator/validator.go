// Package validator はリンクの到達性検証とタイトル取得を提供する。
package validator

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/moriyama/linkdigest/internal/model"
	"github.com/moriyama/linkdigest/internal/security"
)

// defaultTimeout は到達性検証のHTTPタイムアウト。
const defaultTimeout = 5 * time.Second

// maxBodySize はタイトル取得のために読み込むレスポンスの上限バイト数。
const maxBodySize = 1 << 20

// platformPatterns はプラットフォーム判定のホストシグネチャ。
// extractorパッケージにも同じ表があるが、モジュール間を疎結合に保つため
// 意図的に複製している。
var platformPatterns = []struct {
	platform model.Platform
	pattern  *regexp.Regexp
}{
	{model.PlatformWeixin, regexp.MustCompile(`(?i)^https?://mp\.weixin\.qq\.com/\S+`)},
	{model.PlatformZhihu, regexp.MustCompile(`(?i)^https?://(?:zhuanlan\.|www\.)?zhihu\.com/\S+`)},
	{model.PlatformBilibili, regexp.MustCompile(`(?i)^https?://(?:www\.)?bilibili\.com/\S+`)},
	{model.PlatformDouyin, regexp.MustCompile(`(?i)^https?://(?:v|www)\.douyin\.com/\S+`)},
	{model.PlatformXiaohongshu, regexp.MustCompile(`(?i)^https?://www\.xiaohongshu\.com/\S+`)},
}

// Validator はリンクの到達性を検証し、ページタイトルを取得する。
// あらゆるネットワーク障害はvalid=falseの結果に変換され、エラーは返さない。
type Validator struct {
	provider security.SafeClientProvider
	logger   *slog.Logger
	timeout  time.Duration
}

// New はValidatorの新しいインスタンスを生成する。
// timeoutが0以下の場合はデフォルトの5秒を使用する。
func New(provider security.SafeClientProvider, logger *slog.Logger, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Validator{
		provider: provider,
		logger:   logger,
		timeout:  timeout,
	}
}

// Validate はURLへ時間制限付きの到達性フェッチを行う。
// 成功時はvalid=true、HTTPステータス、<title>タグから取得したタイトル
// （なければ空文字列）を返す。失敗時はvalid=false、取得できた場合のみ
// ステータス（なければ0）、空タイトルを返す。
func (v *Validator) Validate(ctx context.Context, rawURL string) model.ValidationResult {
	result := model.ValidationResult{
		Type: detectPlatform(rawURL),
	}

	if err := v.provider.ValidateURL(rawURL); err != nil {
		v.logger.Warn("URL検証に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return result
	}

	client := v.provider.NewSafeClient(v.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return result
	}

	resp, err := client.Do(req)
	if err != nil {
		v.logger.Warn("到達性フェッチに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return result
	}
	defer resp.Body.Close()

	result.Status = resp.StatusCode
	if resp.StatusCode >= http.StatusBadRequest {
		return result
	}

	result.Valid = true

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		// 到達性は確認済みのため、タイトルなしの成功として扱う
		return result
	}
	result.Title = scrapeTitle(string(body))

	return result
}

// detectPlatform はURLのホストシグネチャからプラットフォームを判定する。
func detectPlatform(url string) model.Platform {
	for _, pp := range platformPatterns {
		if pp.pattern.MatchString(url) {
			return pp.platform
		}
	}
	return model.PlatformUnknown
}

// scrapeTitle はHTMLから最初の<title>要素のテキストを取得する。
// パース失敗やtitle欠落の場合は空文字列を返す。
func scrapeTitle(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var title string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)

	return title
}
