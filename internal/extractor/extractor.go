// Package extractor はメッセージテキストからのリンク抽出と分類を提供する。
// 抽出・正規化・プラットフォーム判定・セッション内重複排除を行う。
package extractor

import (
	"regexp"
	"strings"

	"github.com/moriyama/linkdigest/internal/model"
)

// urlPattern はURL形状の部分文字列を検出する寛容なパターン。
var urlPattern = regexp.MustCompile(`(?i)https?://[\w.-]+(?:\.[\w.-]+)+(?:[/?#][^\s]*)?`)

// platformPattern は既知プラットフォームのホストシグネチャ。
// Detectはこの順序で照合し、最初に一致したものを採用する。
type platformPattern struct {
	platform model.Platform
	pattern  *regexp.Regexp
}

var platformPatterns = []platformPattern{
	{model.PlatformWeixin, regexp.MustCompile(`(?i)^https?://mp\.weixin\.qq\.com/\S+`)},
	{model.PlatformZhihu, regexp.MustCompile(`(?i)^https?://(?:zhuanlan\.|www\.)?zhihu\.com/\S+`)},
	{model.PlatformBilibili, regexp.MustCompile(`(?i)^https?://(?:www\.)?bilibili\.com/\S+`)},
	{model.PlatformDouyin, regexp.MustCompile(`(?i)^https?://(?:v|www)\.douyin\.com/\S+`)},
	{model.PlatformXiaohongshu, regexp.MustCompile(`(?i)^https?://www\.xiaohongshu\.com/\S+`)},
}

// platformMeta はプラットフォームごとのカテゴリとタグの静的対応表。
// カテゴリはプラットフォームの純粋関数であり、外部状態に依存しない。
var platformMeta = map[model.Platform]struct {
	category model.Category
	tags     []string
}{
	model.PlatformWeixin:      {model.CategoryWork, []string{"article"}},
	model.PlatformZhihu:       {model.CategoryWork, []string{"article"}},
	model.PlatformBilibili:    {model.CategoryOther, []string{"video"}},
	model.PlatformDouyin:      {model.CategoryOther, []string{"video"}},
	model.PlatformXiaohongshu: {model.CategoryOther, []string{"social"}},
	model.PlatformUnknown:     {model.CategoryOther, []string{}},
}

// Extractor はテキストからリンクを抽出し、セッション内で重複を排除する。
// 重複排除メモリはインスタンスが明示的に所有する。会話/セッションごとに
// 1インスタンスを割り当てる想定で、テナント間で暗黙に共有してはならない。
// 単一ゴルーチンでの協調実行を前提とし、並列アクセスに対しては安全でない。
type Extractor struct {
	seen map[string]struct{}
}

// New はExtractorの新しいインスタンスを生成する。
func New() *Extractor {
	return &Extractor{
		seen: make(map[string]struct{}),
	}
}

// Extract はテキスト中のURLを抽出し、未出現の正規化URLごとに1件の
// ExtractedLinkを返す。空テキストは空スライスを返す。
// 同一スコープ内で既出のURLは黙ってスキップされる。エラーは返さない。
func (e *Extractor) Extract(text string) []model.ExtractedLink {
	if text == "" {
		return nil
	}

	matches := urlPattern.FindAllString(text, -1)
	results := make([]model.ExtractedLink, 0, len(matches))

	for _, raw := range matches {
		normalized := Normalize(raw)
		if _, ok := e.seen[normalized]; ok {
			continue
		}
		e.seen[normalized] = struct{}{}

		platform := DetectPlatform(normalized)
		meta := platformMeta[platform]
		results = append(results, model.ExtractedLink{
			URL:      normalized,
			Platform: platform,
			Category: meta.category,
			Tags:     meta.tags,
		})
	}

	return results
}

// Reset は重複排除メモリをクリアする。会話/セッション境界で呼び出す。
func (e *Extractor) Reset() {
	e.seen = make(map[string]struct{})
}

// Normalize はマッチしたURL文字列から末尾の句読点（全角句点を含む）を
// 除去する。正規化済みURLが重複排除とキャッシュのキーとなる。
func Normalize(raw string) string {
	return strings.TrimRight(raw, ".,。")
}

// DetectPlatform はURLのホストシグネチャからプラットフォームを判定する。
// 定義順に照合し最初の一致を返す。どれにも一致しない場合はunknownを返す。
// 全域的かつ決定的で、同一URLは常に同一の結果になる。
func DetectPlatform(url string) model.Platform {
	for _, pp := range platformPatterns {
		if pp.pattern.MatchString(url) {
			return pp.platform
		}
	}
	return model.PlatformUnknown
}

// Meta はプラットフォームに対応するカテゴリとタグを返す。
func Meta(platform model.Platform) (model.Category, []string) {
	meta, ok := platformMeta[platform]
	if !ok {
		meta = platformMeta[model.PlatformUnknown]
	}
	return meta.category, meta.tags
}
