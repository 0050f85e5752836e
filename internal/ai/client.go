// Package ai はOpenAI互換のチャット補完APIによるテキスト生成を提供する。
// 記事要約・日次ダイジェスト・記事タイプ分析の3操作を持ち、
// 上流のあらゆる失敗をGENERATION_FAILEDの1形状へ正規化する。
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/moriyama/linkdigest/internal/model"
)

// Generator はAIテキスト生成のインターフェース。
// SummarizerとDigestAggregatorから利用する。
type Generator interface {
	// GenerateSummary はコンテンツの要約を指定スタイルで生成する。
	GenerateSummary(ctx context.Context, content string, style model.SummaryStyle) (string, error)

	// GenerateDailyDigest は記事リストから日次ダイジェスト本文を生成する。
	GenerateDailyDigest(ctx context.Context, articles []model.DigestArticle) (string, error)
}

// TypeAnalysis は記事タイプ分析の結果。
type TypeAnalysis struct {
	IsWorkRelated bool   `json:"isWorkRelated"`
	Reason        string `json:"reason"`
}

// Config はClientの接続設定。
type Config struct {
	BaseURL    string
	Model      string
	APIKey     string
	RatePerMin float64
	RateBurst  int
}

// Client はOpenAI互換APIのクライアント。
// rate.Limiterで外部API呼び出しを平準化する。
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var _ Generator = (*Client)(nil)

// NewClient はClientの新しいインスタンスを生成する。
// RatePerMinが0以下の場合はレート制限を実質無効（毎分600回）とする。
func NewClient(cfg Config, logger *slog.Logger) *Client {
	perMin := cfg.RatePerMin
	if perMin <= 0 {
		perMin = 600
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(perMin/60.0), burst),
		logger:  logger,
	}
}

// chatRequest はチャット補完APIのリクエストボディ。
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *formatSpec   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type formatSpec struct {
	Type string `json:"type"`
}

// chatResponse はチャット補完APIのレスポンスボディ。
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateSummary はコンテンツの要約を生成する。
// styleがbulletの場合は箇条書き、paragraphの場合は段落形式を指示する。
func (c *Client) GenerateSummary(ctx context.Context, content string, style model.SummaryStyle) (string, error) {
	styleText := "请用条目形式"
	if style == model.StyleParagraph {
		styleText = "请用简洁段落"
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf("你是一个专业的文章摘要生成助手。%s总结文章的主要内容，突出关键信息。", styleText)},
			{Role: "user", Content: fmt.Sprintf("请为以下文章生成摘要：\n\n%s", content)},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	}

	text, err := c.complete(ctx, req)
	if err != nil {
		return "", model.NewGenerationFailedError("summary", err)
	}
	return text, nil
}

// GenerateDailyDigest は記事リストから日次ダイジェスト本文を生成する。
// 記事は「{n}. {title}\n{summary}」形式の番号付きリストとして渡す。
func (c *Client) GenerateDailyDigest(ctx context.Context, articles []model.DigestArticle) (string, error) {
	var b strings.Builder
	for i, article := range articles {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s\n%s", i+1, article.Title, article.Summary)
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "你是一个专业的每日摘要生成助手。请根据提供的文章列表，生成一份结构清晰、重点突出的每日摘要。"},
			{Role: "user", Content: fmt.Sprintf("请根据以下文章生成每日摘要：\n\n%s", b.String())},
		},
		Temperature: 0.7,
		MaxTokens:   1000,
	}

	text, err := c.complete(ctx, req)
	if err != nil {
		return "", model.NewGenerationFailedError("daily_digest", err)
	}
	return text, nil
}

// AnalyzeArticleType はコンテンツが業務関連かどうかを分析する。
func (c *Client) AnalyzeArticleType(ctx context.Context, content string) (*TypeAnalysis, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: `你是一个文章分类助手。请分析文章内容，判断它是否与工作相关。返回 JSON 格式：{"isWorkRelated": true/false, "reason": "原因"}`},
			{Role: "user", Content: fmt.Sprintf("请分析以下文章是否与工作相关：\n\n%s", content)},
		},
		Temperature:    0.3,
		MaxTokens:      200,
		ResponseFormat: &formatSpec{Type: "json_object"},
	}

	text, err := c.complete(ctx, req)
	if err != nil {
		return nil, model.NewGenerationFailedError("article_type", err)
	}

	var analysis TypeAnalysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return nil, model.NewGenerationFailedError("article_type", err)
	}
	return &analysis, nil
}

// complete はチャット補完APIを呼び出し、先頭choiceの本文を返す。
func (c *Client) complete(ctx context.Context, payload chatRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("AI APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("AI APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("ai api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty content in response")
	}
	return text, nil
}
