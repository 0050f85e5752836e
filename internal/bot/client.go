// Package bot はFeishu（飞书）ボットのAPIクライアントとメッセージ処理を提供する。
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/moriyama/linkdigest/internal/model"
)

const (
	// defaultBaseURL はFeishu Open APIのベースURL。
	defaultBaseURL = "https://open.feishu.cn/open-apis"
	// tokenRefreshMargin はトークン失効前に再取得を始める余裕時間。
	tokenRefreshMargin = 5 * time.Minute
)

// Client はFeishu Open APIのクライアント。
// tenant_access_tokenを取得・キャッシュし、失効前に自動更新する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
	appID      string
	appSecret  string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合はFeishuの本番エンドポイントを使用する。
func NewClient(appID, appSecret, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		baseURL:    baseURL,
		appID:      appID,
		appSecret:  appSecret,
	}
}

// apiResponse はFeishu APIの共通レスポンスエンベロープ。
type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// tokenResponse はtenant_access_token取得APIのレスポンス。
type tokenResponse struct {
	apiResponse
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

// accessToken はキャッシュ済みのtenant_access_tokenを返す。
// 未取得または失効間近の場合は再取得する。
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenRefreshMargin)) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("トークンリクエストの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("トークンリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("tenant_access_tokenの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("トークンレスポンスのパースに失敗しました: %w", err)
	}
	if parsed.Code != 0 {
		return "", fmt.Errorf("トークンAPIがエラーを返しました: code=%d msg=%s", parsed.Code, parsed.Msg)
	}

	c.token = parsed.TenantAccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(parsed.Expire) * time.Second)
	return c.token, nil
}

// textContent はテキストメッセージのcontentフィールドをJSON文字列化する。
func textContent(text string) (string, error) {
	raw, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// SendMessage は指定チャットへテキストメッセージを送信する。
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	content, err := textContent(text)
	if err != nil {
		return model.NewDeliveryFailedError(chatID, err)
	}

	payload := map[string]string{
		"receive_id": chatID,
		"msg_type":   "text",
		"content":    content,
	}
	url := c.baseURL + "/im/v1/messages?receive_id_type=chat_id"
	if err := c.post(ctx, url, payload); err != nil {
		return model.NewDeliveryFailedError(chatID, err)
	}
	return nil
}

// ReplyMessage は指定メッセージへの返信としてテキストを送信する。
func (c *Client) ReplyMessage(ctx context.Context, messageID, text string) error {
	content, err := textContent(text)
	if err != nil {
		return model.NewDeliveryFailedError(messageID, err)
	}

	payload := map[string]string{
		"msg_type": "text",
		"content":  content,
	}
	url := c.baseURL + "/im/v1/messages/" + messageID + "/reply"
	if err := c.post(ctx, url, payload); err != nil {
		return model.NewDeliveryFailedError(messageID, err)
	}
	return nil
}

// SendDigest はダイジェスト文書を指定チャットへ送信する。
func (c *Client) SendDigest(ctx context.Context, chatID, content string) error {
	return c.SendMessage(ctx, chatID, content)
}

// post は認証付きPOSTを発行し、エンベロープのcodeが0以外ならエラーを返す。
func (c *Client) post(ctx context.Context, url string, payload any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Feishu APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("Feishu APIレスポンスのパースに失敗しました: %w", err)
	}
	if parsed.Code != 0 {
		c.logger.Error("Feishu APIがエラーを返しました",
			slog.Int("code", parsed.Code),
			slog.String("msg", parsed.Msg),
		)
		return fmt.Errorf("feishu api error: code=%d msg=%s", parsed.Code, parsed.Msg)
	}
	return nil
}
