// Package alert は運用アラートのfire-and-forget通知を提供する。
//
// 通知はバッファ付きチャネル経由でバックグラウンドゴルーチンに渡されるため、
// 呼び出し側をブロックすることも、呼び出し側のエラー経路を変えることもない。
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Notifier はアラート通知のインターフェース。
type Notifier interface {
	// Notify はアラートメッセージを送出する。ブロックせず、失敗しても
	// 呼び出し側には伝播しない。
	Notify(message string)
}

// queueSize は送信待ちアラートの上限。あふれた分は破棄される。
const queueSize = 64

// WebhookNotifier はWebhook URLへアラートをPOSTするNotifierの実装。
type WebhookNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
	queue      chan string
	stopCh     chan struct{}
}

var _ Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier はWebhookNotifierの新しいインスタンスを生成し、
// バックグラウンドの送信ゴルーチンを開始する。
// webhookURLが空の場合、通知は警告ログのみで破棄される。
func NewWebhookNotifier(webhookURL string, logger *slog.Logger) *WebhookNotifier {
	n := &WebhookNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		queue:      make(chan string, queueSize),
		stopCh:     make(chan struct{}),
	}

	go n.sendLoop()

	return n
}

// Notify はアラートメッセージをキューに積む。キューが満杯の場合は破棄する。
func (n *WebhookNotifier) Notify(message string) {
	select {
	case n.queue <- message:
	default:
		n.logger.Warn("アラートキューが満杯のため通知を破棄しました")
	}
}

// Stop はバックグラウンドの送信ゴルーチンを停止する。
func (n *WebhookNotifier) Stop() {
	close(n.stopCh)
}

// sendLoop はキューからアラートを取り出してWebhookへ送信する。
func (n *WebhookNotifier) sendLoop() {
	for {
		select {
		case message := <-n.queue:
			n.send(message)
		case <-n.stopCh:
			return
		}
	}
}

// send は1件のアラートをWebhookへPOSTする。失敗はログのみ。
func (n *WebhookNotifier) send(message string) {
	if n.webhookURL == "" {
		n.logger.Warn("アラートWebhookが未設定です",
			slog.String("message", message),
		)
		return
	}

	body, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		n.logger.Error("アラートペイロードの生成に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("アラートリクエストの作成に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("アラート通知の送信に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		n.logger.Error("アラートWebhookがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
	}
}

// NopNotifier は何もしないNotifier。テスト用。
type NopNotifier struct{}

var _ Notifier = NopNotifier{}

// Notify は何もしない。
func (NopNotifier) Notify(string) {}
