// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/moriyama/linkdigest/internal/model"
)

// EventDispatcher は受信イベントを処理系へ引き渡すインターフェース。
type EventDispatcher interface {
	Dispatch(ctx context.Context, event *model.Event)
}

// eventQueueSize は処理待ちイベントのバッファ件数。
// 満杯時のHandleEventは空きが出るまでブロックする。
const eventQueueSize = 256

// WebhookHandler はFeishuのイベントWebhookを受け付ける。
// 受理したイベントはキューに積み、単一のワーカーゴルーチンが順次処理する。
// 下流のExtractorやFetcherのキャッシュは並列アクセスに対して安全でないため、
// ここで直列化するのが唯一の同時実行境界となる。
type WebhookHandler struct {
	dispatcher        EventDispatcher
	verificationToken string
	logger            *slog.Logger
	events            chan *model.Event
}

// NewWebhookHandler はWebhookHandlerの新しいインスタンスを生成し、
// イベント処理のワーカーゴルーチンを開始する。
func NewWebhookHandler(dispatcher EventDispatcher, verificationToken string, logger *slog.Logger) *WebhookHandler {
	h := &WebhookHandler{
		dispatcher:        dispatcher,
		verificationToken: verificationToken,
		logger:            logger,
		events:            make(chan *model.Event, eventQueueSize),
	}

	go h.dispatchLoop()

	return h
}

// dispatchLoop はキューからイベントを1件ずつ取り出して処理する。
func (h *WebhookHandler) dispatchLoop() {
	for event := range h.events {
		h.dispatcher.Dispatch(context.Background(), event)
	}
}

// eventEnvelope はFeishuイベントの外側の構造。
// URL検証リクエストとメッセージイベントの両方を受ける。
type eventEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Token     string `json:"token"`
	Header    struct {
		EventType string `json:"event_type"`
		Token     string `json:"token"`
		TenantKey string `json:"tenant_key"`
	} `json:"header"`
	Event struct {
		Sender struct {
			SenderID struct {
				OpenID string `json:"open_id"`
			} `json:"sender_id"`
			SenderType string `json:"sender_type"`
		} `json:"sender"`
		Message struct {
			MessageID   string `json:"message_id"`
			ChatID      string `json:"chat_id"`
			MessageType string `json:"message_type"`
			Content     string `json:"content"`
		} `json:"message"`
	} `json:"event"`
}

// HandleEvent はPOST /webhook/feishuを処理する。
// URL検証リクエストにはchallengeをそのまま返す。メッセージイベントは
// 検証トークンを確認したうえでキューへ積み、即座に200を返す。
// 処理はリクエストのライフサイクルから切り離したワーカーで直列に行う。
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var envelope eventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.logger.Warn("Webhookボディのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// URL検証リクエスト
	if envelope.Type == "url_verification" {
		if envelope.Token != h.verificationToken {
			writeError(w, http.StatusUnauthorized, "invalid verification token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"challenge": envelope.Challenge})
		return
	}

	if envelope.Header.Token != h.verificationToken {
		h.logger.Warn("検証トークンが一致しないイベントを拒否しました")
		writeError(w, http.StatusUnauthorized, "invalid verification token")
		return
	}

	event := &model.Event{
		TenantKey: envelope.Header.TenantKey,
		Sender: model.Sender{
			SenderID:   envelope.Event.Sender.SenderID.OpenID,
			SenderType: envelope.Event.Sender.SenderType,
		},
		Message: &model.Message{
			MessageID:   envelope.Event.Message.MessageID,
			ChatID:      envelope.Event.Message.ChatID,
			MessageType: envelope.Event.Message.MessageType,
			Content:     envelope.Event.Message.Content,
		},
	}

	h.events <- event

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError はエラーレスポンスをJSONで書き込む。
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
