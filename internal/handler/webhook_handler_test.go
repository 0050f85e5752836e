package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moriyama/linkdigest/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// recordingDispatcher は受け取ったイベントをチャネルに流すEventDispatcher。
type recordingDispatcher struct {
	events chan *model.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{events: make(chan *model.Event, 8)}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event *model.Event) {
	d.events <- event
}

func newWebhookTestHandler(dispatcher EventDispatcher) *WebhookHandler {
	var buf bytes.Buffer
	return NewWebhookHandler(dispatcher, "verify-token", newTestLogger(&buf))
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/feishu", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandleEvent_URLVerificationEchoesChallenge(t *testing.T) {
	h := newWebhookTestHandler(newRecordingDispatcher())

	rec := postJSON(t, h.HandleEvent, `{"type":"url_verification","challenge":"ch-123","token":"verify-token"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータス = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if body["challenge"] != "ch-123" {
		t.Errorf("challenge = %s, want ch-123", body["challenge"])
	}
}

func TestHandleEvent_URLVerificationWithBadToken(t *testing.T) {
	h := newWebhookTestHandler(newRecordingDispatcher())

	rec := postJSON(t, h.HandleEvent, `{"type":"url_verification","challenge":"ch-123","token":"wrong"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ステータス = %d, want 401", rec.Code)
	}
}

func TestHandleEvent_MessageEventDispatched(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	h := newWebhookTestHandler(dispatcher)

	body := `{
		"header": {"event_type": "im.message.receive_v1", "token": "verify-token", "tenant_key": "tk-1"},
		"event": {
			"sender": {"sender_id": {"open_id": "ou-1"}, "sender_type": "user"},
			"message": {"message_id": "om-1", "chat_id": "oc-1", "message_type": "text", "content": "{\"text\":\"https://example.com/a\"}"}
		}
	}`

	rec := postJSON(t, h.HandleEvent, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("ステータス = %d, want 200", rec.Code)
	}

	select {
	case event := <-dispatcher.events:
		if event.TenantKey != "tk-1" {
			t.Errorf("TenantKey = %s, want tk-1", event.TenantKey)
		}
		if event.Sender.SenderID != "ou-1" || event.Sender.SenderType != "user" {
			t.Errorf("Sender = %+v", event.Sender)
		}
		if event.Message.MessageID != "om-1" || event.Message.ChatID != "oc-1" {
			t.Errorf("Message = %+v", event.Message)
		}
		if event.Message.MessageType != model.MessageTypeText {
			t.Errorf("MessageType = %s, want text", event.Message.MessageType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("イベントがディスパッチされなかった")
	}
}

func TestHandleEvent_EventWithBadTokenRejected(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	h := newWebhookTestHandler(dispatcher)

	body := `{
		"header": {"event_type": "im.message.receive_v1", "token": "wrong"},
		"event": {"message": {"message_id": "om-1", "message_type": "text", "content": "{}"}}
	}`

	rec := postJSON(t, h.HandleEvent, body)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ステータス = %d, want 401", rec.Code)
	}

	select {
	case <-dispatcher.events:
		t.Error("トークン不一致のイベントがディスパッチされた")
	case <-time.After(100 * time.Millisecond):
	}
}

// serialCheckingDispatcher はDispatchの同時実行を検出するEventDispatcher。
type serialCheckingDispatcher struct {
	mu      sync.Mutex
	active  int
	overlap bool
	done    chan struct{}
}

func (d *serialCheckingDispatcher) Dispatch(_ context.Context, _ *model.Event) {
	d.mu.Lock()
	d.active++
	if d.active > 1 {
		d.overlap = true
	}
	d.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	d.mu.Lock()
	d.active--
	d.mu.Unlock()
	d.done <- struct{}{}
}

func TestHandleEvent_ConcurrentEventsDispatchedSerially(t *testing.T) {
	// 下流のExtractor・Fetcherキャッシュは並列アクセスに安全でないため、
	// 同時に届いたWebhookイベントでもDispatchは1件ずつ実行されること
	const events = 8

	dispatcher := &serialCheckingDispatcher{done: make(chan struct{}, events)}
	h := newWebhookTestHandler(dispatcher)

	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{
				"header": {"event_type": "im.message.receive_v1", "token": "verify-token"},
				"event": {
					"sender": {"sender_id": {"open_id": "ou-1"}, "sender_type": "user"},
					"message": {"message_id": "om-%d", "chat_id": "oc-1", "message_type": "text", "content": "{\"text\":\"hi\"}"}
				}
			}`, i)
			req := httptest.NewRequest(http.MethodPost, "/webhook/feishu", strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.HandleEvent(rec, req)
			if rec.Code != http.StatusOK {
				t.Errorf("ステータス = %d, want 200", rec.Code)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < events; i++ {
		select {
		case <-dispatcher.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("処理済みイベントが%d件で止まった", i)
		}
	}

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	if dispatcher.overlap {
		t.Error("Dispatchが並行実行された")
	}
}

func TestHandleEvent_InvalidBody(t *testing.T) {
	h := newWebhookTestHandler(newRecordingDispatcher())

	rec := postJSON(t, h.HandleEvent, `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("ステータス = %d, want 400", rec.Code)
	}
}
