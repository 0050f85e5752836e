package validator

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/moriyama/linkdigest/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// plainProvider はテスト用にSSRFガードを無効化したプロバイダー。
// httptestサーバーのループバックアドレスへ接続できるようにする。
type plainProvider struct{}

func (plainProvider) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (plainProvider) ValidateURL(string) error { return nil }

func newTestValidator() *Validator {
	var buf bytes.Buffer
	return New(plainProvider{}, newTestLogger(&buf), 2*time.Second)
}

func TestValidate_ReachablePageWithTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>テスト記事</title></head><body>ok</body></html>`))
	}))
	defer server.Close()

	v := newTestValidator()
	result := v.Validate(context.Background(), server.URL)

	if !result.Valid {
		t.Fatal("到達可能なURLがvalid=falseになった")
	}
	if result.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", result.Status)
	}
	if result.Title != "テスト記事" {
		t.Errorf("Title = %s, want テスト記事", result.Title)
	}
}

func TestValidate_MissingTitleIsEmptyString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>no title here</body></html>`))
	}))
	defer server.Close()

	v := newTestValidator()
	result := v.Validate(context.Background(), server.URL)

	if !result.Valid {
		t.Fatal("到達可能なURLがvalid=falseになった")
	}
	if result.Title != "" {
		t.Errorf("Title = %q, want 空文字列", result.Title)
	}
}

func TestValidate_ErrorStatusIsInvalid(t *testing.T) {
	tests := []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError}

	for _, status := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		v := newTestValidator()
		result := v.Validate(context.Background(), server.URL)
		server.Close()

		if result.Valid {
			t.Errorf("ステータス%dでvalid=trueになった", status)
		}
		if result.Status != status {
			t.Errorf("Status = %d, want %d", result.Status, status)
		}
		if result.Title != "" {
			t.Errorf("失敗時のTitle = %q, want 空文字列", result.Title)
		}
	}
}

func TestValidate_TransportErrorHasZeroStatus(t *testing.T) {
	// 接続先のないアドレス
	v := newTestValidator()
	result := v.Validate(context.Background(), "http://127.0.0.1:1/unreachable")

	if result.Valid {
		t.Error("接続不能なURLがvalid=trueになった")
	}
	if result.Status != 0 {
		t.Errorf("Status = %d, want 0", result.Status)
	}
}

func TestValidate_NeverReturnsError(t *testing.T) {
	// Validateはエラーを返さないシグネチャであることの確認を兼ねて、
	// 不正な入力でもpanicしないことを検証する
	v := newTestValidator()
	result := v.Validate(context.Background(), "://not-a-url")

	if result.Valid {
		t.Error("不正なURLがvalid=trueになった")
	}
}

func TestValidate_PlatformTypeDetected(t *testing.T) {
	v := newTestValidator()

	// 到達性に関係なくプラットフォーム種別は判定される
	result := v.Validate(context.Background(), "https://mp.weixin.qq.com/s/abc123")
	if result.Type != model.PlatformWeixin {
		t.Errorf("Type = %s, want weixin", result.Type)
	}
}
