package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestValidateURL_AllowsPublicHTTPURLs(t *testing.T) {
	g := NewGuard()

	tests := []string{
		"https://mp.weixin.qq.com/s/abc123",
		"http://example.com/article",
		"https://8.8.8.8/page",
	}
	for _, u := range tests {
		if err := g.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%s) = %v, want nil", u, err)
		}
	}
}

func TestValidateURL_BlocksDangerousURLs(t *testing.T) {
	g := NewGuard()

	tests := []struct {
		name string
		url  string
	}{
		{"空URL", ""},
		{"非HTTPスキーム", "ftp://example.com/file"},
		{"fileスキーム", "file:///etc/passwd"},
		{"localhost", "http://localhost:8080/admin"},
		{"ループバックIP", "http://127.0.0.1/admin"},
		{"プライベートIP 10系", "http://10.0.0.5/internal"},
		{"プライベートIP 172系", "http://172.16.0.1/internal"},
		{"プライベートIP 192系", "http://192.168.1.1/router"},
		{"クラウドメタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"IPv6ループバック", "http://[::1]/admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.ValidateURL(tt.url); err == nil {
				t.Errorf("ValidateURL(%s) = nil, want エラー", tt.url)
			}
		})
	}
}

func TestNewSafeClient_SetsTimeout(t *testing.T) {
	g := NewGuard()
	client := g.NewSafeClient(3 * time.Second)

	if client == nil {
		t.Fatal("NewSafeClient がnilを返した")
	}
	if client.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("カスタムTransportが設定されていない")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	g := NewGuard()
	client := g.NewSafeClient(5 * time.Second)

	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("ループバックアドレスへのリクエストがブロックされなかった")
	}
}
