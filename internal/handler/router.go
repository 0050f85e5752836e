package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/moriyama/linkdigest/internal/metrics"
	"github.com/moriyama/linkdigest/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// Webhook
	Dispatcher        EventDispatcher
	VerificationToken string

	// 設定API
	SettingsService SettingsService
	TenantID        string

	// メトリクス公開
	Gatherer prometheus.Gatherer

	// ヘルスチェック用。nilの場合は接続確認を行わない
	DB *sql.DB

	Logger *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを
// 構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	webhookHandler := NewWebhookHandler(deps.Dispatcher, deps.VerificationToken, deps.Logger)
	settingsHandler := NewSettingsHandler(deps.SettingsService, deps.TenantID, deps.Logger)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.DB != nil {
			if err := deps.DB.PingContext(req.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Post("/webhook/feishu", webhookHandler.HandleEvent)

	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/tenant", settingsHandler.GetTenantSetting)
		r.Put("/tenant", settingsHandler.UpdateTenantSetting)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", settingsHandler.GetUserSetting)
			r.Put("/", settingsHandler.UpdateUserSetting)
		})
	})

	return r
}
