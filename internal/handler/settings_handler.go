package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moriyama/linkdigest/internal/model"
)

// SettingsService は設定の取得と更新のインターフェース。
type SettingsService interface {
	GetTenantSetting(ctx context.Context, tenantID string) (*model.TenantSetting, error)
	UpdateTenantSetting(ctx context.Context, setting *model.TenantSetting) error
	GetUserSetting(ctx context.Context, tenantID, userID string) (*model.UserSetting, error)
	UpdateUserSetting(ctx context.Context, setting *model.UserSetting) error
}

// SettingsHandler はテナント・ユーザー設定のHTTP APIハンドラー。
type SettingsHandler struct {
	service  SettingsService
	tenantID string
	logger   *slog.Logger
}

// NewSettingsHandler はSettingsHandlerの新しいインスタンスを生成する。
func NewSettingsHandler(service SettingsService, tenantID string, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service:  service,
		tenantID: tenantID,
		logger:   logger,
	}
}

// tenantSettingResponse はテナント設定のAPI表現。
type tenantSettingResponse struct {
	TenantID     string   `json:"tenant_id"`
	DigestTime   string   `json:"digest_time"`
	EnabledChats []string `json:"enabled_chats"`
	SummaryStyle string   `json:"summary_style"`
}

// tenantSettingRequest はテナント設定更新のリクエストボディ。
type tenantSettingRequest struct {
	DigestTime   string   `json:"digest_time"`
	EnabledChats []string `json:"enabled_chats"`
	SummaryStyle string   `json:"summary_style"`
}

// GetTenantSetting はGET /api/settings/tenantを処理する。
func (h *SettingsHandler) GetTenantSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := h.service.GetTenantSetting(r.Context(), h.tenantID)
	if err != nil {
		h.logger.Error("テナント設定の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get tenant setting")
		return
	}

	writeJSON(w, http.StatusOK, tenantSettingResponse{
		TenantID:     setting.TenantID,
		DigestTime:   setting.DigestTime,
		EnabledChats: setting.EnabledChats,
		SummaryStyle: string(setting.SummaryStyle),
	})
}

// UpdateTenantSetting はPUT /api/settings/tenantを処理する。
func (h *SettingsHandler) UpdateTenantSetting(w http.ResponseWriter, r *http.Request) {
	var req tenantSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validSummaryStyle(req.SummaryStyle) {
		writeError(w, http.StatusBadRequest, "invalid summary_style")
		return
	}

	setting := &model.TenantSetting{
		TenantID:     h.tenantID,
		DigestTime:   req.DigestTime,
		EnabledChats: req.EnabledChats,
		SummaryStyle: model.SummaryStyle(req.SummaryStyle),
	}
	if err := h.service.UpdateTenantSetting(r.Context(), setting); err != nil {
		h.logger.Error("テナント設定の更新に失敗しました",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update tenant setting")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// userSettingResponse はユーザー設定のAPI表現。
type userSettingResponse struct {
	UserID       string   `json:"user_id"`
	TenantID     string   `json:"tenant_id"`
	DigestTime   string   `json:"digest_time"`
	EnabledChats []string `json:"enabled_chats"`
	SummaryStyle string   `json:"summary_style"`
}

// GetUserSetting はGET /api/settings/users/{userID}を処理する。
func (h *SettingsHandler) GetUserSetting(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	setting, err := h.service.GetUserSetting(r.Context(), h.tenantID, userID)
	if err != nil {
		h.logger.Error("ユーザー設定の取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get user setting")
		return
	}

	writeJSON(w, http.StatusOK, userSettingResponse{
		UserID:       setting.UserID,
		TenantID:     setting.TenantID,
		DigestTime:   setting.DigestTime,
		EnabledChats: setting.EnabledChats,
		SummaryStyle: string(setting.SummaryStyle),
	})
}

// UpdateUserSetting はPUT /api/settings/users/{userID}を処理する。
func (h *SettingsHandler) UpdateUserSetting(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	var req tenantSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validSummaryStyle(req.SummaryStyle) {
		writeError(w, http.StatusBadRequest, "invalid summary_style")
		return
	}

	setting := &model.UserSetting{
		UserID:       userID,
		TenantID:     h.tenantID,
		DigestTime:   req.DigestTime,
		EnabledChats: req.EnabledChats,
		SummaryStyle: model.SummaryStyle(req.SummaryStyle),
	}
	if err := h.service.UpdateUserSetting(r.Context(), setting); err != nil {
		h.logger.Error("ユーザー設定の更新に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update user setting")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// validSummaryStyle は要約スタイルの値が許容されるものか判定する。
func validSummaryStyle(style string) bool {
	switch model.SummaryStyle(style) {
	case model.StyleBullet, model.StyleParagraph:
		return true
	}
	return false
}
