// Package settings はテナント・ユーザー設定の取得と更新を提供する。
// 設定が未作成の場合はデフォルト値で作成して返すget-or-create方式を取る。
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/moriyama/linkdigest/internal/model"
	"github.com/moriyama/linkdigest/internal/repository"
)

// Service は設定操作のサービス。
type Service struct {
	tenants repository.TenantSettingRepository
	users   repository.UserSettingRepository
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(tenants repository.TenantSettingRepository, users repository.UserSettingRepository, logger *slog.Logger) *Service {
	return &Service{
		tenants: tenants,
		users:   users,
		logger:  logger,
	}
}

// GetTenantSetting はテナント設定を取得する。
// 未作成の場合はデフォルト値で作成して返す。
func (s *Service) GetTenantSetting(ctx context.Context, tenantID string) (*model.TenantSetting, error) {
	setting, err := s.tenants.FindByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if setting != nil {
		return setting, nil
	}

	now := time.Now()
	setting = &model.TenantSetting{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		DigestTime:   model.DefaultDigestTime,
		EnabledChats: []string{},
		SummaryStyle: model.StyleBullet,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.tenants.Create(ctx, setting); err != nil {
		return nil, fmt.Errorf("テナント設定の初期化に失敗しました: %w", err)
	}

	s.logger.Info("テナント設定をデフォルト値で作成しました",
		slog.String("tenant_id", tenantID),
	)
	return setting, nil
}

// UpdateTenantSetting はテナント設定を更新する。
// 対象が未作成の場合は先にデフォルト値で作成する。
func (s *Service) UpdateTenantSetting(ctx context.Context, setting *model.TenantSetting) error {
	if _, err := s.GetTenantSetting(ctx, setting.TenantID); err != nil {
		return err
	}
	return s.tenants.Update(ctx, setting)
}

// GetUserSetting はテナント内のユーザー設定を取得する。
// 未作成の場合はテナント設定を引き継いだデフォルト値で作成して返す。
func (s *Service) GetUserSetting(ctx context.Context, tenantID, userID string) (*model.UserSetting, error) {
	setting, err := s.users.FindByUserID(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if setting != nil {
		return setting, nil
	}

	tenant, err := s.GetTenantSetting(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	setting = &model.UserSetting{
		ID:           uuid.NewString(),
		UserID:       userID,
		TenantID:     tenantID,
		DigestTime:   tenant.DigestTime,
		EnabledChats: append([]string{}, tenant.EnabledChats...),
		SummaryStyle: tenant.SummaryStyle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, setting); err != nil {
		return nil, fmt.Errorf("ユーザー設定の初期化に失敗しました: %w", err)
	}

	s.logger.Info("ユーザー設定をデフォルト値で作成しました",
		slog.String("tenant_id", tenantID),
		slog.String("user_id", userID),
	)
	return setting, nil
}

// UpdateUserSetting はユーザー設定を更新する。
// 対象が未作成の場合は先にデフォルト値で作成する。
func (s *Service) UpdateUserSetting(ctx context.Context, setting *model.UserSetting) error {
	if _, err := s.GetUserSetting(ctx, setting.TenantID, setting.UserID); err != nil {
		return err
	}
	return s.users.Update(ctx, setting)
}
