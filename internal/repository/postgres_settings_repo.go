package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/moriyama/linkdigest/internal/model"
)

// PostgresTenantSettingRepo はPostgreSQLを使用したテナント設定リポジトリ。
type PostgresTenantSettingRepo struct {
	db *sql.DB
}

// NewPostgresTenantSettingRepo はPostgresTenantSettingRepoを生成する。
func NewPostgresTenantSettingRepo(db *sql.DB) *PostgresTenantSettingRepo {
	return &PostgresTenantSettingRepo{db: db}
}

// FindByTenantID は指定テナントの設定を取得する。見つからない場合はnilを返す。
func (r *PostgresTenantSettingRepo) FindByTenantID(ctx context.Context, tenantID string) (*model.TenantSetting, error) {
	setting := &model.TenantSetting{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, digest_time, enabled_chats, summary_style,
		        created_at, updated_at
		 FROM tenant_settings WHERE tenant_id = $1`,
		tenantID,
	).Scan(
		&setting.ID, &setting.TenantID, &setting.DigestTime,
		pq.Array(&setting.EnabledChats), &setting.SummaryStyle,
		&setting.CreatedAt, &setting.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("テナント設定の取得に失敗しました: %w", err)
	}

	return setting, nil
}

// Create はテナント設定を作成する。
func (r *PostgresTenantSettingRepo) Create(ctx context.Context, setting *model.TenantSetting) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenant_settings (id, tenant_id, digest_time, enabled_chats,
		                              summary_style, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		setting.ID, setting.TenantID, setting.DigestTime,
		pq.Array(setting.EnabledChats), setting.SummaryStyle,
		setting.CreatedAt, setting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("テナント設定の作成に失敗しました: %w", err)
	}
	return nil
}

// Update はテナント設定を更新する。
func (r *PostgresTenantSettingRepo) Update(ctx context.Context, setting *model.TenantSetting) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tenant_settings SET
		    digest_time = $2, enabled_chats = $3, summary_style = $4,
		    updated_at = now()
		 WHERE tenant_id = $1`,
		setting.TenantID, setting.DigestTime,
		pq.Array(setting.EnabledChats), setting.SummaryStyle,
	)
	if err != nil {
		return fmt.Errorf("テナント設定の更新に失敗しました: %w", err)
	}
	return nil
}

// PostgresUserSettingRepo はPostgreSQLを使用したユーザー設定リポジトリ。
type PostgresUserSettingRepo struct {
	db *sql.DB
}

// NewPostgresUserSettingRepo はPostgresUserSettingRepoを生成する。
func NewPostgresUserSettingRepo(db *sql.DB) *PostgresUserSettingRepo {
	return &PostgresUserSettingRepo{db: db}
}

// FindByUserID はテナント内の指定ユーザーの設定を取得する。見つからない場合はnilを返す。
func (r *PostgresUserSettingRepo) FindByUserID(ctx context.Context, tenantID, userID string) (*model.UserSetting, error) {
	setting := &model.UserSetting{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, tenant_id, digest_time, enabled_chats,
		        summary_style, created_at, updated_at
		 FROM user_settings WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID,
	).Scan(
		&setting.ID, &setting.UserID, &setting.TenantID, &setting.DigestTime,
		pq.Array(&setting.EnabledChats), &setting.SummaryStyle,
		&setting.CreatedAt, &setting.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザー設定の取得に失敗しました: %w", err)
	}

	return setting, nil
}

// Create はユーザー設定を作成する。
func (r *PostgresUserSettingRepo) Create(ctx context.Context, setting *model.UserSetting) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_settings (id, user_id, tenant_id, digest_time,
		                            enabled_chats, summary_style, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		setting.ID, setting.UserID, setting.TenantID, setting.DigestTime,
		pq.Array(setting.EnabledChats), setting.SummaryStyle,
		setting.CreatedAt, setting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザー設定の作成に失敗しました: %w", err)
	}
	return nil
}

// Update はユーザー設定を更新する。
func (r *PostgresUserSettingRepo) Update(ctx context.Context, setting *model.UserSetting) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_settings SET
		    digest_time = $2, enabled_chats = $3, summary_style = $4,
		    updated_at = now()
		 WHERE tenant_id = $1 AND user_id = $5`,
		setting.TenantID, setting.DigestTime,
		pq.Array(setting.EnabledChats), setting.SummaryStyle,
		setting.UserID,
	)
	if err != nil {
		return fmt.Errorf("ユーザー設定の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ TenantSettingRepository = (*PostgresTenantSettingRepo)(nil)
	_ UserSettingRepository   = (*PostgresUserSettingRepo)(nil)
)
