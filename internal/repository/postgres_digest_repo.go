package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/moriyama/linkdigest/internal/model"
)

// PostgresDigestRepo はPostgreSQLを使用した日次ダイジェストリポジトリ。
// ダイジェストは追記専用であり、UPDATE・DELETEを発行しない。
type PostgresDigestRepo struct {
	db *sql.DB
}

// NewPostgresDigestRepo はPostgresDigestRepoを生成する。
func NewPostgresDigestRepo(db *sql.DB) *PostgresDigestRepo {
	return &PostgresDigestRepo{db: db}
}

// Create はダイジェストを追記する。
func (r *PostgresDigestRepo) Create(ctx context.Context, digest *model.DailyDigest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO daily_digests (id, tenant_id, content, digest_date, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		digest.ID, digest.TenantID, digest.Content,
		digest.Date, digest.Version, digest.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ダイジェストの作成に失敗しました: %w", err)
	}
	return nil
}

// FindLatestByDate は指定日のうち最も新しく作成されたダイジェストを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresDigestRepo) FindLatestByDate(ctx context.Context, tenantID string, date time.Time) (*model.DailyDigest, error) {
	digest := &model.DailyDigest{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, content, digest_date, version, created_at
		 FROM daily_digests
		 WHERE tenant_id = $1 AND digest_date = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		tenantID, date,
	).Scan(
		&digest.ID, &digest.TenantID, &digest.Content,
		&digest.Date, &digest.Version, &digest.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ダイジェストの取得に失敗しました: %w", err)
	}

	return digest, nil
}

// compile-time interface check
var _ DigestRepository = (*PostgresDigestRepo)(nil)
