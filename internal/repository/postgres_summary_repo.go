package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/moriyama/linkdigest/internal/model"
)

// PostgresSummaryRepo はPostgreSQLを使用した要約リポジトリ。
type PostgresSummaryRepo struct {
	db *sql.DB
}

// NewPostgresSummaryRepo はPostgresSummaryRepoを生成する。
func NewPostgresSummaryRepo(db *sql.DB) *PostgresSummaryRepo {
	return &PostgresSummaryRepo{db: db}
}

// Create は要約を作成する。
func (r *PostgresSummaryRepo) Create(ctx context.Context, summary *model.Summary) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO summaries (id, link_id, tenant_id, content, style, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		summary.ID, summary.LinkID, summary.TenantID,
		summary.Content, summary.Style,
		summary.CreatedAt, summary.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("要約の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByLinkID は指定リンクの最新の要約を取得する。見つからない場合はnilを返す。
func (r *PostgresSummaryRepo) FindByLinkID(ctx context.Context, linkID string) (*model.Summary, error) {
	summary := &model.Summary{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, link_id, tenant_id, content, style, created_at, updated_at
		 FROM summaries WHERE link_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		linkID,
	).Scan(
		&summary.ID, &summary.LinkID, &summary.TenantID,
		&summary.Content, &summary.Style,
		&summary.CreatedAt, &summary.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("要約の取得に失敗しました: %w", err)
	}

	return summary, nil
}

// compile-time interface check
var _ SummaryRepository = (*PostgresSummaryRepo)(nil)
