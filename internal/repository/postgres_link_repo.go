package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/moriyama/linkdigest/internal/model"
)

// PostgresLinkRepo はPostgreSQLを使用したリンクリポジトリ。
type PostgresLinkRepo struct {
	db *sql.DB
}

// NewPostgresLinkRepo はPostgresLinkRepoを生成する。
func NewPostgresLinkRepo(db *sql.DB) *PostgresLinkRepo {
	return &PostgresLinkRepo{db: db}
}

// FindByID は指定IDのリンクを取得する。見つからない場合はnilを返す。
func (r *PostgresLinkRepo) FindByID(ctx context.Context, id string) (*model.Link, error) {
	link := &model.Link{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, url, platform, category, title, summary,
		        user_id, created_at, updated_at
		 FROM links WHERE id = $1`,
		id,
	).Scan(
		&link.ID, &link.TenantID, &link.URL, &link.Platform, &link.Category,
		&link.Title, &link.Summary, &link.UserID,
		&link.CreatedAt, &link.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リンクの取得に失敗しました: %w", err)
	}

	return link, nil
}

// FindByURL はテナント内でURLが一致するリンクを検索する。見つからない場合はnilを返す。
func (r *PostgresLinkRepo) FindByURL(ctx context.Context, tenantID, url string) (*model.Link, error) {
	link := &model.Link{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, url, platform, category, title, summary,
		        user_id, created_at, updated_at
		 FROM links WHERE tenant_id = $1 AND url = $2`,
		tenantID, url,
	).Scan(
		&link.ID, &link.TenantID, &link.URL, &link.Platform, &link.Category,
		&link.Title, &link.Summary, &link.UserID,
		&link.CreatedAt, &link.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("URLによるリンクの検索に失敗しました: %w", err)
	}

	return link, nil
}

// Create はリンクを作成する。テナント内で同一URLが既に存在する場合は
// updated_atのみ更新し、既存レコードを保持する。
func (r *PostgresLinkRepo) Create(ctx context.Context, link *model.Link) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO links (id, tenant_id, url, platform, category, title,
		                    summary, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT ON CONSTRAINT links_tenant_url_unique
		 DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		link.ID, link.TenantID, link.URL, link.Platform, link.Category,
		link.Title, link.Summary, link.UserID,
		link.CreatedAt, link.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("リンクの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateSummary はリンクの要約テキストを更新する。
func (r *PostgresLinkRepo) UpdateSummary(ctx context.Context, id, summary string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE links SET summary = $2, updated_at = now() WHERE id = $1`,
		id, summary,
	)
	if err != nil {
		return fmt.Errorf("リンク要約の更新に失敗しました: %w", err)
	}
	return nil
}

// ListByDateRange はテナント内でcreated_atが[from, to]に含まれるリンクを
// 作成日時昇順で返す。
func (r *PostgresLinkRepo) ListByDateRange(ctx context.Context, tenantID string, from, to time.Time) ([]*model.Link, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, url, platform, category, title, summary,
		        user_id, created_at, updated_at
		 FROM links
		 WHERE tenant_id = $1 AND created_at >= $2 AND created_at <= $3
		 ORDER BY created_at ASC`,
		tenantID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("期間内リンクの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var links []*model.Link
	for rows.Next() {
		link := &model.Link{}
		if err := rows.Scan(
			&link.ID, &link.TenantID, &link.URL, &link.Platform, &link.Category,
			&link.Title, &link.Summary, &link.UserID,
			&link.CreatedAt, &link.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("期間内リンクの読み取りに失敗しました: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("期間内リンクの走査に失敗しました: %w", err)
	}

	return links, nil
}

// compile-time interface check
var _ LinkRepository = (*PostgresLinkRepo)(nil)
