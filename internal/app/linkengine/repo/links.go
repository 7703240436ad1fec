package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lurl.local/internal/app/linkengine"
)

const linkColumns = "id, long_url, short_code, owner_id, created_at, expires_at, usage_count, status"

// LinksRepo 是 linkengine.Store 的 PostgreSQL 实现。
// 数据库是唯一事实来源；所有读默认排除 DELETED 记录（审计读除外）。
type LinksRepo struct {
	db *pgxpool.Pool
}

func NewLinksRepo(db *pgxpool.Pool) *LinksRepo {
	return &LinksRepo{db: db}
}

func scanLink(row pgx.Row) (linkengine.Link, error) {
	var l linkengine.Link
	err := row.Scan(&l.ID, &l.LongURL, &l.ShortCode, &l.OwnerID,
		&l.CreatedAt, &l.ExpiresAt, &l.UsageCount, &l.Status)
	return l, err
}

// 按短码查找，排除 DELETED：已删除的记录对查找来说等于不存在。
func (r *LinksRepo) FindByCode(ctx context.Context, code string) (linkengine.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	row := r.db.QueryRow(dbctx,
		"SELECT "+linkColumns+" FROM links WHERE short_code=$1 AND status<>'DELETED'", code)
	l, err := scanLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return linkengine.Link{}, linkengine.ErrNotFound
		}
		slog.Error(err.Error())
		return linkengine.Link{}, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}
	return l, nil
}

// FindByCodeAny 审计读，包含 DELETED。
// 同一短码可能同时有一条活跃记录和若干历史 DELETED 记录（短码删除后可复用），
// 活跃记录优先，其次取最新的历史记录。
func (r *LinksRepo) FindByCodeAny(ctx context.Context, code string) (linkengine.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	row := r.db.QueryRow(dbctx,
		"SELECT "+linkColumns+" FROM links WHERE short_code=$1 ORDER BY (status='DELETED'), created_at DESC LIMIT 1", code)
	l, err := scanLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return linkengine.Link{}, linkengine.ErrNotFound
		}
		slog.Error(err.Error())
		return linkengine.Link{}, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}
	return l, nil
}

func (r *LinksRepo) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]linkengine.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.db.Query(dbctx,
		"SELECT "+linkColumns+" FROM links WHERE owner_id=$1 AND status<>'DELETED' ORDER BY created_at DESC", ownerID)
	if err != nil {
		slog.Error(err.Error())
		return nil, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}
	defer rows.Close()

	var result []linkengine.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			slog.Error(err.Error())
			return nil, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		slog.Error(err.Error())
		return nil, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}
	return result, nil
}

// Save 整行 upsert（按 id）。
// 短码唯一约束冲突只会在撞码竞态下出现（生成器检查和插入之间被别人抢注），
// 按服务端内部错误上抛，由调用方决定是否重试。
func (r *LinksRepo) Save(ctx context.Context, link linkengine.Link) (linkengine.Link, error) {
	if link.LongURL == "" || link.ShortCode == "" {
		return linkengine.Link{}, linkengine.ErrNullProperty
	}

	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := r.db.QueryRow(dbctx, `
	INSERT INTO links (id, long_url, short_code, owner_id, created_at, expires_at, usage_count, status)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (id) DO UPDATE SET
	  long_url=EXCLUDED.long_url, short_code=EXCLUDED.short_code,
	  expires_at=EXCLUDED.expires_at, usage_count=EXCLUDED.usage_count, status=EXCLUDED.status
	RETURNING `+linkColumns,
		link.ID, link.LongURL, link.ShortCode, link.OwnerID,
		link.CreatedAt, link.ExpiresAt, link.UsageCount, link.Status)
	saved, err := scanLink(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" &&
			strings.Contains(strings.ToLower(pgErr.ConstraintName), "short_code") {
			// unique violation: 撞码竞态
			return linkengine.Link{}, fmt.Errorf("%w: short code %q taken concurrently", linkengine.ErrInternal, link.ShortCode)
		}
		slog.Error(err.Error())
		return linkengine.Link{}, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}
	return saved, nil
}

// UpdatePartial 动态拼 SET 子句，只更新 patch 里非 nil 的字段。
// 目标记录不能是 DELETED（终态不允许再改）。
func (r *LinksRepo) UpdatePartial(ctx context.Context, patch linkengine.LinkPatch, code string) error {
	if patch.IsEmpty() {
		return nil
	}

	var sets []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if patch.LongURL != nil {
		sets = append(sets, "long_url="+arg(*patch.LongURL))
	}
	if patch.ShortCode != nil {
		sets = append(sets, "short_code="+arg(*patch.ShortCode))
	}
	if patch.ExpiresAt != nil {
		sets = append(sets, "expires_at="+arg(*patch.ExpiresAt))
	}
	if patch.UsageCount != nil {
		sets = append(sets, "usage_count="+arg(*patch.UsageCount))
	}
	if patch.Status != nil {
		sets = append(sets, "status="+arg(*patch.Status))
	}
	query := "UPDATE links SET " + strings.Join(sets, ", ") +
		" WHERE short_code=" + arg(code) + " AND status<>'DELETED'"

	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.db.Exec(dbctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: short code %q taken concurrently", linkengine.ErrInternal, code)
		}
		slog.Error(err.Error())
		return fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}
	if tag.RowsAffected() == 0 {
		return linkengine.ErrNotFound
	}
	return nil
}

func (r *LinksRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(dbctx,
		"SELECT EXISTS(SELECT 1 FROM links WHERE short_code=$1 AND status<>'DELETED')", code).Scan(&exists)
	if err != nil {
		slog.Error(err.Error())
		return false, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}
	return exists, nil
}

// MarkDeleted 逻辑删除。
// 先尝试原子更新，没更新到行再区分“不存在”和“已删除”两种失败。
func (r *LinksRepo) MarkDeleted(ctx context.Context, code string) error {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var ok int
	err := r.db.QueryRow(dbctx,
		"UPDATE links SET status='DELETED' WHERE short_code=$1 AND status<>'DELETED' RETURNING 1", code).Scan(&ok)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		slog.Error(err.Error())
		return fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}

	// No rows updated: either not found, or already deleted.
	var status linkengine.LinkStatus
	if err := r.db.QueryRow(dbctx,
		"SELECT status FROM links WHERE short_code=$1 ORDER BY created_at DESC LIMIT 1", code).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return linkengine.ErrNotFound
		}
		slog.Error(err.Error())
		return fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}
	if status == linkengine.StatusDeleted {
		return linkengine.ErrAlreadyDeleted
	}

	// Should not happen; the row exists and is live, but UPDATE matched no rows.
	return fmt.Errorf("%w: mark deleted matched no rows for %q", linkengine.ErrInternal, code)
}

// CodesForWarmup 返回所有非 DELETED 短码，用于启动时预热布隆过滤器。
func (r *LinksRepo) CodesForWarmup(ctx context.Context) ([]string, error) {
	dbctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := r.db.Query(dbctx, "SELECT short_code FROM links WHERE status<>'DELETED'")
	if err != nil {
		slog.Error(err.Error())
		return nil, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			slog.Error(err.Error())
			return nil, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		slog.Error(err.Error())
		return nil, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}
	return codes, nil
}

func (r *LinksRepo) UsageStatsByOwner(ctx context.Context, ownerID uuid.UUID) ([]linkengine.LinkStats, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.db.Query(dbctx,
		"SELECT id, short_code, usage_count FROM links WHERE owner_id=$1 AND status<>'DELETED' ORDER BY usage_count DESC", ownerID)
	if err != nil {
		slog.Error(err.Error())
		return nil, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}
	defer rows.Close()

	var result []linkengine.LinkStats
	for rows.Next() {
		var item linkengine.LinkStats
		if err := rows.Scan(&item.ID, &item.ShortCode, &item.UsageCount); err != nil {
			slog.Error(err.Error())
			return nil, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		slog.Error(err.Error())
		return nil, fmt.Errorf("%w: %v", linkengine.ErrInternal, err)
	}
	return result, nil
}
