package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New 建立 pgx 连接池。
// 启动阶段数据库可能还没就绪（容器编排常见），用指数退避重试首次连接。
func New(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
		p, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, backoff.Permanent(err) // DSN 解析失败，重试没有意义
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			slog.Warn("db not ready, retrying", "err", err)
			return nil, err
		}
		return p, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(30*time.Second))
	if err != nil {
		return nil, err
	}
	return pool, nil
}
