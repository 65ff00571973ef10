package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// PoolConfig はコネクションプールの設定。
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig はAPIとワーカーが共用するプール設定を返す。
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Open はPostgreSQLの*sql.DBを生成してプールを設定する。
// sql.Openは接続を試行しないため、疎通確認はConnectかdb.PingContextで行う。
func Open(databaseURL string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	return db, nil
}

// Connect はOpenした上で、疎通するまでPingをattempts回まで試行する。
// 試行間隔はretryDelayから倍々に伸ばす。コンテナ起動直後のDB待ちに使う。
// 全試行が失敗した場合とctxがキャンセルされた場合はDBを閉じてエラーを返す。
func Connect(ctx context.Context, databaseURL string, pool PoolConfig, attempts int, retryDelay time.Duration) (*sql.DB, error) {
	db, err := Open(databaseURL, pool)
	if err != nil {
		return nil, err
	}
	if attempts < 1 {
		attempts = 1
	}

	delay := retryDelay
	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt >= attempts {
			break
		}
		slog.Warn("database not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	db.Close()
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
}
