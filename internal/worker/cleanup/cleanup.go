// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// メモリ・PostgreSQLのセッションストアは自前で期限切れを消さないため、
// 一定間隔でDeleteExpiredを呼び出す。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredSessionDeleter は期限切れセッションを削除するインターフェース。
// session.Storeが満たす。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionSweeper は期限切れセッションの削除ジョブ。
// 冪等な削除処理のため、何度実行してもよい。
type SessionSweeper struct {
	store  ExpiredSessionDeleter
	logger *slog.Logger
}

// NewSessionSweeper は新しいSessionSweeperを生成する。
func NewSessionSweeper(store ExpiredSessionDeleter, logger *slog.Logger) *SessionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweeper{
		store:  store,
		logger: logger,
	}
}

// Start は指定間隔のティッカーでジョブを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (s *SessionSweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("セッションクリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	s.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("セッションクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

// RunOnce は期限切れセッションを1回削除し、削除件数を返す。
func (s *SessionSweeper) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()

	deleted, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	s.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return deleted, nil
}

func (s *SessionSweeper) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
