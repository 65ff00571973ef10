// Package session はログインセッションの保存先を提供する。
// SESSION_BACKEND によりメモリ・Redis・PostgreSQLを切り替える。
package session

import (
	"context"

	"github.com/hitoshi/coursecrm/internal/model"
)

// Store はセッションの保存先インターフェース。
// 実装はゴルーチンセーフでなければならない。
type Store interface {
	// Save はセッションを保存する。同じトークンは上書きする。
	Save(ctx context.Context, session *model.Session) error

	// Find はトークンに対応するセッションを返す。
	// 存在しないか期限切れの場合はnil, nilを返す。
	Find(ctx context.Context, token string) (*model.Session, error)

	// Delete はセッションを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, token string) error

	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID int64) error

	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
