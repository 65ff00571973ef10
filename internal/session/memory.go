package session

import (
	"context"
	"time"

	"github.com/hitoshi/coursecrm/internal/model"
	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryStore はプロセス内メモリにセッションを保持するStore。
// プロセス再起動で全セッションが失われる。
type MemoryStore struct {
	sessions *xsync.MapOf[string, model.Session]
	now      func() time.Time
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: xsync.NewMapOf[string, model.Session](),
		now:      time.Now,
	}
}

// Save はセッションを保存する。
func (s *MemoryStore) Save(_ context.Context, session *model.Session) error {
	s.sessions.Store(session.Token, *session)
	return nil
}

// Find はセッションを返す。期限切れのエントリは読み出し時に削除する。
func (s *MemoryStore) Find(_ context.Context, token string) (*model.Session, error) {
	sess, ok := s.sessions.Load(token)
	if !ok {
		return nil, nil
	}
	if sess.Expired(s.now()) {
		s.sessions.Delete(token)
		return nil, nil
	}
	return &sess, nil
}

// Delete はセッションを削除する。
func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.sessions.Delete(token)
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (s *MemoryStore) DeleteByUserID(_ context.Context, userID int64) error {
	s.sessions.Range(func(token string, sess model.Session) bool {
		if sess.UserID == userID {
			s.sessions.Delete(token)
		}
		return true
	})
	return nil
}

// DeleteExpired は期限切れセッションを削除する。
func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	now := s.now()
	var n int64
	s.sessions.Range(func(token string, sess model.Session) bool {
		if sess.Expired(now) {
			s.sessions.Delete(token)
			n++
		}
		return true
	})
	return n, nil
}

// Len は保持しているセッション数を返す。
func (s *MemoryStore) Len() int {
	return s.sessions.Size()
}

var _ Store = (*MemoryStore)(nil)
