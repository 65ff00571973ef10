package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hitoshi/coursecrm/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

// RedisStore はRedisにセッションを保持するStore。
// 有効期限はキーのTTLで管理するため、DeleteExpiredは何もしない。
type RedisStore struct {
	client *redis.Client
}

// NewRedisClient はREDIS_URL形式の接続文字列からクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// redisSession はRedisに保存するセッションの表現。
type redisSession struct {
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func userSessionKey(userID int64) string {
	return userSessionKeyPrefix + strconv.FormatInt(userID, 10)
}

// Save はセッションを保存し、ユーザーごとのトークン集合にも登録する。
func (s *RedisStore) Save(ctx context.Context, session *model.Session) error {
	payload, err := json.Marshal(redisSession{
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = time.Until(session.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.Token), payload, ttl)
		pipe.SAdd(ctx, userSessionKey(session.UserID), session.Token)
		if ttl > 0 {
			pipe.Expire(ctx, userSessionKey(session.UserID), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Find はセッションを取得する。
func (s *RedisStore) Find(ctx context.Context, token string) (*model.Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var rs redisSession
	if err := json.Unmarshal(payload, &rs); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	sess := &model.Session{
		Token:     token,
		UserID:    rs.UserID,
		ExpiresAt: rs.ExpiresAt,
		CreatedAt: rs.CreatedAt,
	}
	if sess.Expired(time.Now()) {
		return nil, nil
	}
	return sess, nil
}

// Delete はセッションを削除し、ユーザーごとのトークン集合からも外す。
// ユーザーIDは保存済みのペイロードから引く。
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	payload, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}

	var rs redisSession
	if err := json.Unmarshal(payload, &rs); err != nil {
		// 壊れたペイロードでもセッション本体は消す
		if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(token))
		pipe.SRem(ctx, userSessionKey(rs.UserID), token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (s *RedisStore) DeleteByUserID(ctx context.Context, userID int64) error {
	setKey := userSessionKey(userID)
	tokens, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, sessionKey(t))
	}
	keys = append(keys, setKey)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired はRedisのTTLに委ねるため常に0を返す。
func (s *RedisStore) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// Ping はRedisへの疎通を確認する。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ Store = (*RedisStore)(nil)
