package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	if _, err := NewRedisClient("://bad"); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}

func TestRedisStore_SaveAndFind(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, newSession("tok", 42, time.Hour)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Find(ctx, "tok")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got == nil || got.UserID != 42 || got.Token != "tok" {
		t.Fatalf("Find() = %+v", got)
	}

	if ttl := mr.TTL("session:tok"); ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want within (0, 1h]", ttl)
	}
	if ok, _ := mr.SIsMember("user_sessions:42", "tok"); !ok {
		t.Error("token should be indexed under its user")
	}
}

func TestRedisStore_Find_Missing(t *testing.T) {
	s, _ := newTestRedisStore(t)

	got, err := s.Find(context.Background(), "missing")
	if err != nil || got != nil {
		t.Fatalf("Find(missing) = %+v, %v, want nil, nil", got, err)
	}
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_ = s.Save(ctx, newSession("tok", 1, time.Minute))
	mr.FastForward(2 * time.Minute)

	got, err := s.Find(ctx, "tok")
	if err != nil || got != nil {
		t.Fatalf("Find() after TTL = %+v, %v, want nil, nil", got, err)
	}
}

func TestRedisStore_Save_AlreadyExpiredIsSkipped(t *testing.T) {
	s, mr := newTestRedisStore(t)

	if err := s.Save(context.Background(), newSession("old", 1, -time.Minute)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if mr.Exists("session:old") {
		t.Error("expired session should not be written")
	}
}

func TestRedisStore_DeleteAndDeleteByUserID(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_ = s.Save(ctx, newSession("a1", 1, time.Hour))
	_ = s.Save(ctx, newSession("a2", 1, time.Hour))
	_ = s.Save(ctx, newSession("b1", 2, time.Hour))

	if err := s.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if mr.Exists("session:a1") {
		t.Error("a1 should be deleted")
	}
	if ok, _ := mr.SIsMember("user_sessions:1", "a1"); ok {
		t.Error("a1 should be removed from the user index")
	}
	if ok, _ := mr.SIsMember("user_sessions:1", "a2"); !ok {
		t.Error("a2 should stay in the user index")
	}

	if err := s.DeleteByUserID(ctx, 1); err != nil {
		t.Fatalf("DeleteByUserID() error = %v", err)
	}
	if mr.Exists("session:a2") || mr.Exists("user_sessions:1") {
		t.Error("user 1 sessions should be deleted")
	}
	if !mr.Exists("session:b1") {
		t.Error("user 2 session should remain")
	}
}

func TestRedisStore_DeleteExpired_NoOp(t *testing.T) {
	s, _ := newTestRedisStore(t)

	n, err := s.DeleteExpired(context.Background())
	if err != nil || n != 0 {
		t.Errorf("DeleteExpired() = %d, %v, want 0, nil", n, err)
	}
}

func TestRedisStore_Ping(t *testing.T) {
	s, mr := newTestRedisStore(t)

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	mr.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping() should fail when redis is down")
	}
}

func TestRedisStore_Delete_MissingIsNoOp(t *testing.T) {
	s, _ := newTestRedisStore(t)

	if err := s.Delete(context.Background(), "missing"); err != nil {
		t.Fatalf("Delete(missing) error = %v", err)
	}
}

func TestRedisStore_Delete_LastTokenEmptiesIndex(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_ = s.Save(ctx, newSession("only", 7, time.Hour))
	if err := s.Delete(ctx, "only"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if mr.Exists("user_sessions:7") {
		t.Error("empty user index should not remain")
	}
}
