// Package auth はパスワード認証とセッションの発行・解決を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/coursecrm/internal/event"
	"github.com/hitoshi/coursecrm/internal/metrics"
	"github.com/hitoshi/coursecrm/internal/model"
	"github.com/hitoshi/coursecrm/internal/repository"
	"github.com/hitoshi/coursecrm/internal/session"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge   int    // セッション有効期間（秒）。0以下ならmodel.DefaultSessionMaxAge
	UserEventsTopic string // user.logged_in の送信先トピック
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	sessions  session.Store
	hasher    *PasswordHasher
	publisher event.Publisher
	metrics   metrics.MetricsCollector
	config    ServiceConfig
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessions session.Store,
	hasher *PasswordHasher,
	publisher event.Publisher,
	mc metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = model.DefaultSessionMaxAge
	}
	return &Service{
		userRepo:  userRepo,
		sessions:  sessions,
		hasher:    hasher,
		publisher: publisher,
		metrics:   mc,
		config:    config,
		now:       time.Now,
	}
}

// Authenticate はメールアドレスとパスワードを検証し、一致したユーザーを返す。
// ユーザー不在とパスワード不一致は区別せずINVALID_CREDENTIALSを返す。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !s.hasher.Compare(user.PasswordHash, password) {
		return nil, model.NewInvalidCredentialsError()
	}
	return user, nil
}

// CreateSession は新しいセッショントークンを発行し保存する。
func (s *Service) CreateSession(ctx context.Context, userID int64) (*model.Session, error) {
	now := s.now()
	sess := &model.Session{
		Token:     uuid.New().String(),
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

// Login は認証に成功したユーザーのセッションを発行し、user.logged_in を送信する。
// 失敗時はセッションを作らず、イベントも送信しない。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		if model.HasCode(err, model.ErrCodeInvalidCredentials) {
			s.metrics.RecordLogin(metrics.LoginFailure)
			slog.Info("login failed", slog.String("email", email))
		}
		return nil, nil, err
	}

	sess, err := s.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.RecordLogin(metrics.LoginSuccess)

	s.publisher.Publish(ctx, s.config.UserEventsTopic,
		model.NewUserLoggedInEvent(user, s.now()),
		strconv.FormatInt(user.ID, 10),
	)

	slog.Info("user logged in", slog.Int64("user_id", user.ID))
	return user, sess, nil
}

// Resolve はセッショントークンから現在のユーザーを返す。
// トークン欠落・未知・期限切れはUNAUTHENTICATEDを返す。
// セッションが指すユーザーが削除済みの場合はセッションも削除する。
func (s *Service) Resolve(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, model.NewUnauthenticatedError()
	}

	sess, err := s.sessions.Find(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if sess == nil {
		return nil, model.NewUnauthenticatedError()
	}

	user, err := s.userRepo.FindByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		if err := s.sessions.Delete(ctx, token); err != nil {
			return nil, fmt.Errorf("failed to delete stale session: %w", err)
		}
		slog.Info("stale session removed", slog.Int64("user_id", sess.UserID))
		return nil, model.NewUnauthenticatedError()
	}

	return user, nil
}

// RequireAdmin は管理者でないユーザーに対してFORBIDDENを返す。
func RequireAdmin(user *model.User) error {
	if user == nil {
		return model.NewUnauthenticatedError()
	}
	if !user.IsAdmin {
		return model.NewForbiddenError("この操作には管理者権限が必要です。")
	}
	return nil
}

// Logout はセッションを破棄する。空トークンや未知のトークンでもエラーにしない。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("user logged out")
	return nil
}

// DeleteUserSessions は指定ユーザーの全セッションを破棄する。
func (s *Service) DeleteUserSessions(ctx context.Context, userID int64) error {
	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}
