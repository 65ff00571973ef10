// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/hitoshi/coursecrm/internal/event"
	"github.com/hitoshi/coursecrm/internal/model"
	"github.com/hitoshi/coursecrm/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher はパスワードのハッシュ化インターフェース。
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// SessionDeleter はユーザーの全セッションを削除するインターフェース。
type SessionDeleter interface {
	DeleteByUserID(ctx context.Context, userID int64) error
}

// CreateInput はユーザー登録の入力。
type CreateInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// Validate は入力値を検証する。
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, validation.Length(3, 320), is.Email),
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Age, validation.Required, validation.Min(10), validation.Max(120)),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 72)),
	)
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	sessions  SessionDeleter
	hasher    PasswordHasher
	publisher event.Publisher
	topic     string
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// topicは user.created の送信先。
func NewService(
	userRepo repository.UserRepository,
	sessions SessionDeleter,
	hasher PasswordHasher,
	publisher event.Publisher,
	topic string,
) *Service {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	return &Service{
		userRepo:  userRepo,
		sessions:  sessions,
		hasher:    hasher,
		publisher: publisher,
		topic:     topic,
		now:       time.Now,
	}
}

// Create はユーザーを登録し、user.created を送信する。
// メールアドレスが登録済みの場合はEMAIL_ALREADY_REGISTEREDを返し、イベントは送信しない。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.User, error) {
	if err := in.Validate(); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailAlreadyRegisteredError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, model.NewValidationError("password: the length must be no more than 72 bytes.")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &model.User{
		Email:        in.Email,
		Name:         in.Name,
		Age:          in.Age,
		PasswordHash: hash,
		IsAdmin:      in.IsAdmin,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailAlreadyRegisteredError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created",
		slog.Int64("user_id", u.ID),
		slog.Bool("is_admin", u.IsAdmin),
	)

	s.publisher.Publish(ctx, s.topic, model.NewUserCreatedEvent(u, s.now()), strconv.FormatInt(u.ID, 10))
	return u, nil
}

// Get は指定IDのユーザーを返す。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// List はID昇順でユーザー一覧を返す。
func (s *Service) List(ctx context.Context, skip, limit int) ([]*model.User, error) {
	skip, limit = model.NormalizePage(skip, limit)
	users, err := s.userRepo.List(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user。講座のcreated_byはNULLになる。
func (s *Service) Withdraw(ctx context.Context, userID int64) error {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("withdrawing user", slog.Int64("user_id", userID))

	if s.sessions != nil {
		if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete user sessions: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user withdrawn", slog.Int64("user_id", userID))
	return nil
}
