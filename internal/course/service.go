// Package course は講座管理のドメインロジックを提供する。
package course

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/hitoshi/coursecrm/internal/auth"
	"github.com/hitoshi/coursecrm/internal/event"
	"github.com/hitoshi/coursecrm/internal/model"
	"github.com/hitoshi/coursecrm/internal/repository"
	"github.com/hitoshi/coursecrm/internal/security"
)

// CreateInput は講座作成の入力。
type CreateInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Validate は入力値を検証する。
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(3, 200)),
		validation.Field(&in.Price, validation.Min(0.0)),
	)
}

// Service は講座管理のサービス層。
type Service struct {
	courseRepo repository.CourseRepository
	sanitizer  security.CourseSanitizer
	publisher  event.Publisher
	topic      string
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// topicは course.created の送信先。
func NewService(
	courseRepo repository.CourseRepository,
	sanitizer security.CourseSanitizer,
	publisher event.Publisher,
	topic string,
) *Service {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	return &Service{
		courseRepo: courseRepo,
		sanitizer:  sanitizer,
		publisher:  publisher,
		topic:      topic,
		now:        time.Now,
	}
}

// Create は管理者ユーザーとして講座を作成し、course.created を送信する。
// 管理者でない場合はFORBIDDENを返し、何も保存しない。
func (s *Service) Create(ctx context.Context, actor *model.User, in CreateInput) (*model.Course, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	c := &model.Course{
		Title:       in.Title,
		Description: s.sanitizer.Description(in.Description),
		Price:       in.Price,
		CreatedBy:   actor.ID,
	}
	if err := s.courseRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	slog.Info("course created",
		slog.Int64("course_id", c.ID),
		slog.Int64("created_by", actor.ID),
	)

	s.publisher.Publish(ctx, s.topic, model.NewCourseCreatedEvent(c, s.now()), strconv.FormatInt(c.ID, 10))
	return c, nil
}

// Get は指定IDの講座を返す。存在しない場合はCOURSE_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.Course, error) {
	c, err := s.courseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if c == nil {
		return nil, model.NewCourseNotFoundError()
	}
	return c, nil
}

// List はID昇順で講座一覧を返す。
func (s *Service) List(ctx context.Context, skip, limit int) ([]*model.Course, error) {
	skip, limit = model.NormalizePage(skip, limit)
	courses, err := s.courseRepo.List(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}
