package event

import (
	"context"
	"log/slog"

	"github.com/hitoshi/coursecrm/internal/model"
)

// NewUserEventsDispatcher は user-events トピック用のDispatcherを生成する。
// 受信したイベントの内容をログに記録する。
func NewUserEventsDispatcher(logger *slog.Logger) *Dispatcher {
	d := NewDispatcher()
	d.Register(model.EventUserCreated, Typed(func(_ context.Context, ev model.UserCreatedEvent) error {
		logger.Info("ユーザー登録イベントを受信しました",
			slog.Int64("user_id", ev.UserID),
			slog.String("email", ev.Email),
			slog.String("name", ev.Name),
			slog.Int("age", ev.Age),
			slog.Bool("is_admin", ev.IsAdmin),
			slog.String("timestamp", ev.Timestamp),
		)
		return nil
	}))
	d.Register(model.EventUserLoggedIn, Typed(func(_ context.Context, ev model.UserLoggedInEvent) error {
		logger.Info("ログインイベントを受信しました",
			slog.Int64("user_id", ev.UserID),
			slog.String("email", ev.Email),
			slog.String("timestamp", ev.Timestamp),
		)
		return nil
	}))
	return d
}

// NewCourseEventsDispatcher は course-events トピック用のDispatcherを生成する。
func NewCourseEventsDispatcher(logger *slog.Logger) *Dispatcher {
	d := NewDispatcher()
	d.Register(model.EventCourseCreated, Typed(func(_ context.Context, ev model.CourseCreatedEvent) error {
		logger.Info("講座作成イベントを受信しました",
			slog.Int64("course_id", ev.CourseID),
			slog.String("title", ev.Title),
			slog.Float64("price", ev.Price),
			slog.Int64("created_by", ev.CreatedBy),
			slog.String("timestamp", ev.Timestamp),
		)
		return nil
	}))
	return d
}
