// Package model はドメインモデルを定義する。
package model

import "time"

// EventType はドメインイベントの種別（event_type 識別子）を表す。
type EventType string

const (
	// EventUserCreated はユーザー登録イベント。
	EventUserCreated EventType = "user.created"
	// EventUserLoggedIn はログインイベント。
	EventUserLoggedIn EventType = "user.logged_in"
	// EventCourseCreated は講座作成イベント。
	EventCourseCreated EventType = "course.created"
)

// EventEnvelope は受信したイベントの識別子だけを取り出すための構造体。
type EventEnvelope struct {
	EventType EventType `json:"event_type"`
}

// UserCreatedEvent はユーザー登録時に user-events トピックへ送信される。
type UserCreatedEvent struct {
	EventType EventType `json:"event_type"`
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	IsAdmin   bool      `json:"is_admin"`
	Timestamp string    `json:"timestamp"`
}

// UserLoggedInEvent はログイン成功時に user-events トピックへ送信される。
type UserLoggedInEvent struct {
	EventType EventType `json:"event_type"`
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Timestamp string    `json:"timestamp"`
}

// CourseCreatedEvent は講座作成時に course-events トピックへ送信される。
type CourseCreatedEvent struct {
	EventType EventType `json:"event_type"`
	CourseID  int64     `json:"course_id"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	CreatedBy int64     `json:"created_by"`
	Timestamp string    `json:"timestamp"`
}

// NewUserCreatedEvent はユーザーからuser.createdイベントを生成する。
func NewUserCreatedEvent(u *User, at time.Time) UserCreatedEvent {
	return UserCreatedEvent{
		EventType: EventUserCreated,
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Age:       u.Age,
		IsAdmin:   u.IsAdmin,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// NewUserLoggedInEvent はユーザーからuser.logged_inイベントを生成する。
func NewUserLoggedInEvent(u *User, at time.Time) UserLoggedInEvent {
	return UserLoggedInEvent{
		EventType: EventUserLoggedIn,
		UserID:    u.ID,
		Email:     u.Email,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// NewCourseCreatedEvent は講座からcourse.createdイベントを生成する。
func NewCourseCreatedEvent(c *Course, at time.Time) CourseCreatedEvent {
	return CourseCreatedEvent{
		EventType: EventCourseCreated,
		CourseID:  c.ID,
		Title:     c.Title,
		Price:     c.Price,
		CreatedBy: c.CreatedBy,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}
