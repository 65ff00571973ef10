// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/coursecrm/internal/model"
)

// ErrDuplicateEmail はusers.emailのユニーク制約違反を表す。
// 事前チェックをすり抜けた同時登録もこのエラーで検出される。
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレス（完全一致）でユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDとcreated_atをuserに設定する。
	// emailが重複している場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// List はID昇順でユーザー一覧を返す。
	List(ctx context.Context, offset, limit int) ([]*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id int64) error
}

// CourseRepository は講座データの永続化インターフェース。
type CourseRepository interface {
	// FindByID は指定IDの講座を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Course, error)

	// Create は講座を作成し、採番されたIDとcreated_atをcourseに設定する。
	Create(ctx context.Context, course *model.Course) error

	// List はID昇順で講座一覧を返す。
	List(ctx context.Context, offset, limit int) ([]*model.Course, error)
}
