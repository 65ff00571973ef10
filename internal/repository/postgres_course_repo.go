package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/coursecrm/internal/model"
)

// PostgresCourseRepo はPostgreSQLを使用した講座リポジトリ。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

// FindByID は指定IDの講座を取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByID(ctx context.Context, id int64) (*model.Course, error) {
	var (
		c           model.Course
		description sql.NullString
		createdBy   sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, price, created_by, created_at FROM courses WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Title, &description, &c.Price, &createdBy, &c.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course by ID: %w", err)
	}

	c.Description = description.String
	c.CreatedBy = createdBy.Int64
	return &c, nil
}

// Create は講座を作成する。空の説明文はNULLとして保存する。
func (r *PostgresCourseRepo) Create(ctx context.Context, course *model.Course) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO courses (title, description, price, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		course.Title,
		sql.NullString{String: course.Description, Valid: course.Description != ""},
		course.Price,
		sql.NullInt64{Int64: course.CreatedBy, Valid: course.CreatedBy != 0},
	).Scan(&course.ID, &course.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert course: %w", err)
	}
	return nil
}

// List はID昇順で講座一覧を返す。
func (r *PostgresCourseRepo) List(ctx context.Context, offset, limit int) ([]*model.Course, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, price, created_by, created_at
		 FROM courses ORDER BY id OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	courses := make([]*model.Course, 0, limit)
	for rows.Next() {
		var (
			c           model.Course
			description sql.NullString
			createdBy   sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Title, &description, &c.Price, &createdBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		c.Description = description.String
		c.CreatedBy = createdBy.Int64
		courses = append(courses, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}
	return courses, nil
}

// compile-time interface check
var _ CourseRepository = (*PostgresCourseRepo)(nil)
