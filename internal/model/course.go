// Package model はドメインモデルを定義する。
package model

import "time"

// Course はオンライン講座を表す。
type Course struct {
	ID          int64
	Title       string
	Description string
	Price       float64
	CreatedBy   int64 // 作成した管理者のユーザーID
	CreatedAt   time.Time
}
