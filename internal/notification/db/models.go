package db

import "database/sql"

// Notification は notifications テーブルの1行に既読者一覧を加えたもの。
type Notification struct {
	ID         string
	Title      string
	Message    string
	Audience   string
	TargetRole sql.NullString
	TargetUser sql.NullString
	CreatedAt  int64
	// ReadBy は既読にしたプリンシパルIDのJSON配列。
	ReadBy string
}
