package db

import (
	"context"
	"database/sql"
)

// selectNotification は既読者一覧を json_group_array で1列にまとめて取得する。
const selectNotification = `SELECT n.id, n.title, n.message, n.audience, n.target_role, n.target_user, n.created_at,
       (SELECT json_group_array(r.principal_id) FROM notification_reads r WHERE r.notification_id = n.id) AS read_by
FROM notifications n
`

// audienceFilter はプリンシパルが配信対象に含まれる通知に絞り込む。
// パラメータはロール、プリンシパルIDの順。
const audienceFilter = `(n.audience = 'global'
   OR (n.audience = 'role' AND n.target_role = ?)
   OR (n.audience = 'user' AND n.target_user = ?))`

const newestFirst = `ORDER BY n.created_at DESC, n.rowid DESC`

const createNotification = `INSERT INTO notifications (id, title, message, audience, target_role, target_user, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// CreateNotificationParams は CreateNotification のパラメータ。
type CreateNotificationParams struct {
	ID         string
	Title      string
	Message    string
	Audience   string
	TargetRole sql.NullString
	TargetUser sql.NullString
	CreatedAt  int64
}

// CreateNotification は通知を1件挿入する。
func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) error {
	_, err := q.db.ExecContext(ctx, createNotification,
		arg.ID,
		arg.Title,
		arg.Message,
		arg.Audience,
		arg.TargetRole,
		arg.TargetUser,
		arg.CreatedAt,
	)
	return err
}

const getNotification = selectNotification + `WHERE n.id = ?`

// GetNotification はIDで通知を1件取得する。
func (q *Queries) GetNotification(ctx context.Context, id string) (Notification, error) {
	row := q.db.QueryRowContext(ctx, getNotification, id)
	var i Notification
	err := scanNotification(row, &i)
	return i, err
}

const notificationExists = `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = ?)`

// NotificationExists は通知が存在するかどうかを返す。
func (q *Queries) NotificationExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, notificationExists, id).Scan(&exists)
	return exists, err
}

// ListForPrincipalParams は配信対象で絞り込むクエリのパラメータ。
type ListForPrincipalParams struct {
	Role        string
	PrincipalID string
}

const listForPrincipal = selectNotification + `WHERE ` + audienceFilter + `
` + newestFirst

// ListForPrincipal はプリンシパルが配信対象に含まれる通知を新しい順に返す。
func (q *Queries) ListForPrincipal(ctx context.Context, arg ListForPrincipalParams) ([]Notification, error) {
	return q.list(ctx, listForPrincipal, arg.Role, arg.PrincipalID)
}

const listUnreadForPrincipal = selectNotification + `WHERE ` + audienceFilter + `
  AND NOT EXISTS (SELECT 1 FROM notification_reads r WHERE r.notification_id = n.id AND r.principal_id = ?)
` + newestFirst

// ListUnreadForPrincipal はプリンシパルがまだ既読にしていない通知を新しい順に返す。
func (q *Queries) ListUnreadForPrincipal(ctx context.Context, arg ListForPrincipalParams) ([]Notification, error) {
	return q.list(ctx, listUnreadForPrincipal, arg.Role, arg.PrincipalID, arg.PrincipalID)
}

const markRead = `INSERT OR IGNORE INTO notification_reads (notification_id, principal_id, read_at)
SELECT id, ?, ? FROM notifications WHERE id = ?`

// MarkReadParams は MarkRead のパラメータ。
type MarkReadParams struct {
	NotificationID string
	PrincipalID    string
	ReadAt         int64
}

// MarkRead は既読を記録し、新たに記録した件数を返す。
// 既に既読の場合と通知が存在しない場合はどちらも0件になる。
func (q *Queries) MarkRead(ctx context.Context, arg MarkReadParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markRead, arg.PrincipalID, arg.ReadAt, arg.NotificationID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markAllRead = `INSERT OR IGNORE INTO notification_reads (notification_id, principal_id, read_at)
SELECT n.id, ?, ? FROM notifications n WHERE ` + audienceFilter

// MarkAllReadParams は MarkAllRead のパラメータ。
type MarkAllReadParams struct {
	Role        string
	PrincipalID string
	ReadAt      int64
}

// MarkAllRead はプリンシパルが配信対象に含まれる全通知を既読にし、新たに記録した件数を返す。
func (q *Queries) MarkAllRead(ctx context.Context, arg MarkAllReadParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markAllRead, arg.PrincipalID, arg.ReadAt, arg.Role, arg.PrincipalID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) list(ctx context.Context, query string, args ...any) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		var i Notification
		if err := scanNotification(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(s scanner, i *Notification) error {
	return s.Scan(
		&i.ID,
		&i.Title,
		&i.Message,
		&i.Audience,
		&i.TargetRole,
		&i.TargetUser,
		&i.CreatedAt,
		&i.ReadBy,
	)
}
