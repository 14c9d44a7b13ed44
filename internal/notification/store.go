package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/notifyhub/internal/apperror"
	notificationdb "github.com/nao1215/notifyhub/internal/notification/db"
	"github.com/nao1215/notifyhub/internal/principal"
)

// Store は通知の永続化を担う。
// 既読の記録は (通知, プリンシパル) の組の追記のみで行うため、
// 同じ通知への並行した既読化が互いの記録を失わせることはない。
type Store struct {
	queries *notificationdb.Queries
	now     func() time.Time
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{
		queries: notificationdb.New(db),
		now:     time.Now,
	}
}

// Create は通知を保存する。
func (s *Store) Create(ctx context.Context, n Notification) error {
	if err := n.Audience.Validate(); err != nil {
		return err
	}
	params := notificationdb.CreateNotificationParams{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Audience:  string(n.Audience.Kind),
		CreatedAt: n.CreatedAt.UnixNano(),
	}
	if n.Audience.Kind == AudienceRole {
		params.TargetRole = sql.NullString{String: string(n.Audience.Role), Valid: true}
	}
	if n.Audience.Kind == AudienceUser {
		params.TargetUser = sql.NullString{String: n.Audience.UserID, Valid: true}
	}
	if err := s.queries.CreateNotification(ctx, params); err != nil {
		return apperror.Unavailable("通知の保存", err)
	}
	return nil
}

// Get はIDで通知を取得する。存在しない場合は apperror.ErrNotFound を返す。
func (s *Store) Get(ctx context.Context, id string) (Notification, error) {
	row, err := s.queries.GetNotification(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, fmt.Errorf("%w: %s", apperror.ErrNotFound, id)
	}
	if err != nil {
		return Notification{}, apperror.Unavailable("通知の取得", err)
	}
	return fromRow(row)
}

// ListFor は全体通知、プリンシパルのロール宛て通知、プリンシパル個人宛て通知を
// 新しい順に返す。
func (s *Store) ListFor(ctx context.Context, p principal.Principal) ([]Notification, error) {
	rows, err := s.queries.ListForPrincipal(ctx, notificationdb.ListForPrincipalParams{
		Role:        string(p.Role),
		PrincipalID: p.ID,
	})
	if err != nil {
		return nil, apperror.Unavailable("通知一覧の取得", err)
	}
	return fromRows(rows)
}

// ListUnreadFor は ListFor のうちプリンシパルが未読のものを返す。
func (s *Store) ListUnreadFor(ctx context.Context, p principal.Principal) ([]Notification, error) {
	rows, err := s.queries.ListUnreadForPrincipal(ctx, notificationdb.ListForPrincipalParams{
		Role:        string(p.Role),
		PrincipalID: p.ID,
	})
	if err != nil {
		return nil, apperror.Unavailable("未読通知一覧の取得", err)
	}
	return fromRows(rows)
}

// MarkRead はプリンシパルを通知の既読者に加える。既に既読でも成功する。
// 配信対象に含まれるかどうかは確認しない。
// 通知が存在しない場合は apperror.ErrNotFound を返す。
func (s *Store) MarkRead(ctx context.Context, p principal.Principal, id string) error {
	added, err := s.queries.MarkRead(ctx, notificationdb.MarkReadParams{
		NotificationID: id,
		PrincipalID:    p.ID,
		ReadAt:         s.now().UnixNano(),
	})
	if err != nil {
		return apperror.Unavailable("既読の記録", err)
	}
	if added > 0 {
		return nil
	}

	exists, err := s.queries.NotificationExists(ctx, id)
	if err != nil {
		return apperror.Unavailable("通知の存在確認", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", apperror.ErrNotFound, id)
	}
	return nil
}

// MarkAllRead はプリンシパルが配信対象に含まれる全通知を既読にし、新たに既読にした件数を返す。
func (s *Store) MarkAllRead(ctx context.Context, p principal.Principal) (int64, error) {
	added, err := s.queries.MarkAllRead(ctx, notificationdb.MarkAllReadParams{
		Role:        string(p.Role),
		PrincipalID: p.ID,
		ReadAt:      s.now().UnixNano(),
	})
	if err != nil {
		return 0, apperror.Unavailable("一括既読の記録", err)
	}
	return added, nil
}

func fromRows(rows []notificationdb.Notification) ([]Notification, error) {
	items := make([]Notification, 0, len(rows))
	for _, row := range rows {
		n, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, nil
}

func fromRow(row notificationdb.Notification) (Notification, error) {
	var readBy []string
	if row.ReadBy != "" {
		if err := json.Unmarshal([]byte(row.ReadBy), &readBy); err != nil {
			return Notification{}, fmt.Errorf("既読者一覧のデコードに失敗 (%s): %w", row.ID, err)
		}
	}
	return Notification{
		ID:      row.ID,
		Title:   row.Title,
		Message: row.Message,
		Audience: Audience{
			Kind:   AudienceKind(row.Audience),
			Role:   principal.Role(row.TargetRole.String),
			UserID: row.TargetUser.String,
		},
		ReadBy:    NewReadSet(readBy...),
		CreatedAt: time.Unix(0, row.CreatedAt).UTC(),
	}, nil
}
