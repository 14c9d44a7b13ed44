package notification

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/notifyhub/internal/apperror"
	"github.com/nao1215/notifyhub/internal/hub"
	"github.com/nao1215/notifyhub/internal/principal"
)

// AudienceKind は通知の配信対象の種類を表す。
type AudienceKind string

const (
	// AudienceGlobal は全員。
	AudienceGlobal AudienceKind = "global"
	// AudienceRole は特定ロールの全員。
	AudienceRole AudienceKind = "role"
	// AudienceUser は特定の1人。
	AudienceUser AudienceKind = "user"
)

// Audience は配信対象。Kind に応じて Role か UserID のどちらか一方だけを持つ。
type Audience struct {
	Kind   AudienceKind
	Role   principal.Role
	UserID string
}

// GlobalAudience は全員を対象とするAudienceを返す。
func GlobalAudience() Audience {
	return Audience{Kind: AudienceGlobal}
}

// RoleAudience はロールを対象とするAudienceを返す。
func RoleAudience(r principal.Role) Audience {
	return Audience{Kind: AudienceRole, Role: r}
}

// UserAudience は特定のプリンシパルを対象とするAudienceを返す。
func UserAudience(id string) Audience {
	return Audience{Kind: AudienceUser, UserID: id}
}

// Validate は種類と対象フィールドの組み合わせを検証する。
func (a Audience) Validate() error {
	switch a.Kind {
	case AudienceGlobal:
		if a.Role == "" && a.UserID == "" {
			return nil
		}
	case AudienceRole:
		if a.Role.Valid() && a.UserID == "" {
			return nil
		}
	case AudienceUser:
		if a.UserID != "" && a.Role == "" {
			return nil
		}
	}
	return fmt.Errorf("%w: 配信対象が不正です: %+v", apperror.ErrInvalidInput, a)
}

// Includes はプリンシパルが配信対象に含まれるかどうかを返す。
func (a Audience) Includes(p principal.Principal) bool {
	switch a.Kind {
	case AudienceGlobal:
		return true
	case AudienceRole:
		return a.Role == p.Role
	case AudienceUser:
		return a.UserID == p.ID
	default:
		return false
	}
}

// Channel は配信に使うチャネル名を返す。
func (a Audience) Channel() string {
	switch a.Kind {
	case AudienceRole:
		return hub.RoleChannel(a.Role)
	case AudienceUser:
		return hub.PrivateChannel(a.UserID)
	default:
		return hub.Everyone
	}
}

// ReadSet は通知を既読にしたプリンシパルIDの集合。
type ReadSet map[string]struct{}

// NewReadSet はIDの一覧から集合を作る。重複は1つにまとめる。
func NewReadSet(ids ...string) ReadSet {
	s := make(ReadSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has はIDが集合に含まれるかどうかを返す。
func (s ReadSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs はIDを昇順で返す。
func (s ReadSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MarshalJSON は集合をID昇順の配列として出力する。
func (s ReadSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON は配列から集合を復元する。
func (s *ReadSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewReadSet(ids...)
	return nil
}

// Notification は保存済みの通知。
type Notification struct {
	ID        string
	Title     string
	Message   string
	Audience  Audience
	ReadBy    ReadSet
	CreatedAt time.Time
}

// IsReadBy はプリンシパルが既読にしているかどうかを返す。
func (n Notification) IsReadBy(principalID string) bool {
	return n.ReadBy.Has(principalID)
}

// notificationJSON は通知のJSON表現。
type notificationJSON struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Type       AudienceKind   `json:"type"`
	TargetRole principal.Role `json:"targetRole,omitempty"`
	TargetUser string         `json:"targetUser,omitempty"`
	ReadBy     ReadSet        `json:"readBy"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// MarshalJSON は配信対象をtype/targetRole/targetUserに展開して出力する。
func (n Notification) MarshalJSON() ([]byte, error) {
	readBy := n.ReadBy
	if readBy == nil {
		readBy = ReadSet{}
	}
	return json.Marshal(notificationJSON{
		ID:         n.ID,
		Title:      n.Title,
		Message:    n.Message,
		Type:       n.Audience.Kind,
		TargetRole: n.Audience.Role,
		TargetUser: n.Audience.UserID,
		ReadBy:     readBy,
		CreatedAt:  n.CreatedAt,
	})
}

// UnmarshalJSON はJSON表現から通知を復元する。
func (n *Notification) UnmarshalJSON(data []byte) error {
	var v notificationJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Notification{
		ID:        v.ID,
		Title:     v.Title,
		Message:   v.Message,
		Audience:  Audience{Kind: v.Type, Role: v.TargetRole, UserID: v.TargetUser},
		ReadBy:    v.ReadBy,
		CreatedAt: v.CreatedAt,
	}
	if n.ReadBy == nil {
		n.ReadBy = ReadSet{}
	}
	return nil
}

// normalizeContent はタイトルとメッセージの前後の空白を除き、空でないことを検証する。
func normalizeContent(title, message string) (string, string, error) {
	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" {
		return "", "", fmt.Errorf("%w: タイトルが空です", apperror.ErrInvalidInput)
	}
	if message == "" {
		return "", "", fmt.Errorf("%w: メッセージが空です", apperror.ErrInvalidInput)
	}
	return title, message, nil
}
