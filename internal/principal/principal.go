package principal

import (
	"context"
	"fmt"
	"strings"

	"github.com/nao1215/notifyhub/internal/apperror"
)

// Role はプリンシパルのロールを表す。
type Role string

const (
	// RoleUser は一般ユーザーを表す。
	RoleUser Role = "user"
	// RoleAdmin は通知を配信できる管理者を表す。
	RoleAdmin Role = "admin"
)

// Roles は認識されるロールの一覧。
var Roles = []Role{RoleUser, RoleAdmin}

// Valid はロールが認識される値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole は文字列をロールに変換する。前後の空白は無視する。
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("%w: 不明なロールです: %q", apperror.ErrInvalidInput, s)
	}
	return r, nil
}

// Principal は認証済みアカウントを表す。値として受け渡し、変更しない。
type Principal struct {
	// ID はプリンシパルの一意識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Name は表示名。
	Name string `json:"name"`
	// Role はロール。
	Role Role `json:"role"`
}

// IsAdmin は管理者かどうかを返す。
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type contextKey struct{}

// WithContext はプリンシパルをコンテキストに束縛する。
func WithContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext はコンテキストに束縛されたプリンシパルを返す。
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}
