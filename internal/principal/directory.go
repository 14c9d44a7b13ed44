package principal

import (
	"context"
	"errors"
)

// ErrNoPrincipal はディレクトリに該当するプリンシパルが存在しないことを表す。
var ErrNoPrincipal = errors.New("プリンシパルが存在しません")

// MatchKind は宛先解決で使う照合方法を表す。
type MatchKind int

const (
	// MatchID はIDの完全一致。
	MatchID MatchKind = iota
	// MatchEmailFold は大文字小文字を区別しないメールアドレスの完全一致。
	MatchEmailFold
	// MatchEmailExact は大文字小文字を区別するメールアドレスの完全一致。
	MatchEmailExact
	// MatchName は表示名の完全一致。
	MatchName
	// MatchNamePattern は表示名全体に対する大文字小文字を区別しないパターン一致。
	// 値はメタ文字をエスケープ済みのLIKEパターンである必要がある。
	MatchNamePattern
)

// String は照合方法の名前を返す。
func (k MatchKind) String() string {
	switch k {
	case MatchID:
		return "id"
	case MatchEmailFold:
		return "email_fold"
	case MatchEmailExact:
		return "email_exact"
	case MatchName:
		return "name"
	case MatchNamePattern:
		return "name_pattern"
	default:
		return "unknown"
	}
}

// Predicate は照合条件の1つ。
type Predicate struct {
	Kind  MatchKind
	Value string
}

// Match はディレクトリ検索の結果1件。
type Match struct {
	Principal Principal
	// Tier は一致した条件のうち最も優先度の高いもののインデックス。
	Tier int
}

// Directory はプリンシパルの参照先。
type Directory interface {
	// FindByID はIDでプリンシパルを取得する。存在しなければ ErrNoPrincipal を返す。
	FindByID(ctx context.Context, id string) (Principal, error)
	// Lookup は条件のいずれかに一致するプリンシパルを1回の問い合わせで取得し、
	// Tier の昇順に返す。
	Lookup(ctx context.Context, predicates []Predicate) ([]Match, error)
}
