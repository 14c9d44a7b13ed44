package principal

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/nao1215/notifyhub/internal/apperror"
)

// Resolver は管理者が入力した自由形式の識別子から宛先プリンシパルを1人に特定する。
//
// 部分一致は行わない。ID以外の照合はすべて完全一致（表示名の大文字小文字を
// 区別しない照合もメタ文字をエスケープした全体一致）とする。
type Resolver struct {
	dir Directory
}

// NewResolver は新しいResolverを生成する。
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Predicates は識別子から優先度順の照合条件を組み立てる。
// identifier は前後の空白を除去済みである必要がある。
func Predicates(identifier string) []Predicate {
	preds := make([]Predicate, 0, 5)
	if id, err := uuid.Parse(identifier); err == nil {
		preds = append(preds, Predicate{Kind: MatchID, Value: id.String()})
	}
	return append(preds,
		Predicate{Kind: MatchEmailFold, Value: identifier},
		Predicate{Kind: MatchEmailExact, Value: identifier},
		Predicate{Kind: MatchName, Value: identifier},
		Predicate{Kind: MatchNamePattern, Value: EscapeLike(identifier)},
	)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike はLIKEパターンのメタ文字をエスケープし、入力を文字どおりに扱わせる。
// エスケープ文字は '\'。
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Resolve は識別子に一致するプリンシパルを返す。
//
// 最も優先度の高い条件に複数のプリンシパルが一致した場合は、誤配信を避けるため
// apperror.ErrAmbiguousRecipient を返す。
func (r *Resolver) Resolve(ctx context.Context, identifier string) (Principal, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Principal{}, apperror.ErrEmptyIdentifier
	}

	matches, err := r.dir.Lookup(ctx, Predicates(identifier))
	if err != nil {
		return Principal{}, err
	}
	if len(matches) == 0 {
		return Principal{}, &apperror.RecipientError{Identifier: identifier, Err: apperror.ErrRecipientNotFound}
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.Tier == best.Tier && m.Principal.ID != best.Principal.ID {
			return Principal{}, &apperror.RecipientError{Identifier: identifier, Err: apperror.ErrAmbiguousRecipient}
		}
	}
	return best.Principal, nil
}
