package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/notifyhub/internal/apperror"
	"github.com/nao1215/notifyhub/internal/storage"
)

// Store はSQLiteのprincipalsテーブルを参照するディレクトリ。
type Store struct {
	db *sql.DB
}

var _ Directory = (*Store)(nil)

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create はプリンシパルを登録し、登録した内容を返す。
// 通常は認証サービスが登録するため、開発用データ投入とテストで使用する。
// IDはUUIDである必要があり、小文字の正規形で保存する。
func (s *Store) Create(ctx context.Context, p Principal, passwordHash string) (Principal, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: IDはUUIDである必要があります: %q", apperror.ErrInvalidInput, p.ID)
	}
	if !p.Role.Valid() {
		return Principal{}, fmt.Errorf("%w: 不明なロールです: %q", apperror.ErrInvalidInput, p.Role)
	}
	p.ID = id.String()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO principals (id, email, name, role, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.Name, string(p.Role), passwordHash, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("プリンシパルの登録に失敗: %w", err)
	}
	return p, nil
}

// FindByID はIDでプリンシパルを取得する。
func (s *Store) FindByID(ctx context.Context, id string) (Principal, error) {
	var (
		p    Principal
		role string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, role FROM principals WHERE id = ?`, id,
	).Scan(&p.ID, &p.Email, &p.Name, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return Principal{}, ErrNoPrincipal
	}
	if err != nil {
		return Principal{}, apperror.Unavailable("プリンシパルの取得", err)
	}
	p.Role = Role(role)
	return p, nil
}

// predicateSQL は照合条件をSQLの条件式に変換する。
func predicateSQL(p Predicate) (string, error) {
	switch p.Kind {
	case MatchID:
		return "id = ?", nil
	case MatchEmailFold:
		return storage.FoldFunc + "(email) = " + storage.FoldFunc + "(?)", nil
	case MatchEmailExact:
		return "email = ? COLLATE BINARY", nil
	case MatchName:
		return "name = ? COLLATE BINARY", nil
	case MatchNamePattern:
		// 組み込みのLIKEはASCIIしか畳み込まないため、両辺を畳み込んでから比較する。
		return storage.FoldFunc + "(name) LIKE " + storage.FoldFunc + `(?) ESCAPE '\'`, nil
	default:
		return "", fmt.Errorf("未対応の照合方法です: %d", p.Kind)
	}
}

// Lookup は全条件をORで結合した1回の問い合わせで候補を取得する。
// 各行には一致した条件のうち最も優先度の高いもののインデックスを付与する。
func (s *Store) Lookup(ctx context.Context, predicates []Predicate) ([]Match, error) {
	if len(predicates) == 0 {
		return nil, nil
	}

	cases := make([]string, 0, len(predicates))
	conds := make([]string, 0, len(predicates))
	caseArgs := make([]any, 0, len(predicates))
	condArgs := make([]any, 0, len(predicates))
	for i, p := range predicates {
		cond, err := predicateSQL(p)
		if err != nil {
			return nil, err
		}
		cases = append(cases, fmt.Sprintf("WHEN %s THEN %d", cond, i))
		conds = append(conds, "("+cond+")")
		caseArgs = append(caseArgs, p.Value)
		condArgs = append(condArgs, p.Value)
	}

	query := "SELECT id, email, name, role, CASE " + strings.Join(cases, " ") + " END AS tier" +
		" FROM principals WHERE " + strings.Join(conds, " OR ") +
		" ORDER BY tier, id"

	rows, err := s.db.QueryContext(ctx, query, append(caseArgs, condArgs...)...)
	if err != nil {
		return nil, apperror.Unavailable("プリンシパルの検索", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []Match
	for rows.Next() {
		var (
			m    Match
			role string
		)
		if err := rows.Scan(&m.Principal.ID, &m.Principal.Email, &m.Principal.Name, &role, &m.Tier); err != nil {
			return nil, apperror.Unavailable("プリンシパルの読み取り", err)
		}
		m.Principal.Role = Role(role)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Unavailable("プリンシパルの検索", err)
	}
	return matches, nil
}
