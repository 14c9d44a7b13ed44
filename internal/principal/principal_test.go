package principal

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/nao1215/notifyhub/internal/apperror"
	"github.com/nao1215/notifyhub/internal/storage"
)

const testPrincipalID = "3c9e4b7a-2d1f-4a6b-8e5c-9f0a1b2c3d4e"

// setupTestStore はインメモリSQLiteを使うStoreを構築する。
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := storage.Open(t.Context(), storage.Memory)
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

// createTestPrincipal はテスト用にプリンシパルを登録するヘルパー関数。
func createTestPrincipal(t *testing.T, s *Store, id, email, name string, role Role) Principal {
	t.Helper()
	p, err := s.Create(t.Context(), Principal{ID: id, Email: email, Name: name, Role: role}, "hash")
	if err != nil {
		t.Fatalf("テスト用プリンシパルの作成に失敗: %v", err)
	}
	return p
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	t.Run("認識されるロールを変換できる", func(t *testing.T) {
		t.Parallel()
		for _, in := range []string{"user", " admin "} {
			r, err := ParseRole(in)
			if err != nil {
				t.Errorf("ParseRole(%q)でエラーが発生: %v", in, err)
			}
			if !r.Valid() {
				t.Errorf("ParseRole(%q) = %q は有効でない", in, r)
			}
		}
	})

	t.Run("不明なロールはErrInvalidInput", func(t *testing.T) {
		t.Parallel()
		for _, in := range []string{"", "Admin", "root"} {
			if _, err := ParseRole(in); !errors.Is(err, apperror.ErrInvalidInput) {
				t.Errorf("ParseRole(%q) err = %v, want ErrInvalidInput", in, err)
			}
		}
	})
}

func TestContext(t *testing.T) {
	t.Parallel()

	p := Principal{ID: "p-1", Email: "a@example.com", Name: "A", Role: RoleAdmin}
	ctx := WithContext(context.Background(), p)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("FromContext()がfalseを返した")
	}
	if got != p {
		t.Errorf("FromContext() = %+v, want %+v", got, p)
	}
	if !got.IsAdmin() {
		t.Error("IsAdmin()がfalseを返した")
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("未設定のコンテキストでtrueが返された")
	}
}

func TestStoreFindByID(t *testing.T) {
	t.Parallel()

	t.Run("登録済みのプリンシパルを取得できる", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)
		want := createTestPrincipal(t, s, testPrincipalID, "alice@example.com", "Alice", RoleUser)

		got, err := s.FindByID(t.Context(), testPrincipalID)
		if err != nil {
			t.Fatalf("FindByID()でエラーが発生: %v", err)
		}
		if got != want {
			t.Errorf("FindByID() = %+v, want %+v", got, want)
		}
	})

	t.Run("存在しないIDはErrNoPrincipal", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		if _, err := s.FindByID(t.Context(), "missing"); !errors.Is(err, ErrNoPrincipal) {
			t.Errorf("err = %v, want ErrNoPrincipal", err)
		}
	})

	t.Run("DBが閉じている場合はErrUnavailable", func(t *testing.T) {
		t.Parallel()
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			t.Fatalf("DBの作成に失敗: %v", err)
		}
		db.Close()

		if _, err := NewStore(db).FindByID(t.Context(), testPrincipalID); !errors.Is(err, apperror.ErrUnavailable) {
			t.Errorf("err = %v, want ErrUnavailable", err)
		}
	})
}

func TestStoreCreate(t *testing.T) {
	t.Parallel()

	t.Run("不明なロールはErrInvalidInput", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		_, err := s.Create(t.Context(), Principal{ID: testPrincipalID, Email: "x@example.com", Name: "X", Role: "root"}, "")
		if !errors.Is(err, apperror.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("UUID以外のIDはErrInvalidInput", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		for _, id := range []string{"alice-01", "", "p-1"} {
			_, err := s.Create(t.Context(), Principal{ID: id, Email: "x@example.com", Name: "X", Role: RoleUser}, "")
			if !errors.Is(err, apperror.ErrInvalidInput) {
				t.Errorf("Create(ID=%q) err = %v, want ErrInvalidInput", id, err)
			}
		}
	})

	t.Run("大文字のUUIDは小文字の正規形で保存されIDで解決できる", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)
		upper := "3C9E4B7A-2D1F-4A6B-8E5C-9F0A1B2C3D4E"

		p, err := s.Create(t.Context(), Principal{ID: upper, Email: "x@example.com", Name: "X", Role: RoleUser}, "")
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		if p.ID != testPrincipalID {
			t.Errorf("ID = %q, want %q", p.ID, testPrincipalID)
		}
		if _, err := s.FindByID(t.Context(), testPrincipalID); err != nil {
			t.Errorf("正規形のIDで取得できない: %v", err)
		}

		got, err := NewResolver(s).Resolve(t.Context(), upper)
		if err != nil {
			t.Fatalf("Resolve()でエラーが発生: %v", err)
		}
		if got.ID != testPrincipalID {
			t.Errorf("Resolve().ID = %q, want %q", got.ID, testPrincipalID)
		}
	})
}

func TestStoreLookup(t *testing.T) {
	t.Parallel()

	t.Run("一致した最も優先度の高い条件をTierとして返す", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)
		createTestPrincipal(t, s, testPrincipalID, "alice@example.com", "Alice", RoleUser)

		matches, err := s.Lookup(t.Context(), []Predicate{
			{Kind: MatchEmailFold, Value: "ALICE@example.com"},
			{Kind: MatchName, Value: "Alice"},
		})
		if err != nil {
			t.Fatalf("Lookup()でエラーが発生: %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("一致数 = %d, want 1", len(matches))
		}
		if matches[0].Tier != 0 {
			t.Errorf("Tier = %d, want 0", matches[0].Tier)
		}
	})

	t.Run("大文字小文字を区別する照合では異なる表記に一致しない", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)
		createTestPrincipal(t, s, testPrincipalID, "alice@example.com", "Alice", RoleUser)

		matches, err := s.Lookup(t.Context(), []Predicate{
			{Kind: MatchEmailExact, Value: "ALICE@example.com"},
			{Kind: MatchName, Value: "alice"},
		})
		if err != nil {
			t.Fatalf("Lookup()でエラーが発生: %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("一致数 = %d, want 0", len(matches))
		}
	})

	t.Run("条件が空なら何も返さない", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		matches, err := s.Lookup(t.Context(), nil)
		if err != nil || matches != nil {
			t.Errorf("Lookup(nil) = (%v, %v), want (nil, nil)", matches, err)
		}
	})

	t.Run("未対応の照合方法はエラー", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		if _, err := s.Lookup(t.Context(), []Predicate{{Kind: MatchKind(99), Value: "x"}}); err == nil {
			t.Error("エラーが返されるべき")
		}
	})
}
