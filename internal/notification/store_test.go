package notification

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/notifyhub/internal/apperror"
	"github.com/nao1215/notifyhub/internal/principal"
	"github.com/nao1215/notifyhub/internal/storage"
)

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

// createTestNotification はテスト用に通知を保存するヘルパー関数。
// createdAt が同じにならないよう、呼び出し側で時刻を指定する。
func createTestNotification(t *testing.T, s *Store, audience Audience, title string, createdAt time.Time) Notification {
	t.Helper()
	n := Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   title + "の本文",
		Audience:  audience,
		ReadBy:    ReadSet{},
		CreatedAt: createdAt,
	}
	if err := s.Create(t.Context(), n); err != nil {
		t.Fatalf("テスト用通知の作成に失敗: %v", err)
	}
	return n
}

func titles(items []Notification) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.Title)
	}
	return out
}

var (
	testAlice = principal.Principal{ID: "alice-id", Email: "alice@example.com", Name: "Alice", Role: principal.RoleUser}
	testBob   = principal.Principal{ID: "bob-id", Email: "bob@example.com", Name: "Bob", Role: principal.RoleUser}
	testAdmin = principal.Principal{ID: "admin-id", Email: "admin@example.com", Name: "Admin", Role: principal.RoleAdmin}
)

func TestStore_ListFor(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	createTestNotification(t, s, GlobalAudience(), "全体", base)
	createTestNotification(t, s, RoleAudience(principal.RoleUser), "ユーザー向け", base.Add(time.Minute))
	createTestNotification(t, s, RoleAudience(principal.RoleAdmin), "管理者向け", base.Add(2*time.Minute))
	createTestNotification(t, s, UserAudience(testAlice.ID), "Alice宛て", base.Add(3*time.Minute))
	createTestNotification(t, s, UserAudience(testBob.ID), "Bob宛て", base.Add(4*time.Minute))

	tests := []struct {
		name string
		p    principal.Principal
		want []string
	}{
		{"一般ユーザーは全体・自ロール・自分宛てだけを新しい順に見る", testAlice, []string{"Alice宛て", "ユーザー向け", "全体"}},
		{"他人宛ては見えない", testBob, []string{"Bob宛て", "ユーザー向け", "全体"}},
		{"管理者は管理者ロール宛てを見る", testAdmin, []string{"管理者向け", "全体"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := s.ListFor(t.Context(), tt.p)
			if err != nil {
				t.Fatalf("ListFor()でエラーが発生: %v", err)
			}
			if got := titles(items); !slices.Equal(got, tt.want) {
				t.Errorf("ListFor() = %v, want %v", got, tt.want)
			}
			for _, n := range items {
				if !n.Audience.Includes(tt.p) {
					t.Errorf("対象外の通知が含まれている: %+v", n)
				}
			}
		})
	}
}

func TestStore_ListFor_同時刻は後から作成した方が先(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	createTestNotification(t, s, GlobalAudience(), "1件目", at)
	createTestNotification(t, s, GlobalAudience(), "2件目", at)

	items, err := s.ListFor(t.Context(), testAlice)
	if err != nil {
		t.Fatalf("ListFor()でエラーが発生: %v", err)
	}
	if got := titles(items); !slices.Equal(got, []string{"2件目", "1件目"}) {
		t.Errorf("ListFor() = %v", got)
	}
}

func TestStore_ListFor_通知がなければ空(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	items, err := s.ListFor(t.Context(), testAlice)
	if err != nil {
		t.Fatalf("ListFor()でエラーが発生: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("ListFor() = %v, want 空のスライス", items)
	}
}

func TestStore_Get(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	createdAt := time.Date(2026, 4, 1, 9, 0, 0, 123456789, time.UTC)
	want := createTestNotification(t, s, UserAudience(testAlice.ID), "Alice宛て", createdAt)

	got, err := s.Get(t.Context(), want.ID)
	if err != nil {
		t.Fatalf("Get()でエラーが発生: %v", err)
	}
	if got.ID != want.ID || got.Title != want.Title || got.Message != want.Message || got.Audience != want.Audience {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
	if !got.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, createdAt)
	}
	if len(got.ReadBy) != 0 {
		t.Errorf("ReadBy = %v, want 空", got.ReadBy)
	}

	if _, err := s.Get(t.Context(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("存在しないID: err = %v, want ErrNotFound", err)
	}
}

func TestStore_Create_配信対象が不正なら保存しない(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	n := Notification{
		ID:        uuid.NewString(),
		Title:     "t",
		Message:   "m",
		Audience:  Audience{Kind: AudienceRole},
		CreatedAt: time.Now(),
	}
	if err := s.Create(t.Context(), n); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := s.Get(t.Context(), n.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("不正な通知が保存されている: %v", err)
	}
}

func TestStore_MarkRead(t *testing.T) {
	t.Parallel()

	t.Run("既読化は冪等", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)
		n := createTestNotification(t, s, GlobalAudience(), "全体", time.Now())

		for range 2 {
			if err := s.MarkRead(t.Context(), testAlice, n.ID); err != nil {
				t.Fatalf("MarkRead()でエラーが発生: %v", err)
			}
		}

		got, err := s.Get(t.Context(), n.ID)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if ids := got.ReadBy.IDs(); !slices.Equal(ids, []string{testAlice.ID}) {
			t.Errorf("ReadBy = %v, want [%s]", ids, testAlice.ID)
		}
	})

	t.Run("存在しない通知はErrNotFound", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)
		if err := s.MarkRead(t.Context(), testAlice, "missing"); !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("配信対象外の通知も既読にできる", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)
		n := createTestNotification(t, s, UserAudience(testBob.ID), "Bob宛て", time.Now())

		if err := s.MarkRead(t.Context(), testAlice, n.ID); err != nil {
			t.Fatalf("MarkRead()でエラーが発生: %v", err)
		}
		got, err := s.Get(t.Context(), n.ID)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if !got.IsReadBy(testAlice.ID) {
			t.Error("既読者に追加されていない")
		}
	})

	t.Run("並行した既読化はどちらも記録される", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)
		n := createTestNotification(t, s, GlobalAudience(), "全体", time.Now())

		readers := []principal.Principal{testAlice, testBob, testAdmin}
		var wg sync.WaitGroup
		errs := make(chan error, len(readers)*2)
		for _, p := range readers {
			for range 2 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- s.MarkRead(t.Context(), p, n.ID)
				}()
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("MarkRead()でエラーが発生: %v", err)
			}
		}

		got, err := s.Get(t.Context(), n.ID)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		want := []string{testAdmin.ID, testAlice.ID, testBob.ID}
		if ids := got.ReadBy.IDs(); !slices.Equal(ids, want) {
			t.Errorf("ReadBy = %v, want %v", ids, want)
		}
	})
}

func TestStore_ListUnreadForとMarkAllRead(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	global := createTestNotification(t, s, GlobalAudience(), "全体", base)
	createTestNotification(t, s, RoleAudience(principal.RoleUser), "ユーザー向け", base.Add(time.Minute))
	createTestNotification(t, s, UserAudience(testAlice.ID), "Alice宛て", base.Add(2*time.Minute))
	createTestNotification(t, s, UserAudience(testBob.ID), "Bob宛て", base.Add(3*time.Minute))

	if err := s.MarkRead(t.Context(), testAlice, global.ID); err != nil {
		t.Fatalf("MarkRead()でエラーが発生: %v", err)
	}

	unread, err := s.ListUnreadFor(t.Context(), testAlice)
	if err != nil {
		t.Fatalf("ListUnreadFor()でエラーが発生: %v", err)
	}
	if got := titles(unread); !slices.Equal(got, []string{"Alice宛て", "ユーザー向け"}) {
		t.Errorf("ListUnreadFor() = %v", got)
	}

	count, err := s.MarkAllRead(t.Context(), testAlice)
	if err != nil {
		t.Fatalf("MarkAllRead()でエラーが発生: %v", err)
	}
	if count != 2 {
		t.Errorf("MarkAllRead() = %d, want 2", count)
	}

	unread, err = s.ListUnreadFor(t.Context(), testAlice)
	if err != nil {
		t.Fatalf("ListUnreadFor()でエラーが発生: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("全件既読後も未読が残っている: %v", titles(unread))
	}

	// Bobの未読には影響しない
	bobUnread, err := s.ListUnreadFor(t.Context(), testBob)
	if err != nil {
		t.Fatalf("ListUnreadFor()でエラーが発生: %v", err)
	}
	if got := titles(bobUnread); !slices.Equal(got, []string{"Bob宛て", "ユーザー向け", "全体"}) {
		t.Errorf("Bobの未読 = %v", got)
	}

	count, err = s.MarkAllRead(t.Context(), testAlice)
	if err != nil {
		t.Fatalf("MarkAllRead()でエラーが発生: %v", err)
	}
	if count != 0 {
		t.Errorf("2回目のMarkAllRead() = %d, want 0", count)
	}
}
