package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeAndHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"認証情報なし", ErrMissingCredential, "MISSING_CREDENTIAL", http.StatusUnauthorized},
		{"ラップされた無効な認証情報", fmt.Errorf("トークン検証: %w", ErrInvalidCredential), "INVALID_CREDENTIAL", http.StatusUnauthorized},
		{"権限なし", ErrNotAuthorized, "NOT_AUTHORIZED", http.StatusForbidden},
		{"入力不正", ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
		{"宛先なし", &RecipientError{Identifier: "x", Err: ErrRecipientNotFound}, "RECIPIENT_NOT_FOUND", http.StatusNotFound},
		{"宛先が曖昧", &RecipientError{Identifier: "x", Err: ErrAmbiguousRecipient}, "AMBIGUOUS_RECIPIENT", http.StatusConflict},
		{"ストレージ障害", Unavailable("通知の保存", errors.New("disk full")), "UNAVAILABLE", http.StatusServiceUnavailable},
		{"未分類", errors.New("boom"), "INTERNAL", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Code(tt.err); got != tt.wantCode {
				t.Errorf("Code() = %q, want %q", got, tt.wantCode)
			}
			if got := HTTPStatus(tt.err); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestIdentifier(t *testing.T) {
	t.Parallel()

	t.Run("RecipientErrorから識別子を取り出せる", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("直接送信: %w", &RecipientError{Identifier: "nobody@nowhere.com", Err: ErrRecipientNotFound})

		id, ok := Identifier(err)
		if !ok {
			t.Fatal("Identifier()がfalseを返した")
		}
		if id != "nobody@nowhere.com" {
			t.Errorf("Identifier() = %q, want %q", id, "nobody@nowhere.com")
		}
		if msg := Message(err); msg != ErrRecipientNotFound.Error()+": nobody@nowhere.com" {
			t.Errorf("Message() = %q", msg)
		}
	})

	t.Run("他のエラーでは識別子を返さない", func(t *testing.T) {
		t.Parallel()
		if _, ok := Identifier(ErrNotFound); ok {
			t.Error("Identifier()がtrueを返した")
		}
	})
}

func TestUnavailable(t *testing.T) {
	t.Parallel()

	if Unavailable("op", nil) != nil {
		t.Error("nilを渡した場合はnilを返すべき")
	}

	cause := errors.New("connection refused")
	err := Unavailable("プリンシパル取得", cause)
	if !errors.Is(err, ErrUnavailable) {
		t.Error("ErrUnavailableでラップされていない")
	}
	if !errors.Is(err, cause) {
		t.Error("元のエラーが保持されていない")
	}
	if Message(err) != ErrUnavailable.Error() {
		t.Errorf("Message() = %q", Message(err))
	}
}
