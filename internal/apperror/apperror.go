// Package apperror は通知サービス全体で共有するエラー分類を提供する。
//
// 各パッケージは下記のセンチネルエラーを %w でラップして返す。
// トランスポート層は Code と HTTPStatus で利用者向けの表現に変換する。
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingCredential は認証情報が提示されなかったことを表す。
	ErrMissingCredential = errors.New("認証情報がありません")
	// ErrInvalidCredential は認証情報を検証・デコードできなかったことを表す。
	ErrInvalidCredential = errors.New("認証情報が無効です")
	// ErrUnknownPrincipal はトークンのIDに対応するプリンシパルが存在しないことを表す。
	ErrUnknownPrincipal = errors.New("プリンシパルが存在しません")
	// ErrNotAuthorized は管理者以外が配信操作を実行しようとしたことを表す。
	ErrNotAuthorized = errors.New("この操作を実行する権限がありません")
	// ErrInvalidInput はタイトル・メッセージ・ロールなどの入力が不正であることを表す。
	ErrInvalidInput = errors.New("入力が不正です")
	// ErrEmptyIdentifier は宛先識別子が空であることを表す。
	ErrEmptyIdentifier = errors.New("宛先のメールアドレス、ユーザー名、またはユーザーIDを指定してください")
	// ErrRecipientNotFound は宛先識別子に一致するプリンシパルが存在しないことを表す。
	ErrRecipientNotFound = errors.New("宛先ユーザーが見つかりません")
	// ErrAmbiguousRecipient は宛先識別子が複数のプリンシパルに一致したことを表す。
	ErrAmbiguousRecipient = errors.New("宛先ユーザーを一意に特定できません")
	// ErrNotFound は指定された通知が存在しないことを表す。
	ErrNotFound = errors.New("通知が見つかりません")
	// ErrUnavailable はストレージや配信経路の障害を表す。
	ErrUnavailable = errors.New("サービスを一時的に利用できません")
)

// RecipientError は宛先解決の失敗を、送信者が入力した識別子とともに保持する。
type RecipientError struct {
	// Identifier は送信者が指定した元の識別子。
	Identifier string
	// Err は ErrRecipientNotFound または ErrAmbiguousRecipient。
	Err error
}

// Error はエラーメッセージを返す。
func (e *RecipientError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Identifier)
}

// Unwrap は元のセンチネルエラーを返す。
func (e *RecipientError) Unwrap() error {
	return e.Err
}

// Identifier はエラーチェーンに RecipientError が含まれていればその識別子を返す。
func Identifier(err error) (string, bool) {
	var re *RecipientError
	if errors.As(err, &re) {
		return re.Identifier, true
	}
	return "", false
}

// Unavailable はストレージ等の障害を ErrUnavailable でラップする。
// nil を渡した場合は nil を返す。
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

type classification struct {
	err    error
	code   string
	status int
}

// classifications は判定順。RecipientError は Unwrap で該当センチネルに一致する。
var classifications = []classification{
	{ErrMissingCredential, "MISSING_CREDENTIAL", http.StatusUnauthorized},
	{ErrInvalidCredential, "INVALID_CREDENTIAL", http.StatusUnauthorized},
	{ErrUnknownPrincipal, "UNKNOWN_PRINCIPAL", http.StatusUnauthorized},
	{ErrNotAuthorized, "NOT_AUTHORIZED", http.StatusForbidden},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{ErrEmptyIdentifier, "EMPTY_IDENTIFIER", http.StatusBadRequest},
	{ErrRecipientNotFound, "RECIPIENT_NOT_FOUND", http.StatusNotFound},
	{ErrAmbiguousRecipient, "AMBIGUOUS_RECIPIENT", http.StatusConflict},
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrUnavailable, "UNAVAILABLE", http.StatusServiceUnavailable},
}

// Code はエラーに対応する安定したエラーコードを返す。
// 分類できないエラーは "INTERNAL" となる。
func Code(err error) string {
	for _, c := range classifications {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}

// HTTPStatus はエラーに対応するHTTPステータスコードを返す。
func HTTPStatus(err error) int {
	for _, c := range classifications {
		if errors.Is(err, c.err) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}

// Message は利用者に提示するメッセージを返す。
// 分類済みのエラーはセンチネルの文言を、それ以外は汎用的な文言を返す。
func Message(err error) string {
	if id, ok := Identifier(err); ok {
		var re *RecipientError
		errors.As(err, &re)
		return fmt.Sprintf("%v: %s", re.Err, id)
	}
	for _, c := range classifications {
		if errors.Is(err, c.err) {
			return c.err.Error()
		}
	}
	return "内部サーバーエラーが発生しました"
}
