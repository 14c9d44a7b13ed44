package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/notifyhub/internal/apperror"
)

// JWTClaims はベアラートークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID はトークンが表すプリンシパルのID。
	UserID string `json:"user_id"`
}

// tokenIssuer はこのサービスが受け付けるトークンの発行者。
const tokenIssuer = "notifyhub-identity"

// GenerateJWT はプリンシパルIDから署名済みトークンを生成する。
// トークン発行は外部の認証サービスの責務であり、この関数は開発用とテスト用。
func GenerateJWT(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verifier はHS256で署名されたベアラートークンを検証し、プリンシパルIDを取り出す。
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier は秘密鍵を使う新しいVerifierを生成する。
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify はトークンを検証してプリンシパルIDを返す。
// 検証・デコードに失敗した場合は apperror.ErrInvalidCredential を返す。
func (v *Verifier) Verify(tokenString string) (string, error) {
	if strings.TrimSpace(tokenString) == "" {
		return "", apperror.ErrMissingCredential
	}

	claims := &JWTClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperror.ErrInvalidCredential, err)
	}
	if !token.Valid {
		return "", apperror.ErrInvalidCredential
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: %w", apperror.ErrInvalidCredential, errors.New("user_idクレームがありません"))
	}
	return claims.UserID, nil
}

// BearerToken は Authorization ヘッダーの値からトークン部分を取り出す。
// ヘッダーが空、または Bearer 形式でない場合は false を返す。
func BearerToken(authHeader string) (string, bool) {
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return "", false
	}
	tokenString = strings.TrimSpace(tokenString)
	return tokenString, tokenString != ""
}
