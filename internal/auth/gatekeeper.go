// Package auth はリクエストと長時間接続の認証（Connection Gatekeeper）を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/notifyhub/internal/apperror"
	"github.com/nao1215/notifyhub/internal/principal"
	"github.com/nao1215/notifyhub/pkg/middleware"
)

// TokenVerifier はベアラートークンを検証してプリンシパルIDを返す。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// PrincipalFinder はIDでプリンシパルを取得する。
type PrincipalFinder interface {
	FindByID(ctx context.Context, id string) (principal.Principal, error)
}

// Gatekeeper は提示された認証情報からプリンシパルを特定する。
// ディレクトリを変更することはない。
type Gatekeeper struct {
	verifier TokenVerifier
	finder   PrincipalFinder
}

// NewGatekeeper は新しいGatekeeperを生成する。
func NewGatekeeper(verifier TokenVerifier, finder PrincipalFinder) *Gatekeeper {
	return &Gatekeeper{verifier: verifier, finder: finder}
}

// Authenticate はトークンを検証し、対応するプリンシパルを返す。
//
// 失敗は次の順に判定する。
//   - トークンが空: apperror.ErrMissingCredential
//   - 検証・デコード失敗: apperror.ErrInvalidCredential
//   - 該当プリンシパルなし: apperror.ErrUnknownPrincipal
func (g *Gatekeeper) Authenticate(ctx context.Context, token string) (principal.Principal, error) {
	if strings.TrimSpace(token) == "" {
		return principal.Principal{}, apperror.ErrMissingCredential
	}

	id, err := g.verifier.Verify(token)
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidCredential) || errors.Is(err, apperror.ErrMissingCredential) {
			return principal.Principal{}, err
		}
		return principal.Principal{}, fmt.Errorf("%w: %w", apperror.ErrInvalidCredential, err)
	}

	p, err := g.finder.FindByID(ctx, id)
	if errors.Is(err, principal.ErrNoPrincipal) {
		return principal.Principal{}, fmt.Errorf("%w: %s", apperror.ErrUnknownPrincipal, id)
	}
	if err != nil {
		return principal.Principal{}, err
	}
	return p, nil
}

// TokenFromRequest はリクエストから認証情報を取り出す。
// Authorization ヘッダー（Bearer形式）を優先し、無ければ接続ハンドシェイク用の
// token クエリパラメータを使う。Bearer形式でないヘッダーは不正な認証情報として扱う。
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := middleware.BearerToken(header)
		if !ok {
			return "", fmt.Errorf("%w: Bearer トークン形式が不正です", apperror.ErrInvalidCredential)
		}
		return token, nil
	}
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, nil
	}
	return "", apperror.ErrMissingCredential
}

// AuthenticateRequest はリクエストに含まれる認証情報でプリンシパルを特定する。
func (g *Gatekeeper) AuthenticateRequest(r *http.Request) (principal.Principal, error) {
	token, err := TokenFromRequest(r)
	if err != nil {
		return principal.Principal{}, err
	}
	return g.Authenticate(r.Context(), token)
}

// contextKeyPrincipal はGinコンテキストにプリンシパルを格納するキー。
const contextKeyPrincipal = "principal"

// Middleware は認証に成功したリクエストにプリンシパルを束縛するGinミドルウェアを返す。
// 失敗した場合はその場でリクエストを終了する。
func (g *Gatekeeper) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := g.AuthenticateRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(apperror.HTTPStatus(err), gin.H{
				"code":  apperror.Code(err),
				"error": apperror.Message(err),
			})
			return
		}
		Bind(c, p)
		c.Next()
	}
}

// Bind はプリンシパルをGinコンテキストとリクエストコンテキストの両方に束縛する。
func Bind(c *gin.Context, p principal.Principal) {
	c.Set(contextKeyPrincipal, p)
	c.Request = c.Request.WithContext(principal.WithContext(c.Request.Context(), p))
}

// Current はGinコンテキストに束縛されたプリンシパルを返す。
// Middleware が事前に適用されている必要がある。
func Current(c *gin.Context) (principal.Principal, bool) {
	v, ok := c.Get(contextKeyPrincipal)
	if !ok {
		return principal.Principal{}, false
	}
	p, ok := v.(principal.Principal)
	return p, ok
}
