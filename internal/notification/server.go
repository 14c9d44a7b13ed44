package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/notifyhub/internal/apperror"
	"github.com/nao1215/notifyhub/internal/auth"
	"github.com/nao1215/notifyhub/internal/config"
	"github.com/nao1215/notifyhub/internal/hub"
	"github.com/nao1215/notifyhub/internal/principal"
	"github.com/nao1215/notifyhub/internal/storage"
	"github.com/nao1215/notifyhub/pkg/logger"
	"github.com/nao1215/notifyhub/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Options は Server の構成要素。
type Options struct {
	// Port はリッスンポート。
	Port string
	// DB はマイグレーション適用済みのデータベース接続。
	DB *sql.DB
	// JWTSecret はベアラートークンの検証鍵。
	JWTSecret string
	// AllowedOrigins はCORSとWebSocketハンドシェイクで許可するオリジン。
	AllowedOrigins []string
	// SendBuffer は接続ごとの送信キュー長。
	SendBuffer int
	// WriteTimeout はWebSocketフレーム1件の書き込みタイムアウト。
	WriteTimeout time.Duration
	// Redis が指定された場合、配信はRedis経由で全プロセスに中継する。
	Redis *redis.Client
	// RedisChannel は中継に使うRedisのチャネル名。
	RedisChannel string
	// Registry はメトリクスの登録先。nil の場合は新しく作る。
	Registry *prometheus.Registry
}

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// redis はプロセス間中継に使うRedisクライアント。未設定なら nil。
	redis *redis.Client

	principals *principal.Store
	store      *Store
	engine     *Engine
	gatekeeper *auth.Gatekeeper
	hub        *hub.Hub
	relay      *hub.RedisRelay
	metrics    *Metrics
	registry   *prometheus.Registry

	originPatterns []string
	writeTimeout   time.Duration
}

// NewServer は設定からデータベースとRedisに接続し、新しい通知サーバーを生成する。
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			db.Close()
			rdb.Close()
			return nil, fmt.Errorf("Redisへの接続に失敗: %w", err)
		}
	}

	return New(Options{
		Port:           cfg.Port,
		DB:             db,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: []string{cfg.FrontendURL},
		SendBuffer:     cfg.SendBuffer,
		WriteTimeout:   cfg.WriteTimeout,
		Redis:          rdb,
		RedisChannel:   cfg.RedisChannel,
	}), nil
}

// New は構成要素から通知サーバーを組み立てる。
func New(opts Options) *Server {
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	h := hub.New(opts.SendBuffer)
	var publisher hub.Publisher = h
	var relay *hub.RedisRelay
	if opts.Redis != nil {
		relay = hub.NewRedisRelay(opts.Redis, opts.RedisChannel, h)
		publisher = relay
	}

	principals := principal.NewStore(opts.DB)
	store := NewStore(opts.DB)
	metrics := NewMetrics(registry)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(metrics.Middleware())
	router.Use(middleware.CORS(opts.AllowedOrigins))

	s := &Server{
		router:         router,
		port:           opts.Port,
		db:             opts.DB,
		redis:          opts.Redis,
		principals:     principals,
		store:          store,
		engine:         NewEngine(store, principal.NewResolver(principals), publisher, metrics),
		gatekeeper:     auth.NewGatekeeper(middleware.NewVerifier(opts.JWTSecret), principals),
		hub:            h,
		relay:          relay,
		metrics:        metrics,
		registry:       registry,
		originPatterns: originPatterns(opts.AllowedOrigins),
		writeTimeout:   writeTimeout,
	}
	s.setupRoutes()
	return s
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctx がキャンセルされるまで待つ。
// Redis中継が有効な場合は購読も開始する。
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.relay != nil {
		go func() {
			if err := s.relay.Run(ctx); err != nil {
				slog.Error("Redis中継が停止しました", "error", err)
				cancel()
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("通知サービスを起動します", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーが停止しました: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// Close はデータベースとRedisの接続を閉じる。
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ハンドシェイク時に独自に認証するため、ミドルウェアは通さない
	s.router.GET("/ws", s.handleWebSocket())

	api := s.router.Group("/api/v1")
	api.Use(s.gatekeeper.Middleware())
	{
		api.GET("/me", s.handleMe())

		notifications := api.Group("/notifications")
		{
			// 通知一覧取得
			notifications.GET("", s.handleList())
			// 未読通知一覧取得
			notifications.GET("/unread", s.handleListUnread())
			// 通知を既読にする
			notifications.PUT("/:id/read", s.handleMarkAsRead())
			// 全通知を既読にする
			notifications.PUT("/read-all", s.handleMarkAllAsRead())

			// 管理者による配信
			notifications.POST("/global", s.handleBroadcastGlobal())
			notifications.POST("/role", s.handleBroadcastRole())
			notifications.POST("/direct", s.handleSendDirect())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification", "connections": s.hub.Len()})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

// respondError はエラーを分類してJSONで返す。
func respondError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.From(c.Request.Context()).Error("リクエストの処理に失敗しました",
			"path", c.FullPath(),
			"error", err,
		)
	}
	body := gin.H{
		"code":  apperror.Code(err),
		"error": apperror.Message(err),
	}
	if id, ok := apperror.Identifier(err); ok {
		body["identifier"] = id
	}
	c.JSON(status, body)
}

// currentPrincipal は認証ミドルウェアが束縛したプリンシパルを返す。
func currentPrincipal(c *gin.Context) (principal.Principal, bool) {
	p, ok := auth.Current(c)
	if !ok {
		respondError(c, apperror.ErrMissingCredential)
		return principal.Principal{}, false
	}
	return p, true
}

// handleMe は認証済みプリンシパルを返すハンドラ。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := currentPrincipal(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// handleList は認証済みプリンシパルが対象の通知一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := currentPrincipal(c)
		if !ok {
			return
		}
		notifications, err := s.store.ListFor(c.Request.Context(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, notifications)
	}
}

// handleListUnread は認証済みプリンシパルの未読通知一覧を返すハンドラ。
func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := currentPrincipal(c)
		if !ok {
			return
		}
		notifications, err := s.store.ListUnreadFor(c.Request.Context(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, notifications)
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := currentPrincipal(c)
		if !ok {
			return
		}
		id := c.Param("id")
		if err := s.store.MarkRead(c.Request.Context(), p, id); err != nil {
			respondError(c, err)
			return
		}
		s.metrics.markedRead(1)
		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました", "id": id})
	}
}

// handleMarkAllAsRead は対象の全通知を既読にするハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := currentPrincipal(c)
		if !ok {
			return
		}
		count, err := s.store.MarkAllRead(c.Request.Context(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		s.metrics.markedRead(count)
		c.JSON(http.StatusOK, gin.H{"message": "全ての通知を既読にしました", "count": count})
	}
}

// broadcastRequest は配信リクエストのボディ。
type broadcastRequest struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Role はロール配信の対象ロール。
	Role string `json:"role"`
	// UserIdentifier は個人宛て送信の宛先。
	UserIdentifier string `json:"userIdentifier"`
}

func bindBroadcast(c *gin.Context) (broadcastRequest, bool) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: リクエストボディが不正です: %w", apperror.ErrInvalidInput, err))
		return broadcastRequest{}, false
	}
	return req, true
}

// handleBroadcastGlobal は全体配信を行うハンドラ。
func (s *Server) handleBroadcastGlobal() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := currentPrincipal(c)
		if !ok {
			return
		}
		req, ok := bindBroadcast(c)
		if !ok {
			return
		}
		n, err := s.engine.BroadcastGlobal(c.Request.Context(), p, req.Title, req.Message)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": globalSuccessMessage, "notification": n})
	}
}

// handleBroadcastRole はロール配信を行うハンドラ。
func (s *Server) handleBroadcastRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := currentPrincipal(c)
		if !ok {
			return
		}
		req, ok := bindBroadcast(c)
		if !ok {
			return
		}
		n, err := s.engine.BroadcastRole(c.Request.Context(), p, req.Title, req.Message, req.Role)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": roleSuccessMessage(n.Audience.Role), "notification": n})
	}
}

// handleSendDirect は個人宛て送信を行うハンドラ。
func (s *Server) handleSendDirect() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := currentPrincipal(c)
		if !ok {
			return
		}
		req, ok := bindBroadcast(c)
		if !ok {
			return
		}
		n, recipient, err := s.engine.SendDirect(c.Request.Context(), p, req.Title, req.Message, req.UserIdentifier)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":      directSuccessMessage(recipient),
			"recipient":    recipient.Name,
			"notification": n,
		})
	}
}

const globalSuccessMessage = "全体通知を送信しました"

func roleSuccessMessage(r principal.Role) string {
	return fmt.Sprintf("ロール %s に通知を送信しました", r)
}

func directSuccessMessage(recipient principal.Principal) string {
	return fmt.Sprintf("%s さんに通知を送信しました", recipient.Name)
}
