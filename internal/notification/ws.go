package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/nao1215/notifyhub/internal/apperror"
	"github.com/nao1215/notifyhub/internal/hub"
	"github.com/nao1215/notifyhub/internal/principal"
	"github.com/nao1215/notifyhub/pkg/event"
	"github.com/nao1215/notifyhub/pkg/logger"
)

// handleWebSocket は長時間接続を受け付けるハンドラ。
// 認証に失敗した場合はアップグレードせずにエラーを返し、接続はハブに登録しない。
func (s *Server) handleWebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.gatekeeper.AuthenticateRequest(c.Request)
		if err != nil {
			slog.Warn("接続の認証に失敗しました", "code", apperror.Code(err), "error", err)
			respondError(c, err)
			return
		}

		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns: s.originPatterns,
		})
		if err != nil {
			slog.Warn("WebSocketへのアップグレードに失敗しました", "principal_id", p.ID, "error", err)
			return
		}
		s.serveConn(c.Request.Context(), conn, p)
	}
}

// serveConn は接続をハブに登録し、切断されるまで読み書きを続ける。
// 受信は専用のゴルーチンで行い、送信はこのゴルーチンで行う。
func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn, p principal.Principal) {
	client := s.hub.Register(p)
	s.metrics.connected()

	log := slog.With("conn_id", client.ID, "principal_id", p.ID, "role", p.Role)
	ctx = logger.With(principal.WithContext(ctx, p), log)
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.hub.Unregister(client)
		s.metrics.disconnected()
		conn.CloseNow()
		log.Info("接続を終了しました")
	}()
	log.Info("接続を受け付けました", "channels", client.Channels())

	readErr := make(chan error, 1)
	go func() {
		readErr <- s.readLoop(ctx, conn, client)
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case err := <-readErr:
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				log.Debug("受信を終了しました", "error", err)
			}
			conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-client.Done():
			// 送信キューが溢れてハブから外された
			conn.Close(websocket.StatusPolicyViolation, "slow consumer")
			return
		case payload := <-client.Send():
			writeCtx, cancelWrite := context.WithTimeout(ctx, s.writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			cancelWrite()
			if err != nil {
				log.Warn("フレームの書き込みに失敗しました", "error", err)
				conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// readLoop は切断されるまでフレームを読み、1件ずつ処理する。
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			s.replyError(ctx, client, fmt.Errorf("%w: テキストフレームのみ受け付けます", apperror.ErrInvalidInput))
			continue
		}
		var env event.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.replyError(ctx, client, fmt.Errorf("%w: フレームを解析できません: %w", apperror.ErrInvalidInput, err))
			continue
		}
		s.handleFrame(ctx, client, &env)
	}
}

// handleFrame は配信要求を実行し、結果を要求元の接続にだけ返す。
func (s *Server) handleFrame(ctx context.Context, client *hub.Client, env *event.Envelope) {
	var (
		ack event.SuccessData
		err error
	)
	switch env.Type {
	case event.TypeSendGlobalNotification:
		ack, err = s.sendGlobal(ctx, client.Principal, env)
	case event.TypeSendRoleNotification:
		ack, err = s.sendRole(ctx, client.Principal, env)
	case event.TypeSendUserNotification:
		ack, err = s.sendUser(ctx, client.Principal, env)
	default:
		err = fmt.Errorf("%w: 未対応のイベントです: %q", apperror.ErrInvalidInput, env.Type)
	}
	if err != nil {
		s.replyError(ctx, client, err)
		return
	}
	s.reply(ctx, client, event.TypeNotificationSuccess, ack)
}

func (s *Server) sendGlobal(ctx context.Context, sender principal.Principal, env *event.Envelope) (event.SuccessData, error) {
	data, err := event.DecodeData[event.SendGlobalData](env)
	if err != nil {
		return event.SuccessData{}, fmt.Errorf("%w: %w", apperror.ErrInvalidInput, err)
	}
	n, err := s.engine.BroadcastGlobal(ctx, sender, data.Title, data.Message)
	if err != nil {
		return event.SuccessData{}, err
	}
	return event.SuccessData{Message: globalSuccessMessage, NotificationID: n.ID}, nil
}

func (s *Server) sendRole(ctx context.Context, sender principal.Principal, env *event.Envelope) (event.SuccessData, error) {
	data, err := event.DecodeData[event.SendRoleData](env)
	if err != nil {
		return event.SuccessData{}, fmt.Errorf("%w: %w", apperror.ErrInvalidInput, err)
	}
	n, err := s.engine.BroadcastRole(ctx, sender, data.Title, data.Message, data.Role)
	if err != nil {
		return event.SuccessData{}, err
	}
	return event.SuccessData{Message: roleSuccessMessage(n.Audience.Role), NotificationID: n.ID}, nil
}

func (s *Server) sendUser(ctx context.Context, sender principal.Principal, env *event.Envelope) (event.SuccessData, error) {
	data, err := event.DecodeData[event.SendUserData](env)
	if err != nil {
		return event.SuccessData{}, fmt.Errorf("%w: %w", apperror.ErrInvalidInput, err)
	}
	n, recipient, err := s.engine.SendDirect(ctx, sender, data.Title, data.Message, data.UserIdentifier)
	if err != nil {
		return event.SuccessData{}, err
	}
	return event.SuccessData{
		Message:        directSuccessMessage(recipient),
		NotificationID: n.ID,
		Recipient:      recipient.Name,
	}, nil
}

func (s *Server) replyError(ctx context.Context, client *hub.Client, err error) {
	data := event.ErrorData{
		Code:    apperror.Code(err),
		Message: apperror.Message(err),
	}
	if id, ok := apperror.Identifier(err); ok {
		data.Identifier = id
	}
	log := logger.From(ctx)
	if errors.Is(err, apperror.ErrUnavailable) || data.Code == "INTERNAL" {
		log.Error("配信要求の処理に失敗しました", "code", data.Code, "error", err)
	} else {
		log.Info("配信要求を拒否しました", "code", data.Code, "error", err)
	}
	s.reply(ctx, client, event.TypeNotificationError, data)
}

// reply は要求元の接続の送信キューに応答を積む。切断済みなら破棄する。
func (s *Server) reply(ctx context.Context, client *hub.Client, typ event.Type, data any) {
	payload, err := event.Marshal(typ, data)
	if err != nil {
		logger.From(ctx).Error("応答の生成に失敗しました", "type", typ, "error", err)
		return
	}
	if !client.Enqueue(payload) {
		logger.From(ctx).Warn("応答を送信できませんでした", "type", typ)
	}
}

// originPatterns は許可オリジンのURLからハンドシェイク用のホストパターンを作る。
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
