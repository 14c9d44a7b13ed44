package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/notifyhub/internal/apperror"
	"github.com/nao1215/notifyhub/internal/hub"
	"github.com/nao1215/notifyhub/internal/principal"
	"github.com/nao1215/notifyhub/pkg/event"
	"github.com/nao1215/notifyhub/pkg/logger"
)

// Repository は通知を保存する。
type Repository interface {
	Create(ctx context.Context, n Notification) error
}

// RecipientResolver は宛先識別子からプリンシパルを特定する。
type RecipientResolver interface {
	Resolve(ctx context.Context, identifier string) (principal.Principal, error)
}

// Engine は管理者による通知の作成と配信を行う。
// 通知は保存に成功してから配信する。保存に失敗した通知は誰にも配信されない。
// 各操作は呼び出し元のキャンセルを引き継がず、要求元の接続が切断されても
// 宛先解決から配信までを最後まで行う。失われるのは応答だけとなる。
type Engine struct {
	repo      Repository
	resolver  RecipientResolver
	publisher hub.Publisher
	metrics   *Metrics
	now       func() time.Time
	newID     func() string
}

// NewEngine は新しいEngineを生成する。metrics は nil でもよい。
func NewEngine(repo Repository, resolver RecipientResolver, publisher hub.Publisher, metrics *Metrics) *Engine {
	return &Engine{
		repo:      repo,
		resolver:  resolver,
		publisher: publisher,
		metrics:   metrics,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// BroadcastGlobal は全員宛ての通知を作成し、全接続へ配信する。
func (e *Engine) BroadcastGlobal(ctx context.Context, sender principal.Principal, title, message string) (Notification, error) {
	n, err := e.broadcastGlobal(context.WithoutCancel(ctx), sender, title, message)
	if err != nil {
		e.metrics.dispatchFailed(err)
	}
	return n, err
}

func (e *Engine) broadcastGlobal(ctx context.Context, sender principal.Principal, title, message string) (Notification, error) {
	if err := authorize(sender); err != nil {
		return Notification{}, err
	}
	title, message, err := normalizeContent(title, message)
	if err != nil {
		return Notification{}, err
	}
	return e.dispatch(ctx, sender, title, message, GlobalAudience())
}

// BroadcastRole はロール宛ての通知を作成し、そのロールの接続へ配信する。
func (e *Engine) BroadcastRole(ctx context.Context, sender principal.Principal, title, message, role string) (Notification, error) {
	n, err := e.broadcastRole(context.WithoutCancel(ctx), sender, title, message, role)
	if err != nil {
		e.metrics.dispatchFailed(err)
	}
	return n, err
}

func (e *Engine) broadcastRole(ctx context.Context, sender principal.Principal, title, message, role string) (Notification, error) {
	if err := authorize(sender); err != nil {
		return Notification{}, err
	}
	title, message, err := normalizeContent(title, message)
	if err != nil {
		return Notification{}, err
	}
	r, err := principal.ParseRole(role)
	if err != nil {
		return Notification{}, err
	}
	return e.dispatch(ctx, sender, title, message, RoleAudience(r))
}

// SendDirect は識別子で指定したプリンシパル宛ての通知を作成し、その個人チャネルへ配信する。
// 宛先のプリンシパルも返す。宛先が見つからない場合は何も保存しない。
func (e *Engine) SendDirect(ctx context.Context, sender principal.Principal, title, message, identifier string) (Notification, principal.Principal, error) {
	n, recipient, err := e.sendDirect(context.WithoutCancel(ctx), sender, title, message, identifier)
	if err != nil {
		e.metrics.dispatchFailed(err)
	}
	return n, recipient, err
}

func (e *Engine) sendDirect(ctx context.Context, sender principal.Principal, title, message, identifier string) (Notification, principal.Principal, error) {
	if err := authorize(sender); err != nil {
		return Notification{}, principal.Principal{}, err
	}
	title, message, err := normalizeContent(title, message)
	if err != nil {
		return Notification{}, principal.Principal{}, err
	}
	if strings.TrimSpace(identifier) == "" {
		return Notification{}, principal.Principal{}, apperror.ErrEmptyIdentifier
	}

	recipient, err := e.resolver.Resolve(ctx, identifier)
	if err != nil {
		return Notification{}, principal.Principal{}, err
	}
	n, err := e.dispatch(ctx, sender, title, message, UserAudience(recipient.ID))
	return n, recipient, err
}

func authorize(sender principal.Principal) error {
	if !sender.IsAdmin() {
		return fmt.Errorf("%w: %s", apperror.ErrNotAuthorized, sender.ID)
	}
	return nil
}

// dispatch は通知を保存してから配信する。
// 保存後に配信だけが失敗した場合は、保存済みの通知とエラーの両方を返す。
func (e *Engine) dispatch(ctx context.Context, sender principal.Principal, title, message string, audience Audience) (Notification, error) {
	log := logger.From(ctx)

	n := Notification{
		ID:        e.newID(),
		Title:     title,
		Message:   message,
		Audience:  audience,
		ReadBy:    ReadSet{},
		CreatedAt: e.now().UTC(),
	}
	if err := e.repo.Create(ctx, n); err != nil {
		return Notification{}, err
	}

	payload, err := event.Marshal(event.TypeReceiveNotification, n)
	if err != nil {
		return n, fmt.Errorf("配信イベントの生成に失敗: %w", err)
	}
	if err := e.publisher.Publish(ctx, audience.Channel(), payload); err != nil {
		log.Error("保存済み通知の配信に失敗しました",
			"notification_id", n.ID,
			"channel", audience.Channel(),
			"error", err,
		)
		return n, err
	}

	e.metrics.dispatchSucceeded(audience.Kind)
	log.Info("通知を配信しました",
		"notification_id", n.ID,
		"sender_id", sender.ID,
		"audience", audience.Kind,
		"channel", audience.Channel(),
	)
	return n, nil
}
