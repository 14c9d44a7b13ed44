package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/notifyhub/internal/apperror"
	"github.com/redis/go-redis/v9"
)

// relayFrame はRedis上を流れる中継メッセージ。
type relayFrame struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// encodeFrame は中継メッセージをエンコードする。ペイロードはJSONである必要がある。
func encodeFrame(channel string, payload []byte) ([]byte, error) {
	if !json.Valid(payload) {
		return nil, errors.New("ペイロードがJSONではありません")
	}
	return json.Marshal(relayFrame{Channel: channel, Payload: payload})
}

// decodeFrame は中継メッセージをデコードする。
func decodeFrame(data []byte) (relayFrame, error) {
	var f relayFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return relayFrame{}, fmt.Errorf("中継メッセージのデコードに失敗: %w", err)
	}
	if f.Channel == "" {
		return relayFrame{}, errors.New("中継メッセージにチャネルがありません")
	}
	return f, nil
}

// RedisRelay はRedis pub/subを介して複数プロセスのHubに配信する。
// Publish は全プロセスに届き、各プロセスの Run が自分のHubへ渡す。
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
}

var _ Publisher = (*RedisRelay)(nil)

// NewRedisRelay は新しいRedisRelayを生成する。
func NewRedisRelay(client *redis.Client, channel string, h *Hub) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, hub: h}
}

// Publish は中継チャネルへメッセージを発行する。
func (r *RedisRelay) Publish(ctx context.Context, channel string, payload []byte) error {
	data, err := encodeFrame(channel, payload)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return apperror.Unavailable("Redisへの配信", err)
	}
	return nil
}

// Run は中継チャネルを購読し、受信したメッセージをHubに渡す。
// ctx がキャンセルされるまで戻らない。
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return apperror.Unavailable("Redisの購読", err)
	}
	slog.InfoContext(ctx, "Redis中継を開始しました", "channel", r.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(data string) {
	f, err := decodeFrame([]byte(data))
	if err != nil {
		slog.Warn("不正な中継メッセージを破棄しました", "error", err)
		return
	}
	r.hub.Deliver(f.Channel, f.Payload)
}
