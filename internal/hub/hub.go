package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nao1215/notifyhub/internal/principal"
)

// Publisher はチャネルへペイロードを配信する。
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Hub はチャネル名から参加中の接続集合への対応を管理する。
// 接続・切断・配信は並行に呼び出してよい。
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
	clients  map[*Client]struct{}
	buffer   int
}

var _ Publisher = (*Hub)(nil)

// New は接続ごとの送信キュー長を指定して新しいHubを生成する。
func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		channels: make(map[string]map[*Client]struct{}),
		clients:  make(map[*Client]struct{}),
		buffer:   buffer,
	}
}

// Register は認証済みプリンシパルの接続を登録し、個人チャネルとロールチャネルに参加させる。
func (h *Hub) Register(p principal.Principal) *Client {
	c := newClient(p, h.buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	for _, ch := range c.channels {
		members, ok := h.channels[ch]
		if !ok {
			members = make(map[*Client]struct{})
			h.channels[ch] = members
		}
		members[c] = struct{}{}
	}
	return c
}

// Unregister は接続を全チャネルから外す。複数回呼び出してもよい。
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		for _, ch := range c.channels {
			members := h.channels[ch]
			delete(members, c)
			if len(members) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	h.mu.Unlock()

	c.close()
}

// Deliver はチャネルに参加中の全接続へペイロードを渡し、渡せた接続数を返す。
// Everyone を指定すると全接続に渡す。1回の呼び出しで同じ接続に2回渡すことはない。
// 送信キューが満杯の接続は切断する。
func (h *Hub) Deliver(channel string, payload []byte) int {
	h.mu.RLock()
	var members map[*Client]struct{}
	if channel == Everyone {
		members = h.clients
	} else {
		members = h.channels[channel]
	}
	targets := make([]*Client, 0, len(members))
	for c := range members {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Enqueue(payload) {
			delivered++
			continue
		}
		select {
		case <-c.done:
		default:
			slog.Warn("送信キューが満杯のため接続を切断します",
				"conn_id", c.ID,
				"principal_id", c.Principal.ID,
				"channel", channel,
			)
			h.Unregister(c)
		}
	}
	return delivered
}

// Publish はプロセス内の接続へ配信する。
func (h *Hub) Publish(_ context.Context, channel string, payload []byte) error {
	h.Deliver(channel, payload)
	return nil
}

// Members はチャネルに参加中の接続数を返す。
func (h *Hub) Members(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if channel == Everyone {
		return len(h.clients)
	}
	return len(h.channels[channel])
}

// Len は登録中の接続数を返す。
func (h *Hub) Len() int {
	return h.Members(Everyone)
}
