package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/nao1215/notifyhub/internal/principal"
)

// Client はハブに登録された1つの接続を表す。
type Client struct {
	// ID は接続ごとの一意識別子。
	ID string
	// Principal は接続の認証済みプリンシパル。接続中は変化しない。
	Principal principal.Principal

	channels  []string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(p principal.Principal, buffer int) *Client {
	return &Client{
		ID:        uuid.New().String(),
		Principal: p,
		channels:  ChannelsFor(p),
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
	}
}

// Channels は接続が参加しているチャネルを返す。
func (c *Client) Channels() []string {
	return append([]string(nil), c.channels...)
}

// Send は接続へ書き込むべきペイロードを受け取るチャネルを返す。
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Done は接続がハブから外れたときに閉じられるチャネルを返す。
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Enqueue はペイロードを送信キューに積む。ブロックしない。
// 接続が既に外れている、またはキューが満杯の場合は false を返す。
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
