package httpserver

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxInbound = 4096
)

// wsConn adapts a gorilla connection to relay.Conn. gorilla allows one
// concurrent writer, so every write goes through mu.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	mu   sync.Mutex
	once sync.Once
	done chan struct{}
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		ws:   ws,
		done: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		c.mu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) keepalive() {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
