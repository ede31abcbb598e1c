package httpserver

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Skotchmaster/telemetry_hub/pkg/logging"
	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/relay"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type WSHandler struct {
	Relay    *relay.Relay
	upgrader websocket.Upgrader
}

// NewWSHandler accepts browser origins listed in allowed. An empty list or
// "*" accepts any origin; requests without an Origin header are always
// accepted.
func NewWSHandler(r *relay.Relay, allowed []string) *WSHandler {
	return &WSHandler{
		Relay: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowed),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.ToLower(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

// Stream upgrades the request and keeps reading until the client leaves.
// Inbound frames carry no meaning and are discarded.
func (h *WSHandler) Stream(c echo.Context) error {
	log := logging.FromContext(c.Request().Context())

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		log.Warn("ws_upgrade_failed", "error", err)
		return nil
	}

	conn := newWSConn(ws)
	ws.SetReadLimit(maxInbound)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.Relay.Dispatch(relay.Connected{Conn: conn})
	if !h.Relay.Registry().Has(conn) {
		return nil
	}
	go conn.keepalive()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				h.Relay.Dispatch(relay.Closed{Conn: conn})
			} else {
				h.Relay.Dispatch(relay.Errored{Conn: conn, Err: err})
			}
			return nil
		}
		log.Debug("ws_inbound_discarded", "conn_id", conn.ID(), "bytes", len(msg))
	}
}

func isNormalClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed)
}
