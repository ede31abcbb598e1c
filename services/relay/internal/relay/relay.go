package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var (
	ConnectedFrame = []byte(`{"status":"connected"}`)

	ErrNotObject = errors.New("payload is not a JSON object")
)

// Envelope is the frame sent to clients for every upstream message.
type Envelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// EncodeEnvelope validates payload as a JSON object and wraps it for topic.
func EncodeEnvelope(topic string, payload []byte) ([]byte, error) {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotObject, err)
	}
	if record == nil {
		return nil, ErrNotObject
	}

	var data bytes.Buffer
	if err := json.Compact(&data, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotObject, err)
	}

	return json.Marshal(Envelope{Topic: topic, Data: data.Bytes()})
}

type Stats struct {
	Clients   int    `json:"clients"`
	Received  uint64 `json:"received"`
	Dropped   uint64 `json:"dropped"`
	Delivered uint64 `json:"delivered"`
}

// Relay fans upstream messages out to every registered connection. Delivery
// is best effort: nothing is queued or retried for a failed client.
type Relay struct {
	registry *Registry
	log      *slog.Logger

	received  atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
}

func New(log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{registry: NewRegistry(), log: log.With("component", "relay")}
}

func (r *Relay) Registry() *Registry { return r.registry }

func (r *Relay) Stats() Stats {
	return Stats{
		Clients:   r.registry.Len(),
		Received:  r.received.Load(),
		Dropped:   r.dropped.Load(),
		Delivered: r.delivered.Load(),
	}
}

// Run handles events one at a time until ctx is done or events is closed.
// A message and its full fan-out complete before the next event is read.
func (r *Relay) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Dispatch(ev)
		}
	}
}

// Dispatch applies a single event. Connection lifecycle events may be
// dispatched directly from connection goroutines; upstream messages should go
// through Run so they stay sequential.
func (r *Relay) Dispatch(ev Event) {
	switch ev := ev.(type) {
	case Connected:
		r.connect(ev.Conn)
	case MessageReceived:
		r.message(ev.Topic, ev.Payload)
	case Errored:
		if ev.Conn == nil {
			r.log.Error("upstream_error", "error", ev.Err)
			return
		}
		r.log.Warn("client_error", "conn_id", ev.Conn.ID(), "error", ev.Err)
		r.drop(ev.Conn)
	case Closed:
		r.log.Info("client_disconnected", "conn_id", ev.Conn.ID())
		r.drop(ev.Conn)
	default:
		r.log.Error("unknown_event", "type", fmt.Sprintf("%T", ev))
	}
}

// connect confirms before registering so the confirmation is always the
// first frame a client sees.
func (r *Relay) connect(c Conn) {
	if err := c.Send(ConnectedFrame); err != nil {
		r.log.Warn("confirm_failed", "conn_id", c.ID(), "error", err)
		_ = c.Close()
		return
	}
	r.registry.Add(c)
	r.log.Info("client_connected", "conn_id", c.ID(), "clients", r.registry.Len())
}

func (r *Relay) message(topic string, payload []byte) {
	r.received.Add(1)

	frame, err := EncodeEnvelope(topic, payload)
	if err != nil {
		r.dropped.Add(1)
		r.log.Warn("malformed_payload", "topic", topic, "bytes", len(payload), "error", err)
		return
	}

	n := r.Broadcast(frame)
	r.log.Debug("broadcast", "topic", topic, "delivered", n)
}

// Broadcast sends frame to a snapshot of the registry and returns how many
// clients accepted it. A connection removed after the snapshot was taken is
// skipped; a failing connection is removed without affecting the rest.
func (r *Relay) Broadcast(frame []byte) int {
	delivered := 0
	for _, m := range r.registry.members() {
		sent, err := m.send(frame)
		if !sent {
			continue
		}
		if err != nil {
			r.log.Warn("send_failed", "conn_id", m.ID(), "error", err)
			r.drop(m.Conn)
			continue
		}
		delivered++
	}
	r.delivered.Add(uint64(delivered))
	return delivered
}

func (r *Relay) drop(c Conn) {
	if r.registry.Remove(c) {
		_ = c.Close()
	}
}

// CloseAll disconnects every client, used on shutdown.
func (r *Relay) CloseAll() {
	for _, c := range r.registry.Snapshot() {
		r.drop(c)
	}
}
