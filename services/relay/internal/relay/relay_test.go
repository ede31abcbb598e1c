package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id string

	mu      sync.Mutex
	frames  [][]byte
	closed  int
	sendErr error
	onSend  func()

	sentAfterClose bool
}

func newFake(id string) *fakeConn { return &fakeConn{id: id} }

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(frame []byte) error {
	f.mu.Lock()
	hook := f.onSend
	err := f.sendErr
	if err == nil {
		f.frames = append(f.frames, append([]byte(nil), frame...))
		if f.closed > 0 {
			f.sentAfterClose = true
		}
	}
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func (f *fakeConn) SentAfterClose() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sentAfterClose
}

func (f *fakeConn) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testRelay() *Relay {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func decode(t *testing.T, frame []byte) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

func TestEncodeEnvelope(t *testing.T) {
	t.Parallel()

	frame, err := EncodeEnvelope("sensor/water", []byte(`{ "timestamp": 1700000000, "value": 42.5 }`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"topic":"sensor/water","data":{"timestamp":1700000000,"value":42.5}}`, string(frame))

	for _, bad := range []string{`not json`, `[1,2]`, `"str"`, `null`, `12`, ``} {
		_, err := EncodeEnvelope("alerts", []byte(bad))
		assert.ErrorIs(t, err, ErrNotObject, "payload %q", bad)
	}
}

func TestConnectSendsConfirmationFirst(t *testing.T) {
	t.Parallel()
	r := testRelay()

	c := newFake("a")
	r.Dispatch(Connected{Conn: c})

	require.True(t, r.Registry().Has(c))
	frames := c.Frames()
	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"status":"connected"}`, string(frames[0]))

	r.Dispatch(MessageReceived{Topic: "alerts", Payload: []byte(`{"column":"value"}`)})
	frames = c.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, "alerts", decode(t, frames[1]).Topic)
}

func TestConnectConfirmationFailure(t *testing.T) {
	t.Parallel()
	r := testRelay()

	c := newFake("a")
	c.sendErr = errors.New("broken pipe")
	r.Dispatch(Connected{Conn: c})

	assert.False(t, r.Registry().Has(c))
	assert.Equal(t, 1, c.Closed())
}

func TestBroadcastExactlyOnce(t *testing.T) {
	t.Parallel()
	r := testRelay()

	conns := make([]*fakeConn, 5)
	for i := range conns {
		conns[i] = newFake(string(rune('a' + i)))
		r.Dispatch(Connected{Conn: conns[i]})
	}

	r.Dispatch(MessageReceived{Topic: "sensor/electricity", Payload: []byte(`{"timestamp":1,"value":3.2}`)})

	for _, c := range conns {
		frames := c.Frames()
		require.Len(t, frames, 2, "conn %s", c.id)
		env := decode(t, frames[1])
		assert.Equal(t, "sensor/electricity", env.Topic)
		assert.JSONEq(t, `{"timestamp":1,"value":3.2}`, string(env.Data))
	}

	st := r.Stats()
	assert.Equal(t, 5, st.Clients)
	assert.Equal(t, uint64(1), st.Received)
	assert.Equal(t, uint64(5), st.Delivered)
}

func TestBroadcastSkipsConnRemovedMidway(t *testing.T) {
	t.Parallel()
	r := testRelay()

	a, b, c := newFake("a"), newFake("b"), newFake("c")
	for _, conn := range []*fakeConn{a, b, c} {
		r.Dispatch(Connected{Conn: conn})
	}

	// whichever conn is sent to first disconnects the other two
	var once sync.Once
	for _, conn := range []*fakeConn{a, b, c} {
		self := conn
		self.onSend = func() {
			once.Do(func() {
				for _, other := range []*fakeConn{a, b, c} {
					if other != self {
						r.Dispatch(Closed{Conn: other})
					}
				}
			})
		}
	}

	n := r.Broadcast([]byte(`{"topic":"alerts","data":{}}`))
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, r.Registry().Len())

	total := 0
	for _, conn := range []*fakeConn{a, b, c} {
		total += len(conn.Frames()) - 1
	}
	assert.Equal(t, 1, total)
}

func TestMalformedPayloadDropped(t *testing.T) {
	t.Parallel()
	r := testRelay()

	c := newFake("a")
	r.Dispatch(Connected{Conn: c})

	r.Dispatch(MessageReceived{Topic: "sensor/water", Payload: []byte(`{broken`)})
	require.Len(t, c.Frames(), 1)
	assert.True(t, r.Registry().Has(c))

	r.Dispatch(MessageReceived{Topic: "sensor/water", Payload: []byte(`{"value":7}`)})
	frames := c.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, "sensor/water", decode(t, frames[1]).Topic)
	assert.Equal(t, uint64(1), r.Stats().Dropped)
}

func TestSendFailureIsolated(t *testing.T) {
	t.Parallel()
	r := testRelay()

	good, bad := newFake("good"), newFake("bad")
	r.Dispatch(Connected{Conn: good})
	r.Dispatch(Connected{Conn: bad})

	bad.mu.Lock()
	bad.sendErr = errors.New("write: connection reset")
	bad.mu.Unlock()

	r.Dispatch(MessageReceived{Topic: "alerts", Payload: []byte(`{"value":1}`)})

	assert.Len(t, good.Frames(), 2)
	assert.True(t, r.Registry().Has(good))
	assert.False(t, r.Registry().Has(bad))
	assert.Equal(t, 1, bad.Closed())
}

func TestRemovalIsIdempotent(t *testing.T) {
	t.Parallel()
	r := testRelay()

	c := newFake("a")
	r.Dispatch(Connected{Conn: c})

	r.Dispatch(Closed{Conn: c})
	r.Dispatch(Errored{Conn: c, Err: errors.New("late read error")})
	r.Dispatch(Closed{Conn: c})

	assert.Equal(t, 0, r.Registry().Len())
	assert.Equal(t, 1, c.Closed())
}

func TestUpstreamErrorKeepsClients(t *testing.T) {
	t.Parallel()
	r := testRelay()

	c := newFake("a")
	r.Dispatch(Connected{Conn: c})
	r.Dispatch(Errored{Err: errors.New("broker unreachable")})

	assert.True(t, r.Registry().Has(c))
	assert.Equal(t, 0, c.Closed())
}

func TestRunProcessesInOrder(t *testing.T) {
	t.Parallel()
	r := testRelay()

	c := newFake("a")
	r.Dispatch(Connected{Conn: c})

	events := make(chan Event, 3)
	events <- MessageReceived{Topic: "sensor/water", Payload: []byte(`{"seq":1}`)}
	events <- MessageReceived{Topic: "sensor/waste", Payload: []byte(`{"seq":2}`)}
	events <- MessageReceived{Topic: "alerts", Payload: []byte(`{"seq":3}`)}
	close(events)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after channel close")
	}

	frames := c.Frames()
	require.Len(t, frames, 4)
	assert.Equal(t, "sensor/water", decode(t, frames[1]).Topic)
	assert.Equal(t, "sensor/waste", decode(t, frames[2]).Topic)
	assert.Equal(t, "alerts", decode(t, frames[3]).Topic)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	r := testRelay()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, make(chan Event))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestCloseAll(t *testing.T) {
	t.Parallel()
	r := testRelay()

	a, b := newFake("a"), newFake("b")
	r.Dispatch(Connected{Conn: a})
	r.Dispatch(Connected{Conn: b})

	r.CloseAll()
	assert.Equal(t, 0, r.Registry().Len())
	assert.Equal(t, 1, a.Closed())
	assert.Equal(t, 1, b.Closed())
}

func TestRemovalWaitsForInFlightSend(t *testing.T) {
	t.Parallel()
	r := testRelay()

	c := newFake("slow")
	r.Dispatch(Connected{Conn: c})

	entered := make(chan struct{})
	release := make(chan struct{})
	c.mu.Lock()
	c.onSend = func() {
		close(entered)
		<-release
	}
	c.mu.Unlock()

	broadcastDone := make(chan int)
	go func() { broadcastDone <- r.Broadcast([]byte(`{"topic":"alerts","data":{}}`)) }()
	<-entered

	removed := make(chan struct{})
	go func() {
		r.Dispatch(Closed{Conn: c})
		close(removed)
	}()

	select {
	case <-removed:
		t.Fatal("removal returned while a send to the same conn was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, c.Closed())

	close(release)
	assert.Equal(t, 1, <-broadcastDone)
	<-removed
	assert.Equal(t, 1, c.Closed())

	c.mu.Lock()
	c.onSend = nil
	c.mu.Unlock()

	before := len(c.Frames())
	assert.Equal(t, 0, r.Broadcast([]byte(`{"topic":"alerts","data":{}}`)))
	assert.Len(t, c.Frames(), before)
}

func TestNoFrameAfterCloseUnderChurn(t *testing.T) {
	t.Parallel()
	r := testRelay()

	var wg sync.WaitGroup
	conns := make([]*fakeConn, 50)
	for i := range conns {
		conns[i] = newFake(fmt.Sprintf("c-%d", i))
		r.Dispatch(Connected{Conn: conns[i]})
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r.Broadcast([]byte(`{"topic":"sensor/water","data":{"value":1}}`))
		}
	}()
	for _, c := range conns {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			r.Dispatch(Closed{Conn: c})
		}(c)
	}
	wg.Wait()

	for _, c := range conns {
		assert.False(t, c.SentAfterClose(), "conn %s", c.id)
	}
}
