package relay

// Conn is one downstream client connection.
type Conn interface {
	ID() string
	// Send writes one text frame. It must be safe to call from the dispatch
	// loop while the connection's own reader is running.
	Send(frame []byte) error
	Close() error
}

// Event is the closed set of inputs the relay reacts to.
type Event interface {
	isEvent()
}

// Connected is raised when a downstream client finished its handshake.
type Connected struct {
	Conn Conn
}

// MessageReceived carries one upstream message on a logical topic.
type MessageReceived struct {
	Topic   string
	Payload []byte
}

// Errored reports a failure. A nil Conn means the upstream session failed.
type Errored struct {
	Conn Conn
	Err  error
}

// Closed is raised when a downstream client went away.
type Closed struct {
	Conn Conn
}

func (Connected) isEvent()       {}
func (MessageReceived) isEvent() {}
func (Errored) isEvent()         {}
func (Closed) isEvent()          {}
