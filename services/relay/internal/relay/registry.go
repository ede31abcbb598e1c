package relay

import "sync"

// member guards sends to one connection. Once gone is set no further frame
// is written to it.
type member struct {
	Conn

	mu   sync.Mutex
	gone bool
}

// send reports false without writing when the member was already removed.
func (m *member) send(frame []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gone {
		return false, nil
	}
	return true, m.Send(frame)
}

// Registry is the set of active downstream connections. All methods are safe
// for concurrent use. Removal waits for an in-flight send to the same
// connection, so after Remove returns that connection gets nothing more.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*member
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*member)}
}

func (r *Registry) Add(c Conn) {
	r.mu.Lock()
	r.conns[c.ID()] = &member{Conn: c}
	r.mu.Unlock()
}

// Remove reports whether c was registered. Removing twice is harmless.
func (r *Registry) Remove(c Conn) bool {
	r.mu.Lock()
	m, ok := r.conns[c.ID()]
	if ok {
		delete(r.conns, c.ID())
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	m.mu.Lock()
	m.gone = true
	m.mu.Unlock()
	return true
}

func (r *Registry) Has(c Conn) bool {
	r.mu.RLock()
	_, ok := r.conns[c.ID()]
	r.mu.RUnlock()
	return ok
}

func (r *Registry) Snapshot() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.conns))
	for _, m := range r.conns {
		out = append(out, m.Conn)
	}
	return out
}

func (r *Registry) members() []*member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*member, 0, len(r.conns))
	for _, m := range r.conns {
		out = append(out, m)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
