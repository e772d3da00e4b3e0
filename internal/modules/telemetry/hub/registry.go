package hub

import "sync"

// Conn is one open duplex connection as seen by the hub.
type Conn interface {
	ID() string
	IsOpen() bool
	SendText(payload []byte) error
}

// Registry holds the currently connected clients, keyed by connection id.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Add registers c. Re-adding an id replaces the previous entry.
func (r *Registry) Add(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Remove forgets id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Members returns a snapshot in no particular order. Callers may send to the
// snapshot without holding the registry lock.
func (r *Registry) Members() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
