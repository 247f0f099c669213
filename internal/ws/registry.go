package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"pollroom/pkg/types"
)

// Registry tracks live connections by handle and fans events out to them.
// It is the delivery side of the session core: fire-and-forget, no retries,
// no backpressure. An event is marshaled once and the same bytes go to every
// recipient; a connection whose buffer is full gets dropped instead of
// slowing the room down.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	log   *zap.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		conns: make(map[string]*Conn),
		log:   log,
	}
}

// TellAll broadcasts an event to every live connection.
func (r *Registry) TellAll(event types.Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		r.log.Error("event marshal failed",
			zap.String("event", event.Event), zap.Error(err))
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, conn := range r.conns {
		r.deliver(conn, frame)
	}
}

// TellOne sends an event to a single connection. Unknown handles are
// silently ignored; the recipient may have disconnected already.
func (r *Registry) TellOne(handle string, event types.Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		r.log.Error("event marshal failed",
			zap.String("event", event.Event), zap.Error(err))
		return
	}

	r.mu.RLock()
	conn, ok := r.conns[handle]
	r.mu.RUnlock()
	if !ok {
		return
	}

	r.deliver(conn, frame)
}

func (r *Registry) deliver(conn *Conn, frame []byte) {
	if conn.enqueue(frame) {
		return
	}
	r.log.Warn("dropping connection with full send buffer",
		zap.String("handle", conn.handle))
	conn.close()
}

func (r *Registry) add(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[conn.handle] = conn
}

func (r *Registry) remove(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, handle)
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

// CloseAll tears down every connection, typically during shutdown. Each
// read loop observes its closed socket and finishes its own teardown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
}
