package ws

import (
	"sync"
	"time"
)

const limitWindow = time.Minute

// frameLimiter caps inbound frames per connection handle over fixed
// one-minute windows. State for a handle is dropped when its connection goes
// away, so the map never outgrows the set of live connections.
type frameLimiter struct {
	mu      sync.Mutex
	limit   int
	windows map[string]*frameWindow
	now     func() time.Time
}

type frameWindow struct {
	count int
	start time.Time
}

func newFrameLimiter(limit int) *frameLimiter {
	return &frameLimiter{
		limit:   limit,
		windows: make(map[string]*frameWindow),
		now:     time.Now,
	}
}

// allow records one frame for the handle and reports whether it fits in the
// current window. The first frame of a window always passes.
func (l *frameLimiter) allow(handle string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[handle]
	if !ok || now.Sub(w.start) >= limitWindow {
		l.windows[handle] = &frameWindow{count: 1, start: now}
		return true
	}

	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

func (l *frameLimiter) forget(handle string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, handle)
}
