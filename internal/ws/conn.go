package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps one websocket behind a single writer goroutine, which is the
// only place the socket is written. Outbound frames arrive pre-encoded on a
// buffered channel; the channel is never closed, so enqueueing stays safe
// from any goroutine.
type Conn struct {
	handle string
	socket *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once

	writeWait  time.Duration
	pingPeriod time.Duration
}

func newConn(handle string, socket *websocket.Conn, opts Options) *Conn {
	return &Conn{
		handle:     handle,
		socket:     socket,
		send:       make(chan []byte, opts.SendBuffer),
		done:       make(chan struct{}),
		writeWait:  opts.WriteWait,
		pingPeriod: opts.pingPeriod(),
	}
}

// enqueue offers a frame to the writer without blocking. A false return
// means the buffer is full and the consumer is not keeping up.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// writeLoop drains the send buffer and keeps the peer alive with pings.
// Any write error tears the connection down; the read loop notices the
// closed socket and runs the usual teardown.
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.socket.Close()
	})
}
