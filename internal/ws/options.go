package ws

import "time"

const (
	defaultWriteWait       = 10 * time.Second
	defaultPongWait        = 60 * time.Second
	defaultSendBuffer      = 64
	defaultMaxMessageBytes = 1 << 20
	defaultIOBufferSize    = 4096
	defaultMessageLimit    = 100
)

// Options tunes the websocket transport. Zero values fall back to defaults
// that suit a classroom-sized room.
type Options struct {
	WriteWait       time.Duration
	PongWait        time.Duration
	SendBuffer      int
	MaxMessageBytes int64
	ReadBufferSize  int
	WriteBufferSize int

	// MessageLimit caps inbound frames per connection per minute.
	MessageLimit int

	// AllowedOrigins restricts upgrade requests by Origin header. Empty
	// means any origin is accepted.
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = defaultMaxMessageBytes
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = defaultIOBufferSize
	}
	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = defaultIOBufferSize
	}
	if o.MessageLimit <= 0 {
		o.MessageLimit = defaultMessageLimit
	}
	return o
}

// pingPeriod leaves room for one full round trip before the read deadline.
func (o Options) pingPeriod() time.Duration {
	return o.PongWait * 9 / 10
}
