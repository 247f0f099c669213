package interfaces

import "pollroom/pkg/types"

// Notifier is the one capability the session core holds on the transport.
// Delivery is fire-and-forget: implementations never block the caller and
// report nothing back, so every core path stays deterministic.
type Notifier interface {
	// TellAll fans an event out to every live connection.
	TellAll(event types.Event)

	// TellOne delivers an event to a single connection handle. Unknown
	// handles are silently ignored (the connection may already be gone).
	TellOne(handle string, event types.Event)
}
