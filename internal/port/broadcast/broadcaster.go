// Package broadcast defines the port for pushing run progress events to
// connected clients in real time.
package broadcast

import "context"

// Broadcaster sends a typed event to every connected client. Implementations
// must tolerate slow or dead clients without blocking the caller.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
