package events

import "context"

// Listener is invoked synchronously by the dispatcher for every event.
// The dispatcher waits for it to return, so it should be fast or hand work off.
type Listener func(ev Event)

// AsyncListener is awaited by the dispatcher after all Listeners ran for an event.
// ctx is cancelled when the server is stopped; implementations should return promptly then.
// A returned error is logged and does not stop dispatching.
type AsyncListener func(ctx context.Context, ev Event) error
