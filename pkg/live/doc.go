// Package live runs weft components over a WebSocket connection: it
// serves the initial page render over plain HTTP, then keeps a session
// per browser tab whose signals, effects, and event handlers live on
// the server while the browser only applies DOM patches.
//
// A Server owns the HTTP surface. Pages are registered with Handle,
// which serves the server-side render on GET and records the root
// component for sessions created over /weft/ws:
//
//	srv := live.NewServer(live.Options{Addr: ":8080"})
//	srv.Handle("/", func() dom.Component { return NewCounter() })
//	return srv.Run(context.Background())
//
// Each Session runs a single event loop goroutine. Client events,
// dispatched callbacks, and render wakes are all funneled through it,
// so component code never needs locks: handlers run, effects flush,
// dirty components re-render, and the diff against the previous tree
// goes out as one patch batch.
//
// Sessions outlive their connections. A dropped connection detaches
// the session and leaves it resumable for the configured window; the
// client reconnects with a signed resume token and either replays the
// patch batches it missed or receives the managed region wholesale.
// Snapshots of persisted signals (state.Persist) are written to the
// state.Store on detach, so a session evicted from memory, or a
// restarted server with a configured secret, can still rebuild the
// page with its state intact.
package live
