// Package state persists session signal snapshots across reconnects and
// server restarts.
//
// Signals created with weft.Persist register themselves with the session's
// Registry. When a connection drops, the live server captures the registered
// signals into a Snapshot and writes it to a Store keyed by the session's
// resume token. When the client reconnects within the resume window, the
// snapshot is loaded and rehydrates persisted signals as the component tree
// re-creates them.
//
// Two stores ship with weft: MemoryStore keeps snapshots in process memory
// and is the default, BadgerStore keeps them in an embedded Badger database
// so they survive restarts. Select one with the state section of weft.json.
package state
