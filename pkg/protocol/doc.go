// Package protocol defines the JSON wire protocol between the browser
// runtime and a live session.
//
// Every message is a single JSON object with a "type" discriminator,
// sent as one WebSocket text frame:
//
//	{"type":"event","seq":3,"ref":"r7","event":"click"}
//	{"type":"patches","seq":12,"patches":[{"op":"set-text","parent":"r2","index":0,"value":"4"}]}
//
// Client to server: hello, event, ping, ack.
// Server to client: welcome, patches, reload, error, pong.
//
// Codec enforces the size limit and rejects unknown or misdirected
// message types with ErrUnknownMessage. Unknown fields inside a known
// message are ignored, so either side can add fields without breaking
// older peers.
//
// Patches travel as their dom.Patch fields plus the inserted subtree
// pre-rendered to an HTML string, so the browser applies inserts with
// insertAdjacentHTML instead of rebuilding trees from JSON.
package protocol
