package protocol

// Ping is a client liveness probe. At carries the client's clock in
// Unix milliseconds and comes back unchanged in the pong, so the
// client can measure round-trip time.
type Ping struct {
	Type MsgType `json:"type"`
	At   int64   `json:"at,omitempty"`
}

// NewPing builds a ping stamped with the client clock in Unix
// milliseconds.
func NewPing(at int64) *Ping {
	return &Ping{Type: MsgPing, At: at}
}

// Pong answers a ping.
type Pong struct {
	Type MsgType `json:"type"`
	At   int64   `json:"at,omitempty"`
}

// NewPong answers the given ping.
func NewPong(p *Ping) *Pong {
	return &Pong{Type: MsgPong, At: p.At}
}

// Ack tells the server the client has applied patch batches up to
// LastSeq. The server uses it to drop replay history and to notice a
// lagging client.
type Ack struct {
	Type    MsgType `json:"type"`
	LastSeq uint64  `json:"lastSeq"`
}

// NewAck acknowledges patch batches up to lastSeq.
func NewAck(lastSeq uint64) *Ack {
	return &Ack{Type: MsgAck, LastSeq: lastSeq}
}

// Reload tells the client to discard its DOM and reload the page,
// used when the server cannot bring the client up to date with
// patches (state lost, code changed).
type Reload struct {
	Type   MsgType `json:"type"`
	Reason string  `json:"reason,omitempty"`
}

// NewReload builds a reload message.
func NewReload(reason string) *Reload {
	return &Reload{Type: MsgReload, Reason: reason}
}
