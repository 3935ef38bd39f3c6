package protocol

import "fmt"

// Hello is the first message a client sends after the WebSocket
// opens. Path is the page the client is on, so a server that no
// longer holds the session can mount the right route again. A
// non-empty Resume asks the server to restore the session the token
// belongs to; LastSeq tells it the last patch batch the client
// applied before disconnecting.
type Hello struct {
	Type    MsgType `json:"type"`
	Version string  `json:"version"`
	Path    string  `json:"path,omitempty"`
	Resume  string  `json:"resume,omitempty"`
	LastSeq uint64  `json:"lastSeq,omitempty"`
}

// NewHello builds a hello for the current protocol version.
func NewHello(path, resumeToken string, lastSeq uint64) *Hello {
	return &Hello{Type: MsgHello, Version: Version, Path: path, Resume: resumeToken, LastSeq: lastSeq}
}

func (m *Hello) validate() error {
	if m.Version != Version {
		return fmt.Errorf("%w: unsupported version %q", ErrBadMessage, m.Version)
	}
	return nil
}

// Welcome answers a hello. Resumed reports whether the server
// restored state from the resume token; when false the client holds
// a fresh session and should expect a full page state.
type Welcome struct {
	Type      MsgType `json:"type"`
	Version   string  `json:"version"`
	SessionID string  `json:"sessionId"`
	Resume    string  `json:"resume"`
	Resumed   bool    `json:"resumed,omitempty"`
}

// NewWelcome builds a welcome carrying the session's identity and a
// fresh resume token.
func NewWelcome(sessionID, resumeToken string, resumed bool) *Welcome {
	return &Welcome{
		Type:      MsgWelcome,
		Version:   Version,
		SessionID: sessionID,
		Resume:    resumeToken,
		Resumed:   resumed,
	}
}

func (m *Welcome) validate() error {
	if m.SessionID == "" {
		return fmt.Errorf("%w: welcome missing sessionId", ErrBadMessage)
	}
	return nil
}
