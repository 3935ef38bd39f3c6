package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxMessageBytes is the default size limit for a single message.
const MaxMessageBytes = 1 << 20

var (
	// ErrUnknownMessage marks a message whose type is not part of the
	// protocol or arrived in the wrong direction.
	ErrUnknownMessage = errors.New("protocol: unknown message type")

	// ErrBadMessage marks a message that failed to decode or
	// validate. Wrapped errors carry the detail.
	ErrBadMessage = errors.New("protocol: bad message")

	// ErrTooLarge marks a message over the codec's size limit.
	ErrTooLarge = errors.New("protocol: message too large")
)

// Codec encodes and decodes protocol messages. The zero value is
// ready to use with the default size limit.
type Codec struct {
	// MaxBytes caps the encoded size of one message in either
	// direction. Zero means MaxMessageBytes.
	MaxBytes int
}

func (c *Codec) limit() int {
	if c.MaxBytes > 0 {
		return c.MaxBytes
	}
	return MaxMessageBytes
}

// Encode marshals a message, enforcing the size limit.
func (c *Codec) Encode(m Msg) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.Kind(), err)
	}
	if len(data) > c.limit() {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, m.Kind(), len(data), c.limit())
	}
	return data, nil
}

// DecodeClient decodes a client-to-server message: hello, event,
// ping, or ack. Anything else is rejected with ErrUnknownMessage.
func (c *Codec) DecodeClient(data []byte) (Msg, error) {
	kind, err := c.probe(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case MsgHello:
		m := &Hello{}
		return c.unmarshal(data, m, m.validate)
	case MsgEvent:
		m := &Event{}
		return c.unmarshal(data, m, m.validate)
	case MsgPing:
		return c.unmarshal(data, &Ping{}, nil)
	case MsgAck:
		return c.unmarshal(data, &Ack{}, nil)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, string(kind))
	}
}

// DecodeServer decodes a server-to-client message: welcome, patches,
// reload, error, or pong.
func (c *Codec) DecodeServer(data []byte) (Msg, error) {
	kind, err := c.probe(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case MsgWelcome:
		m := &Welcome{}
		return c.unmarshal(data, m, m.validate)
	case MsgPatches:
		return c.unmarshal(data, &Patches{}, nil)
	case MsgReload:
		return c.unmarshal(data, &Reload{}, nil)
	case MsgError:
		return c.unmarshal(data, &ErrorMsg{}, nil)
	case MsgPong:
		return c.unmarshal(data, &Pong{}, nil)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, string(kind))
	}
}

// probe checks the size limit and reads the type discriminator.
func (c *Codec) probe(data []byte) (MsgType, error) {
	if len(data) > c.limit() {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), c.limit())
	}
	var env struct {
		Type MsgType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrBadMessage)
	}
	return env.Type, nil
}

// unmarshal decodes into m with strict field types, then runs the
// message's own validation. Unknown fields are ignored for forward
// compatibility.
func (c *Codec) unmarshal(data []byte, m Msg, validate func() error) (Msg, error) {
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if validate != nil {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	return m, nil
}
