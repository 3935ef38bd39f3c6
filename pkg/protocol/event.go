package protocol

import (
	"encoding/json"
	"fmt"
)

// Event is a DOM event forwarded by the browser runtime. Ref names
// the element the event fired on, Event the DOM event type ("click",
// "input"), and Value the event payload: absent for plain events, a
// JSON string for input/change, an object of field names to values
// for submit.
//
// Seq increases by one per event on a connection. The server echoes
// the seq of the last event it processed in the patches it sends
// back, so the client can correlate updates with their cause.
type Event struct {
	Type  MsgType         `json:"type"`
	Seq   uint64          `json:"seq"`
	Ref   string          `json:"ref"`
	Event string          `json:"event"`
	Value json.RawMessage `json:"value,omitempty"`
}

// NewEvent builds an event message. value must be nil or valid JSON.
func NewEvent(seq uint64, ref, event string, value json.RawMessage) *Event {
	return &Event{Type: MsgEvent, Seq: seq, Ref: ref, Event: event, Value: value}
}

func (m *Event) validate() error {
	if m.Ref == "" {
		return fmt.Errorf("%w: event missing ref", ErrBadMessage)
	}
	if m.Event == "" {
		return fmt.Errorf("%w: event missing event name", ErrBadMessage)
	}
	return nil
}

// StringValue decodes the payload as a JSON string. Events without a
// payload decode as "".
func (m *Event) StringValue() (string, error) {
	if len(m.Value) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(m.Value, &s); err != nil {
		return "", fmt.Errorf("%w: event value is not a string: %v", ErrBadMessage, err)
	}
	return s, nil
}

// FormValue decodes the payload as a map of form field names to
// values, the shape submit events carry.
func (m *Event) FormValue() (map[string]string, error) {
	if len(m.Value) == 0 {
		return nil, nil
	}
	var fields map[string]string
	if err := json.Unmarshal(m.Value, &fields); err != nil {
		return nil, fmt.Errorf("%w: event value is not a form object: %v", ErrBadMessage, err)
	}
	return fields, nil
}

// DecodeValue decodes the payload into v for handlers that take a
// structured argument.
func (m *Event) DecodeValue(v any) error {
	if len(m.Value) == 0 {
		return fmt.Errorf("%w: event has no value", ErrBadMessage)
	}
	if err := json.Unmarshal(m.Value, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	return nil
}
