package weft

import (
	"encoding/json"
	"fmt"
)

// Event is the payload delivered to DOM event handlers declared with the
// func(weft.Event) signature. Handlers that only need the input value can
// take func(string) instead, and handlers that need nothing take func().
type Event struct {
	// Name is the DOM event type without the "on" prefix ("click", "input").
	Name string

	// Ref identifies the element the handler is attached to.
	Ref string

	// Value is the raw JSON payload sent by the client: a string for input
	// events, an object of field names to values for form submits, empty
	// for plain clicks.
	Value json.RawMessage
}

// String returns the event value decoded as a string. Events without a
// value return "".
func (e Event) String() string {
	if len(e.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Value, &s); err != nil {
		return ""
	}
	return s
}

// Form returns the event value decoded as form fields, for submit events.
func (e Event) Form() (map[string]string, error) {
	if len(e.Value) == 0 {
		return nil, fmt.Errorf("event %q carries no value", e.Name)
	}
	var fields map[string]string
	if err := json.Unmarshal(e.Value, &fields); err != nil {
		return nil, fmt.Errorf("decode %q form value: %w", e.Name, err)
	}
	return fields, nil
}

// Decode unmarshals the event value into v for custom payloads.
func (e Event) Decode(v any) error {
	if len(e.Value) == 0 {
		return fmt.Errorf("event %q carries no value", e.Name)
	}
	return json.Unmarshal(e.Value, v)
}
