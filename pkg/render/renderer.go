package render

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/weft-dev/weft/pkg/dom"
)

// EventsAttr is the attribute listing the events an element listens
// for, as a comma-separated list ("click,input"). The browser runtime
// delegates matching DOM events back to the server.
const EventsAttr = "data-on"

// RenderToString renders a node tree to an HTML string.
func RenderToString(n *dom.Node) (string, error) {
	var buf bytes.Buffer
	if err := RenderToWriter(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToWriter streams the HTML for a node tree to w. A nil node
// writes nothing.
func RenderToWriter(w io.Writer, n *dom.Node) error {
	return renderNode(w, n)
}

func renderNode(w io.Writer, n *dom.Node) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case dom.KindText:
		return writeString(w, escapeHTML(n.Text))
	case dom.KindRaw:
		// Trusted markup, written verbatim.
		return writeString(w, n.Text)
	case dom.KindElement:
		return renderElement(w, n)
	case dom.KindFragment:
		return renderChildren(w, n)
	case dom.KindComponent:
		if n.Comp == nil {
			return nil
		}
		return renderNode(w, n.Comp.Render())
	default:
		return fmt.Errorf("render: unknown node kind %d", n.Kind)
	}
}

func renderElement(w io.Writer, n *dom.Node) error {
	if err := writeString(w, "<"+n.Tag); err != nil {
		return err
	}
	if err := renderAttrs(w, n); err != nil {
		return err
	}
	if err := writeString(w, ">"); err != nil {
		return err
	}
	if dom.IsVoid(n.Tag) {
		return nil
	}
	if err := renderChildren(w, n); err != nil {
		return err
	}
	return writeString(w, "</"+n.Tag+">")
}

func renderChildren(w io.Writer, n *dom.Node) error {
	for _, child := range n.Children {
		if err := renderNode(w, child); err != nil {
			return err
		}
	}
	return nil
}

// renderAttrs writes the element's attributes in sorted order, then
// the data-on event list, then the ref under dom.RefAttr. Handler
// props contribute only their event names.
func renderAttrs(w io.Writer, n *dom.Node) error {
	keys := make([]string, 0, len(n.Props))
	var events []string
	for key, value := range n.Props {
		if dom.IsEventProp(key) {
			events = append(events, strings.ToLower(key[2:]))
			continue
		}
		if value == nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := n.Props[key]
		// Boolean attributes render bare when true and vanish when
		// false. Bool values on non-boolean attributes ("aria-expanded")
		// render as "true"/"false" text.
		if b, ok := value.(bool); ok && dom.IsBooleanAttr(key) {
			if b {
				if err := writeString(w, " "+key); err != nil {
					return err
				}
			}
			continue
		}
		s := attrString(value)
		if s == "" {
			continue
		}
		if err := writeString(w, " "+key+`="`+escapeAttr(s)+`"`); err != nil {
			return err
		}
	}

	if len(events) > 0 {
		sort.Strings(events)
		if err := writeString(w, " "+EventsAttr+`="`+strings.Join(events, ",")+`"`); err != nil {
			return err
		}
	}
	if n.Ref != "" {
		return writeString(w, " "+dom.RefAttr+`="`+escapeAttr(n.Ref)+`"`)
	}
	return nil
}

// attrString converts a prop value to its attribute text.
func attrString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func writeString(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}
