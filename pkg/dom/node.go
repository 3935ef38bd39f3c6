package dom

import "strings"

// Kind discriminates the node union.
type Kind uint8

const (
	KindElement  Kind = iota // <div>, <button>, etc.
	KindText                 // plain text
	KindFragment             // grouping without a wrapper element
	KindComponent            // nested component instance
	KindRaw                  // unescaped HTML
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindFragment:
		return "Fragment"
	case KindComponent:
		return "Component"
	case KindRaw:
		return "Raw"
	default:
		return "Unknown"
	}
}

// Node is one node of the UI tree.
type Node struct {
	Kind     Kind
	Tag      string    // element tag name ("div")
	Props    Props     // attributes and event handlers
	Children []*Node   // child nodes
	Key      string    // reconciliation key
	Text     string    // for KindText and KindRaw
	Comp     Component // for KindComponent
	Ref      string    // ref ID, assigned by AssignRefs
}

// Props holds attributes and event handlers keyed by name. Event
// handler entries use the lowercase "on"-prefixed event name
// ("onclick") and an opaque handler value.
type Props map[string]any

// Prop is a single attribute before it is merged into Props.
type Prop struct {
	Key   string
	Value any
}

// EventHandler attaches a handler function to an event.
type EventHandler struct {
	Event string // "onclick", "oninput", ...
	Fn    any
}

// Component is anything that can render a node tree.
type Component interface {
	Render() *Node
}

// FuncComponent adapts a plain render function to Component.
type FuncComponent struct {
	render func() *Node
}

func (f *FuncComponent) Render() *Node { return f.render() }

// Func wraps a render function as a Component.
func Func(render func() *Node) Component {
	return &FuncComponent{render: render}
}

// Keyed wraps a component child with a reconciliation key. Components
// in lists should be keyed so their state follows the item when the
// list reorders rather than sticking to the position.
func Keyed(key string, c Component) *Node {
	return &Node{Kind: KindComponent, Comp: c, Key: key}
}

// IsInteractive reports whether the node carries event handlers and
// therefore needs its events wired on the client.
func (n *Node) IsInteractive() bool {
	if n == nil || n.Kind != KindElement {
		return false
	}
	for key := range n.Props {
		if IsEventProp(key) {
			return true
		}
	}
	return false
}

// IsEventProp reports whether a prop key names an event handler.
// Case-insensitive so onclick, OnClick, and ONCLICK all match.
func IsEventProp(key string) bool {
	return len(key) > 2 && strings.EqualFold(key[:2], "on")
}

// Walk visits n and its descendants in preorder. visit returns false
// to skip the node's children.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, child := range n.Children {
		Walk(child, visit)
	}
}
