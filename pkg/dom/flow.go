package dom

import "fmt"

// Text creates a text node.
func Text(content string) *Node {
	return &Node{Kind: KindText, Text: content}
}

// Textf creates a formatted text node.
func Textf(format string, args ...any) *Node {
	return Text(fmt.Sprintf(format, args...))
}

// Raw creates an unescaped HTML node. The content bypasses escaping,
// so it must never contain user input, and it must parse to exactly
// one DOM node so sibling patches keep addressing the right children.
func Raw(html string) *Node {
	return &Node{Kind: KindRaw, Text: html}
}

// Fragment groups children without a wrapper element. When a fragment
// is passed to an element constructor its children are spliced into
// the parent, so fragments only survive as tree roots.
func Fragment(children ...any) *Node {
	n := &Node{Kind: KindFragment}
	for _, child := range children {
		switch v := child.(type) {
		case nil:
		case *Node:
			appendChild(n, v)
		case []*Node:
			for _, c := range v {
				appendChild(n, c)
			}
		case Component:
			n.Children = append(n.Children, &Node{Kind: KindComponent, Comp: v})
		case string:
			appendChild(n, Text(v))
		}
	}
	return n
}

// If returns the node when the condition holds, nil otherwise. Element
// constructors ignore nil arguments, so conditional children compose
// without special cases.
func If(cond bool, node *Node) *Node {
	if cond {
		return node
	}
	return nil
}

// IfElse returns the first node when the condition holds, the second
// otherwise.
func IfElse(cond bool, then, otherwise *Node) *Node {
	if cond {
		return then
	}
	return otherwise
}

// When is If with lazy construction: fn runs only when the condition
// holds.
func When(cond bool, fn func() *Node) *Node {
	if cond {
		return fn()
	}
	return nil
}

// Map renders one node per slice element, dropping nils. Give each
// node a Key when the slice can reorder.
func Map[T any](items []T, fn func(item T, i int) *Node) []*Node {
	out := make([]*Node, 0, len(items))
	for i, item := range items {
		if n := fn(item, i); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Key sets the reconciliation key for keyed child diffing. The value
// is formatted with %v.
func Key(key any) Prop {
	return Attr("key", fmt.Sprintf("%v", key))
}
