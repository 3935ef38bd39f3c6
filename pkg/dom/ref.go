package dom

import (
	"strconv"
	"sync/atomic"
)

// RefAttr is the attribute under which refs are emitted in HTML.
const RefAttr = "data-rid"

// RefGen issues ref IDs (r1, r2, ...) unique within one session.
type RefGen struct {
	n atomic.Uint64
}

// NewRefGen creates a ref generator starting at r1.
func NewRefGen() *RefGen {
	return &RefGen{}
}

// Next returns the next ref ID.
func (g *RefGen) Next() string {
	return "r" + strconv.FormatUint(g.n.Add(1), 10)
}

// AssignRefs walks the tree and gives every element without a ref a
// fresh one. Elements that already carry a ref keep it, so calling
// AssignRefs after Diff has carried refs forward only fills in nodes
// new to this render.
func AssignRefs(n *Node, gen *RefGen) {
	if n == nil {
		return
	}
	if n.Kind == KindElement && n.Ref == "" {
		n.Ref = gen.Next()
	}
	for _, child := range n.Children {
		AssignRefs(child, gen)
	}
}

// CollectRefs returns every node in the tree that carries a ref,
// keyed by ref ID.
func CollectRefs(n *Node) map[string]*Node {
	out := make(map[string]*Node)
	Walk(n, func(node *Node) bool {
		if node.Ref != "" {
			out[node.Ref] = node
		}
		return true
	})
	return out
}

// FindByRef returns the node with the given ref, or nil.
func FindByRef(n *Node, ref string) *Node {
	if n == nil || ref == "" {
		return nil
	}
	if n.Ref == ref {
		return n
	}
	for _, child := range n.Children {
		if found := FindByRef(child, ref); found != nil {
			return found
		}
	}
	return nil
}
