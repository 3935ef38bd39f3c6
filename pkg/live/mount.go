package live

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/weft-dev/weft/pkg/dom"
	"github.com/weft-dev/weft/pkg/weft"
)

// mount is one live component instance: the component, the scope that
// owns its signals and effects, and the subtree it rendered last.
// Mounts form a tree mirroring the component nesting, and each one
// implements weft.Listener so a signal write marks exactly the
// components that read it.
type mount struct {
	sess   *Session
	parent *mount
	comp   dom.Component
	scope  *weft.Scope

	// slot identifies this mount within its parent across renders.
	slot string

	children map[string]*mount

	// lastTree is the materialized subtree from the previous render,
	// with component nodes replaced by their mounts' subtrees.
	lastTree *dom.Node

	dirty atomic.Bool
}

func newMount(sess *Session, parent *mount, comp dom.Component, slot string) *mount {
	parentScope := sess.scope
	if parent != nil {
		parentScope = parent.scope
	}
	return &mount{
		sess:     sess,
		parent:   parent,
		comp:     comp,
		scope:    weft.NewScope(parentScope),
		slot:     slot,
		children: make(map[string]*mount),
	}
}

// ID implements weft.Listener. Scopes draw from the same ID space as
// every other reactive primitive, so subscriber sets stay deduplicated.
func (m *mount) ID() uint64 {
	return m.scope.ID()
}

// MarkDirty implements weft.Listener: a signal this component read
// during its last render has changed.
func (m *mount) MarkDirty() {
	if m.scope.Disposed() {
		return
	}
	if m.dirty.CompareAndSwap(false, true) {
		m.sess.scheduleRender()
	}
}

// render runs the component under this mount's scope and tracking
// listener, then materializes nested component nodes into mounted
// subtrees. The returned tree contains no KindComponent nodes.
func (m *mount) render(c *Ctx) *dom.Node {
	if m.comp == nil {
		return nil
	}

	var tree *dom.Node
	weft.WithCtx(c, func() {
		m.scope.Run(func() {
			weft.WithListener(m, func() {
				tree = m.comp.Render()
			})
		})
	})
	if tree == nil {
		// A component may render nothing. A template element renders
		// invisibly but still occupies a child slot in the browser, so
		// sibling patch indexes stay aligned and the slot can be
		// replaced by ref when the component renders content again.
		tree = dom.El("template")
	}

	seen := make(map[string]bool, len(m.children))
	tree = m.materialize(c, tree, "", seen)
	m.prune(seen)
	return tree
}

// materialize swaps component nodes for their mounts' subtrees. Slots
// new in this render mount their component; slots seen before keep
// the mounted instance and discard the freshly constructed one, so
// component state lives as long as the slot does. A surviving child
// that is itself dirty re-renders here rather than in a later pass.
//
// path locates n in the parent's output ("" for the root, then one
// ".<index>" per level); render output is owned by the runtime, so
// updating children in place is safe.
func (m *mount) materialize(c *Ctx, n *dom.Node, path string, seen map[string]bool) *dom.Node {
	if n == nil {
		return nil
	}

	if n.Kind == dom.KindComponent {
		slot := slotKey(n, path)
		seen[slot] = true

		child, ok := m.children[slot]
		if !ok {
			child = newMount(m.sess, m, n.Comp, slot)
			m.children[slot] = child
			child.lastTree = child.render(c)
			return child.lastTree
		}
		if child.dirty.Load() {
			child.dirty.Store(false)
			child.lastTree = child.render(c)
		}
		return child.lastTree
	}

	for i, childNode := range n.Children {
		n.Children[i] = m.materialize(c, childNode, path+"."+strconv.Itoa(i), seen)
	}
	return n
}

// prune disposes children whose slot did not appear in this render.
func (m *mount) prune(seen map[string]bool) {
	for slot, child := range m.children {
		if !seen[slot] {
			child.dispose()
			delete(m.children, slot)
		}
	}
}

// dispose unmounts this component and everything below it. Scope
// disposal runs effect cleanups and OnCleanup callbacks.
func (m *mount) dispose() {
	for _, child := range m.children {
		child.dispose()
	}
	m.children = nil
	m.scope.Dispose()
	m.comp = nil
	m.lastTree = nil
}

// walkDirty visits mounts depth-first, parents before children, and
// calls fn on each dirty one. fn re-renders the mount, which also
// refreshes dirty descendants, so the walk skips a visited mount's
// subtree.
func (m *mount) walkDirty(fn func(*mount)) {
	if m.dirty.Load() {
		fn(m)
		return
	}
	for _, child := range m.children {
		child.walkDirty(fn)
	}
}

// slotKey identifies a component node across renders of its parent: by
// key when the node carries one, by position otherwise, and always
// qualified by the component's type so a slot that changes component
// kinds mounts fresh.
func slotKey(n *dom.Node, path string) string {
	if n.Key != "" {
		return fmt.Sprintf("k:%s/%T", n.Key, n.Comp)
	}
	return fmt.Sprintf("p:%s/%T", path, n.Comp)
}
