package dom

import (
	"fmt"
	"reflect"
	"strconv"
)

// Diff compares two trees and returns the patches that transform prev
// into next. Matching elements in next inherit the ref of their prev
// counterpart, so patch targets stay stable across renders; call
// AssignRefs afterwards to give refs to nodes new in this render.
func Diff(prev, next *Node) []Patch {
	var patches []Patch
	diffNodes(prev, next, "", 0, &patches)
	return patches
}

// diffNodes appends the patches for one node position. parent and
// index locate the position for nodes that carry no ref of their own.
func diffNodes(prev, next *Node, parent string, index int, patches *[]Patch) {
	// Trees rendered from mounted components share unchanged subtrees by
	// pointer; a node cannot differ from itself. Also covers both nil.
	if prev == next {
		return
	}
	// Additions are emitted by the parent as InsertNode.
	if prev == nil {
		return
	}
	if next == nil {
		*patches = append(*patches, removePatch(prev, parent, index))
		return
	}
	if prev.Kind != next.Kind {
		*patches = append(*patches, replacePatch(prev, next, parent, index))
		return
	}

	switch prev.Kind {
	case KindText:
		if prev.Text != next.Text && parent != "" {
			*patches = append(*patches, Patch{
				Op:     PatchSetText,
				Parent: parent,
				Index:  index,
				Value:  next.Text,
			})
		}
	case KindElement:
		diffElement(prev, next, parent, index, patches)
	case KindFragment:
		// Fragments survive only as roots; their children diff against
		// the enclosing position.
		diffChildren(prev, next, parent, patches)
	case KindComponent:
		if prev.Comp != nil && next.Comp != nil {
			diffNodes(prev.Comp.Render(), next.Comp.Render(), parent, index, patches)
		}
	case KindRaw:
		if prev.Text != next.Text && parent != "" {
			*patches = append(*patches, Patch{
				Op:     PatchReplaceNode,
				Parent: parent,
				Index:  index,
				Node:   next,
			})
		}
	}
}

func diffElement(prev, next *Node, parent string, index int, patches *[]Patch) {
	if prev.Tag != next.Tag {
		*patches = append(*patches, replacePatch(prev, next, parent, index))
		return
	}

	next.Ref = prev.Ref

	diffProps(prev, next, patches)
	diffChildren(prev, next, prev.Ref, patches)
}

func diffProps(prev, next *Node, patches *[]Patch) {
	for key, prevVal := range prev.Props {
		if IsEventProp(key) {
			continue // handlers are rewired server-side, never patched
		}
		nextVal, ok := next.Props[key]
		if !ok {
			*patches = append(*patches, Patch{Op: PatchRemoveAttr, Ref: prev.Ref, Key: key})
			continue
		}
		if !propEqual(prevVal, nextVal) {
			*patches = append(*patches, attrPatch(prev.Ref, key, nextVal))
		}
	}

	for key, nextVal := range next.Props {
		if IsEventProp(key) {
			continue
		}
		if _, ok := prev.Props[key]; !ok {
			*patches = append(*patches, attrPatch(prev.Ref, key, nextVal))
		}
	}
}

// attrPatch builds the patch for an attribute value. Boolean
// attributes fold: true is present-and-empty, false removes.
func attrPatch(ref, key string, value any) Patch {
	if b, ok := value.(bool); ok && IsBooleanAttr(key) {
		if !b {
			return Patch{Op: PatchRemoveAttr, Ref: ref, Key: key}
		}
		return Patch{Op: PatchSetAttr, Ref: ref, Key: key}
	}
	return Patch{Op: PatchSetAttr, Ref: ref, Key: key, Value: propString(value)}
}

func diffChildren(prev, next *Node, parent string, patches *[]Patch) {
	if hasKeys(prev.Children) || hasKeys(next.Children) {
		diffKeyed(parent, prev.Children, next.Children, patches)
		return
	}
	diffUnkeyed(parent, prev.Children, next.Children, patches)
}

func diffUnkeyed(parent string, prev, next []*Node, patches *[]Patch) {
	n := len(prev)
	if len(next) > n {
		n = len(next)
	}

	for i := 0; i < n; i++ {
		var prevChild, nextChild *Node
		if i < len(prev) {
			prevChild = prev[i]
		}
		if i < len(next) {
			nextChild = next[i]
		}

		switch {
		case prevChild == nil:
			*patches = append(*patches, Patch{
				Op:     PatchInsertNode,
				Parent: parent,
				Index:  i,
				Node:   nextChild,
			})
		case nextChild == nil:
			// Tail removals all collapse onto the same index once the
			// earlier removals in the list have been applied.
			*patches = append(*patches, removePatch(prevChild, parent, len(next)))
		default:
			diffNodes(prevChild, nextChild, parent, i, patches)
		}
	}
}

// diffKeyed reconciles children by key. Matched keys move to their new
// position, new keys insert, vanished keys remove. Unkeyed nodes in a
// keyed list are always treated as new.
func diffKeyed(parent string, prev, next []*Node, patches *[]Patch) {
	prevByKey := make(map[string]int, len(prev))
	for i, child := range prev {
		if k := childKey(child); k != "" {
			prevByKey[k] = i
		}
	}

	matched := make(map[int]bool, len(prev))
	for nextIdx, nextChild := range next {
		key := childKey(nextChild)
		if key == "" {
			*patches = append(*patches, Patch{
				Op:     PatchInsertNode,
				Parent: parent,
				Index:  nextIdx,
				Node:   nextChild,
			})
			continue
		}

		prevIdx, ok := prevByKey[key]
		if !ok {
			*patches = append(*patches, Patch{
				Op:     PatchInsertNode,
				Parent: parent,
				Index:  nextIdx,
				Node:   nextChild,
			})
			continue
		}

		matched[prevIdx] = true
		prevChild := prev[prevIdx]
		if prevIdx != nextIdx {
			*patches = append(*patches, Patch{
				Op:     PatchMoveNode,
				Ref:    prevChild.Ref,
				Parent: parent,
				Index:  nextIdx,
			})
		}
		diffNodes(prevChild, nextChild, parent, nextIdx, patches)
	}

	for i, prevChild := range prev {
		if !matched[i] {
			*patches = append(*patches, removePatch(prevChild, parent, i))
		}
	}
}

func removePatch(prev *Node, parent string, index int) Patch {
	if prev.Ref != "" {
		return Patch{Op: PatchRemoveNode, Ref: prev.Ref}
	}
	return Patch{Op: PatchRemoveNode, Parent: parent, Index: index}
}

func replacePatch(prev, next *Node, parent string, index int) Patch {
	if prev.Ref != "" {
		return Patch{Op: PatchReplaceNode, Ref: prev.Ref, Node: next}
	}
	return Patch{Op: PatchReplaceNode, Parent: parent, Index: index, Node: next}
}

func childKey(n *Node) string {
	if n == nil {
		return ""
	}
	return n.Key
}

func hasKeys(children []*Node) bool {
	for _, child := range children {
		if childKey(child) != "" {
			return true
		}
	}
	return false
}

func propEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return reflect.DeepEqual(a, b)
}

func propString(v any) string {
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
		return fmt.Sprintf("%v", v)
	}
}
