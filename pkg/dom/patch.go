package dom

// PatchOp identifies a patch operation.
type PatchOp uint8

const (
	PatchSetText PatchOp = iota + 1
	PatchSetAttr
	PatchRemoveAttr
	PatchInsertNode
	PatchRemoveNode
	PatchMoveNode
	PatchReplaceNode
)

// String returns the wire name of the op.
func (op PatchOp) String() string {
	switch op {
	case PatchSetText:
		return "set-text"
	case PatchSetAttr:
		return "set-attr"
	case PatchRemoveAttr:
		return "remove-attr"
	case PatchInsertNode:
		return "insert-node"
	case PatchRemoveNode:
		return "remove-node"
	case PatchMoveNode:
		return "move-node"
	case PatchReplaceNode:
		return "replace-node"
	default:
		return "unknown"
	}
}

// Patch is a single DOM mutation. Targets are addressed by Ref when
// the node carries one; text and raw nodes are addressed by Parent
// plus Index instead. Index positions refer to the next tree, assuming
// earlier patches in the list have been applied.
type Patch struct {
	Op     PatchOp
	Ref    string // target ref ("" when addressed via Parent+Index)
	Parent string // parent ref for inserts, moves, and refless targets
	Index  int    // child position
	Key    string // attribute name for SetAttr/RemoveAttr
	Value  string // text for SetText, attribute value for SetAttr
	Node   *Node  // subtree for InsertNode/ReplaceNode
}
