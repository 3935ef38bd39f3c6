package protocol

import (
	"fmt"

	"github.com/weft-dev/weft/pkg/dom"
	"github.com/weft-dev/weft/pkg/render"
)

// WirePatch is the JSON form of a dom.Patch. Subtrees carried by
// insert and replace ops are pre-rendered to HTML so the browser
// applies them with insertAdjacentHTML. Absent fields decode as zero
// values; in particular a missing index means 0.
type WirePatch struct {
	Op     string `json:"op"`
	Ref    string `json:"ref,omitempty"`
	Parent string `json:"parent,omitempty"`
	Index  int    `json:"index,omitempty"`
	Key    string `json:"key,omitempty"`
	Value  string `json:"value,omitempty"`
	HTML   string `json:"html,omitempty"`
}

// FromPatch converts one diff patch to its wire form.
func FromPatch(p dom.Patch) (WirePatch, error) {
	wp := WirePatch{
		Op:     p.Op.String(),
		Ref:    p.Ref,
		Parent: p.Parent,
		Index:  p.Index,
		Key:    p.Key,
		Value:  p.Value,
	}
	if p.Node != nil {
		html, err := render.RenderToString(p.Node)
		if err != nil {
			return WirePatch{}, fmt.Errorf("protocol: render patch subtree: %w", err)
		}
		wp.HTML = html
	}
	return wp, nil
}

// Patches carries one batch of DOM updates. Seq increases by one per
// batch on a connection; EventSeq names the client event that caused
// the batch, zero for server-initiated updates.
type Patches struct {
	Type     MsgType     `json:"type"`
	Seq      uint64      `json:"seq"`
	EventSeq uint64      `json:"eventSeq,omitempty"`
	Patches  []WirePatch `json:"patches"`
}

// NewPatches converts a diff result into a patches message.
func NewPatches(seq, eventSeq uint64, ps []dom.Patch) (*Patches, error) {
	wire := make([]WirePatch, len(ps))
	for i, p := range ps {
		wp, err := FromPatch(p)
		if err != nil {
			return nil, err
		}
		wire[i] = wp
	}
	return &Patches{Type: MsgPatches, Seq: seq, EventSeq: eventSeq, Patches: wire}, nil
}
