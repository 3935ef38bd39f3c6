package migrate

import (
	"fmt"
	"go/token"
)

// FieldClass is what the scanner decided about one component field.
type FieldClass string

const (
	// ClassState marks a plain field that Render reads and a method
	// writes. The codemod migrates these to signals.
	ClassState FieldClass = "state"

	// ClassStatic marks a field no method mutates.
	ClassStatic FieldClass = "static"

	// ClassReactive marks a field that already holds a pkg/weft type.
	ClassReactive FieldClass = "reactive"

	// ClassSkipped marks a field the codemod leaves alone, whether by
	// rule, by tag, or because its usage defeats the rewrite.
	ClassSkipped FieldClass = "skipped"
)

// MutationKind distinguishes the assignment shapes the rewriter knows.
type MutationKind string

const (
	// MutationAssign is a plain c.F = v.
	MutationAssign MutationKind = "assign"

	// MutationOpAssign is c.F += v and the other compound assignments.
	MutationOpAssign MutationKind = "op-assign"

	// MutationIncDec is c.F++ or c.F--.
	MutationIncDec MutationKind = "inc-dec"
)

// Position is a source location inside the scanned tree.
type Position struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// String renders the position in file:line:column form.
func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

func positionOf(fset *token.FileSet, pos token.Pos) Position {
	p := fset.Position(pos)
	return Position{File: p.Filename, Line: p.Line, Column: p.Column}
}

// Mutation is one write to a component field.
type Mutation struct {
	Kind MutationKind `json:"kind"`
	Pos  Position     `json:"pos"`
}

// Field is one struct field of a scanned component.
type Field struct {
	Name  string     `json:"name"`
	Type  string     `json:"type"`
	Class FieldClass `json:"class"`

	// ReadInRender reports whether Render, or a method Render calls,
	// reads the field.
	ReadInRender bool `json:"readInRender"`

	// Reads counts read sites across the component's methods and its
	// constructor.
	Reads int `json:"reads,omitempty"`

	// Mutations lists the write sites, constructor included.
	Mutations []Mutation `json:"mutations,omitempty"`

	// Reason says why a skipped field was skipped.
	Reason string `json:"reason,omitempty"`
}

// Component is a struct type with a Render method returning *dom.Node.
type Component struct {
	Name    string  `json:"name"`
	Package string  `json:"package"`
	File    string  `json:"file"`
	Line    int     `json:"line"`
	Fields  []Field `json:"fields"`
}

// StateFields returns the fields classified for migration, in
// declaration order.
func (c *Component) StateFields() []Field {
	var out []Field
	for _, f := range c.Fields {
		if f.Class == ClassState {
			out = append(out, f)
		}
	}
	return out
}
