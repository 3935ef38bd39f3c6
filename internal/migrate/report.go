package migrate

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/weft-dev/weft/internal/errors"
)

// Report is what the analyzer hands to the CLI and the report store.
// The rewriter works from the same report, so what analyze prints is
// what migrate applies.
type Report struct {
	// ID uniquely names this analyzer run.
	ID string `json:"id"`

	GeneratedAt time.Time `json:"generatedAt"`

	// Roots are the source roots the scan covered.
	Roots []string `json:"roots"`

	Components  []Component  `json:"components"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	// EditEstimate approximates the rewrite sites the codemod will
	// touch: one type edit and one initializer per state field, plus
	// every read and write site.
	EditEstimate int `json:"editEstimate"`
}

// Diagnostic is one coded finding attached to the report.
type Diagnostic struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Component  string   `json:"component,omitempty"`
	Field      string   `json:"field,omitempty"`
	Pos        Position `json:"pos"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// newDiagnostic stamps a registered error code into a report entry.
func newDiagnostic(code string, pos Position, component, field, suggestion string) Diagnostic {
	e := errors.New(code)
	if suggestion != "" {
		e = e.WithSuggestion(suggestion)
	}
	return Diagnostic{
		Code:       e.Code,
		Message:    e.Message,
		Component:  component,
		Field:      field,
		Pos:        pos,
		Suggestion: e.Suggestion,
	}
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText renders the report as the table the CLI prints: one row
// per field, then mutation sites, diagnostics, and a summary line.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tFIELD\tTYPE\tCLASS\tREADS\tWRITES\tNOTE")
	for _, c := range r.Components {
		for _, f := range c.Fields {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				c.Name, f.Name, f.Type, f.Class, f.Reads, len(f.Mutations), f.Reason)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var mutations []string
	for _, c := range r.Components {
		for _, f := range c.Fields {
			for _, m := range f.Mutations {
				mutations = append(mutations, fmt.Sprintf("%s.%s %s %s", c.Name, f.Name, m.Kind, m.Pos))
			}
		}
	}
	if len(mutations) > 0 {
		fmt.Fprintln(w, "\nmutations:")
		for _, m := range mutations {
			fmt.Fprintln(w, "  "+m)
		}
	}

	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(w, "\ndiagnostics:")
		for _, d := range r.Diagnostics {
			line := fmt.Sprintf("  %s %s %s", d.Code, d.Pos, d.Message)
			if d.Field != "" {
				line += ": " + d.Component + "." + d.Field
			}
			if d.Suggestion != "" {
				line += " (" + d.Suggestion + ")"
			}
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintf(w, "\n%d components, %d state fields, ~%d edits\n",
		len(r.Components), r.stateCount(), r.EditEstimate)
	return nil
}

func (r *Report) stateCount() int {
	n := 0
	for _, c := range r.Components {
		n += len(c.StateFields())
	}
	return n
}

func estimateEdits(r *Report) int {
	total := 0
	for _, c := range r.Components {
		for _, f := range c.Fields {
			if f.Class != ClassState {
				continue
			}
			total += 2 + f.Reads + len(f.Mutations)
		}
	}
	return total
}
