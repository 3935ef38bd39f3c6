package migrate

import (
	"fmt"
	"go/ast"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/weft-dev/weft/internal/log"
)

// Scanner finds components under the configured source roots and
// classifies their fields.
type Scanner struct {
	roots  []string
	rules  *Rules
	logger zerolog.Logger
}

// NewScanner creates a scanner over the given roots. Nil rules apply
// the defaults; empty roots scan the current directory.
func NewScanner(roots []string, rules *Rules) *Scanner {
	if len(roots) == 0 {
		roots = []string{"."}
	}
	if rules == nil {
		rules = DefaultRules()
	}
	return &Scanner{
		roots:  roots,
		rules:  rules,
		logger: log.WithComponent("migrate"),
	}
}

// Scan walks the roots, analyzes every package, and assembles the
// report the rewriter and the report store consume.
func (s *Scanner) Scan() (*Report, error) {
	byDir, err := collectGoFiles(s.roots, s.rules)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Roots:       slices.Clone(s.roots),
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	slices.Sort(dirs)
	for _, dir := range dirs {
		pkgs, issues := parseDir(dir, byDir[dir])
		for _, iss := range issues {
			s.logger.Warn().Str("file", iss.path).Err(iss.err).Msg("file failed to parse")
			report.Diagnostics = append(report.Diagnostics,
				newDiagnostic("W200", iss.pos, "", "", "fix the syntax errors and re-run"))
		}
		for _, p := range pkgs {
			ix := indexPkg(p)
			for _, name := range ix.componentNames() {
				comp, diags := s.analyzeComponent(ix, ix.structs[name])
				report.Components = append(report.Components, comp)
				report.Diagnostics = append(report.Diagnostics, diags...)
				s.logger.Debug().
					Str("component", comp.Name).
					Str("file", comp.File).
					Int("fields", len(comp.Fields)).
					Msg("component found")
			}
		}
	}

	report.EditEstimate = estimateEdits(report)
	s.logger.Info().
		Int("components", len(report.Components)).
		Int("diagnostics", len(report.Diagnostics)).
		Int("estimate", report.EditEstimate).
		Msg("scan complete")
	return report, nil
}

// fieldUsage aggregates what the component's own code does with one
// field. Constructor writes are tracked apart from method writes: a
// field only assigned at construction is initialization, not state.
type fieldUsage struct {
	methodMuts   []Mutation
	ctorMuts     []Mutation
	reads        int
	readInRender bool
	addressed    []Position
	unsupported  []Position
}

func (s *Scanner) analyzeComponent(ix *pkgIndex, sd *structDecl) (Component, []Diagnostic) {
	fset := ix.pkg.fset
	comp := Component{
		Name:    sd.name,
		Package: ix.pkg.name,
		File:    sd.file.path,
		Line:    fset.Position(sd.spec.Pos()).Line,
	}
	var diags []Diagnostic

	type fieldMeta struct {
		field     Field
		typeExpr  ast.Expr
		tagStatic bool
		embedded  bool
	}
	var metas []*fieldMeta
	fieldSet := make(map[string]bool)
	for _, f := range sd.st.Fields.List {
		if len(f.Names) == 0 {
			name := exprString(f.Type)
			metas = append(metas, &fieldMeta{
				embedded: true,
				field:    Field{Name: name, Type: name},
			})
			continue
		}
		for _, id := range f.Names {
			metas = append(metas, &fieldMeta{
				field:     Field{Name: id.Name, Type: exprString(f.Type)},
				typeExpr:  f.Type,
				tagStatic: hasStaticTag(f.Tag),
			})
			fieldSet[id.Name] = true
		}
	}

	agg := make(map[string]*fieldUsage, len(fieldSet))
	for name := range fieldSet {
		agg[name] = &fieldUsage{}
	}

	// The component's own methods.
	reach := ix.renderReachable(sd.name)
	for _, m := range ix.methods[sd.name] {
		if m.fn.Body == nil || m.recvName == "" {
			continue
		}
		u := scanBody(m.fn.Body, map[string]bool{m.recvName: true}, fieldSet)
		inRender := reach[m.fn.Name.Name]
		for _, w := range u.writes {
			fu := agg[w.field]
			fu.methodMuts = append(fu.methodMuts, Mutation{Kind: w.kind, Pos: positionOf(fset, w.sel.Pos())})
		}
		for _, rd := range u.reads {
			fu := agg[rd.field]
			fu.reads++
			if inRender {
				fu.readInRender = true
			}
		}
		for _, ref := range u.addressed {
			agg[ref.field].addressed = append(agg[ref.field].addressed, positionOf(fset, ref.pos))
		}
		for _, ref := range u.unsupported {
			agg[ref.field].unsupported = append(agg[ref.field].unsupported, positionOf(fset, ref.pos))
		}
	}

	// The conventional constructor.
	ctor := ix.constructor(sd.name)
	if ctor != nil && ctor.fn.Body != nil {
		u := scanBody(ctor.fn.Body, compBindings(ctor.fn, sd.name), fieldSet)
		for _, w := range u.writes {
			fu := agg[w.field]
			fu.ctorMuts = append(fu.ctorMuts, Mutation{Kind: w.kind, Pos: positionOf(fset, w.sel.Pos())})
		}
		for _, rd := range u.reads {
			agg[rd.field].reads++
		}
		for _, ref := range u.addressed {
			agg[ref.field].addressed = append(agg[ref.field].addressed, positionOf(fset, ref.pos))
		}
		for _, ref := range u.unsupported {
			agg[ref.field].unsupported = append(agg[ref.field].unsupported, positionOf(fset, ref.pos))
		}
	}

	// References from anything that is not the component or its
	// constructor: other functions and other types' methods. The
	// rewrite only covers the component's own code, so any such field
	// is left alone with a diagnostic.
	external := make(map[string][]Position)
	record := func(fn *ast.FuncDecl) {
		bindings := compBindings(fn, sd.name)
		if len(bindings) == 0 {
			return
		}
		u := scanBody(fn.Body, bindings, fieldSet)
		for _, w := range u.writes {
			external[w.field] = append(external[w.field], positionOf(fset, w.sel.Pos()))
		}
		for _, rd := range u.reads {
			external[rd.field] = append(external[rd.field], positionOf(fset, rd.sel.Pos()))
		}
		for _, ref := range u.addressed {
			external[ref.field] = append(external[ref.field], positionOf(fset, ref.pos))
		}
		for _, ref := range u.unsupported {
			external[ref.field] = append(external[ref.field], positionOf(fset, ref.pos))
		}
	}
	for _, fd := range ix.funcs {
		if fd == ctor {
			continue
		}
		record(fd.fn)
	}
	for typeName, methods := range ix.methods {
		if typeName == sd.name {
			continue
		}
		for _, m := range methods {
			record(m.fn)
		}
	}

	// Construction shapes the rewriter cannot extend with signal
	// initializers.
	unmigratable := false
	for _, lr := range ix.literalsOf(sd.name) {
		if len(lr.lit.Elts) == 0 {
			continue
		}
		if _, keyed := lr.lit.Elts[0].(*ast.KeyValueExpr); !keyed {
			unmigratable = true
			diags = append(diags, newDiagnostic("W206", positionOf(fset, lr.lit.Pos()),
				sd.name, "", "use keyed fields in this composite literal"))
		}
	}
	for _, pos := range ix.newCallsOf(sd.name) {
		unmigratable = true
		diags = append(diags, newDiagnostic("W206", positionOf(fset, pos),
			sd.name, "", fmt.Sprintf("construct %s with a composite literal instead of new", sd.name)))
	}

	for _, m := range metas {
		f := &m.field
		switch {
		case m.embedded:
			f.Class = ClassSkipped
			f.Reason = "embedded field"
			continue
		case signalType(m.typeExpr, sd.file.imports):
			f.Class = ClassReactive
			continue
		case m.tagStatic:
			f.Class = ClassSkipped
			f.Reason = `weft:"static" tag`
			continue
		case s.rules.SkipField(comp.Name, f.Name):
			f.Class = ClassSkipped
			f.Reason = "rules"
			continue
		}

		u := agg[f.Name]
		f.ReadInRender = u.readInRender
		f.Reads = u.reads
		f.Mutations = append(u.methodMuts, u.ctorMuts...)

		switch {
		case len(u.addressed) > 0:
			f.Class = ClassSkipped
			f.Reason = "address taken"
			for _, pos := range u.addressed {
				diags = append(diags, newDiagnostic("W202", pos, comp.Name, f.Name,
					fmt.Sprintf("replace the pointer with Signal methods or tag the field `weft:%q`", "static")))
			}
		case len(u.unsupported) > 0:
			f.Class = ClassSkipped
			f.Reason = "unsupported mutation"
			for _, pos := range u.unsupported {
				diags = append(diags, newDiagnostic("W203", pos, comp.Name, f.Name,
					fmt.Sprintf("rewrite the statement into a single %s assignment", f.Name)))
			}
		case len(external[f.Name]) > 0:
			f.Class = ClassSkipped
			f.Reason = "referenced outside the component's methods"
			for _, pos := range external[f.Name] {
				diags = append(diags, newDiagnostic("W201", pos, comp.Name, f.Name,
					fmt.Sprintf("route the access through a method of %s", comp.Name)))
			}
		case len(u.methodMuts) > 0 && f.ReadInRender:
			f.Class = ClassState
		case len(u.methodMuts) > 0:
			f.Class = ClassSkipped
			f.Reason = "written but never read in Render"
		case f.ReadInRender && s.rules.Aggressive:
			f.Class = ClassState
		default:
			f.Class = ClassStatic
		}
	}

	if unmigratable {
		for _, m := range metas {
			if m.field.Class == ClassState {
				m.field.Class = ClassSkipped
				m.field.Reason = "unsupported construction"
			}
		}
	}

	comp.Fields = make([]Field, 0, len(metas))
	for _, m := range metas {
		comp.Fields = append(comp.Fields, m.field)
	}
	return comp, diags
}
