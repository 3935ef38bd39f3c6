package migrate

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/weft-dev/weft/internal/log"
)

// Rewriter applies the signal codemod to the components a report
// classified. It re-parses the packages the report points at, so a
// report can be inspected, stored, and acted on in separate runs.
type Rewriter struct {
	report *Report
	rules  *Rules
	logger zerolog.Logger
}

// NewRewriter creates a rewriter for a scanned report. Nil rules apply
// the defaults; they must match the rules the scan ran with, or the
// walk may see a different file set.
func NewRewriter(report *Report, rules *Rules) *Rewriter {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Rewriter{
		report: report,
		rules:  rules,
		logger: log.WithComponent("migrate"),
	}
}

// Edit is one planned file rewrite.
type Edit struct {
	// Path is the file the edit replaces.
	Path string

	// Content is the full formatted output.
	Content []byte

	// Sites counts the individual rewrites in the file.
	Sites int
}

// Plan computes every edit without writing anything. Running the plan
// over already migrated code yields no edits: migrated fields scan as
// reactive, not state.
func (r *Rewriter) Plan() ([]Edit, error) {
	return r.plan()
}

// Apply plans and writes the edits, each file atomically.
func (r *Rewriter) Apply() ([]Edit, error) {
	edits, err := r.plan()
	if err != nil {
		return nil, err
	}
	for _, e := range edits {
		if err := renameio.WriteFile(e.Path, e.Content, 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", e.Path, err)
		}
		r.logger.Info().Str("file", e.Path).Int("sites", e.Sites).Msg("rewrote file")
	}
	return edits, nil
}

func (r *Rewriter) plan() ([]Edit, error) {
	// State fields by directory, then by package-qualified component.
	targets := make(map[string]map[string]map[string]Field)
	for _, c := range r.report.Components {
		states := make(map[string]Field)
		for _, f := range c.Fields {
			if f.Class == ClassState {
				states[f.Name] = f
			}
		}
		if len(states) == 0 {
			continue
		}
		dir := filepath.Dir(c.File)
		if targets[dir] == nil {
			targets[dir] = make(map[string]map[string]Field)
		}
		targets[dir][c.Package+"."+c.Name] = states
	}
	if len(targets) == 0 {
		return nil, nil
	}

	roots := r.report.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}
	byDir, err := collectGoFiles(roots, r.rules)
	if err != nil {
		return nil, err
	}

	var edits []Edit
	dirs := make([]string, 0, len(targets))
	for dir := range targets {
		dirs = append(dirs, dir)
	}
	slices.Sort(dirs)
	for _, dir := range dirs {
		files := byDir[dir]
		if len(files) == 0 {
			r.logger.Warn().Str("dir", dir).Msg("reported directory no longer on the walk")
			continue
		}
		pkgs, _ := parseDir(dir, files)
		for _, p := range pkgs {
			ix := indexPkg(p)
			touched := make(map[*sourceFile]int)
			needsWeft := make(map[*sourceFile]bool)
			keys := make([]string, 0, len(targets[dir]))
			for key := range targets[dir] {
				keys = append(keys, key)
			}
			slices.Sort(keys)
			for _, key := range keys {
				pkgName, compName, _ := strings.Cut(key, ".")
				if pkgName != p.name {
					continue
				}
				sd := ix.structs[compName]
				if sd == nil {
					r.logger.Warn().Str("component", compName).Msg("reported component no longer present")
					continue
				}
				rewriteComponent(ix, sd, targets[dir][key], touched, needsWeft)
			}
			if len(touched) == 0 {
				continue
			}
			for _, sf := range p.files {
				sites, ok := touched[sf]
				if !ok {
					continue
				}
				if needsWeft[sf] {
					astutil.AddImport(p.fset, sf.ast, weftImportPath)
				}
				var buf bytes.Buffer
				if err := format.Node(&buf, p.fset, sf.ast); err != nil {
					return nil, fmt.Errorf("formatting %s: %w", sf.path, err)
				}
				edits = append(edits, Edit{Path: sf.path, Content: buf.Bytes(), Sites: sites})
			}
		}
	}

	slices.SortFunc(edits, func(a, b Edit) int { return strings.Compare(a.Path, b.Path) })
	r.logger.Info().Int("files", len(edits)).Msg("edits planned")
	return edits, nil
}

// rewriteComponent migrates one component's state fields across its
// package: the field declarations, every read and write in its methods
// and constructor, and every composite literal that builds it.
func rewriteComponent(ix *pkgIndex, sd *structDecl, states map[string]Field, touched map[*sourceFile]int, needsWeft map[*sourceFile]bool) {
	stateSet := make(map[string]bool, len(states))
	for name := range states {
		stateSet[name] = true
	}
	ordered := stateFieldOrder(sd, stateSet)

	if n := rewriteFieldDecls(sd, states); n > 0 {
		touched[sd.file] += n
		needsWeft[sd.file] = true
	}

	type bodyRef struct {
		body     *ast.BlockStmt
		bindings map[string]bool
		file     *sourceFile
	}
	var bodies []bodyRef
	for _, m := range ix.methods[sd.name] {
		if m.fn.Body == nil || m.recvName == "" {
			continue
		}
		bodies = append(bodies, bodyRef{m.fn.Body, map[string]bool{m.recvName: true}, m.file})
	}
	ctor := ix.constructor(sd.name)
	if ctor != nil && ctor.fn.Body != nil {
		bodies = append(bodies, bodyRef{ctor.fn.Body, compBindings(ctor.fn, sd.name), ctor.file})
	}
	for _, b := range bodies {
		if n := rewriteBody(b.body, b.bindings, states); n > 0 {
			touched[b.file] += n
		}
	}

	literals := ix.literalsOf(sd.name)
	for _, lr := range literals {
		if n := rewriteLiteral(lr.lit, states, ordered); n > 0 {
			touched[lr.file] += n
			needsWeft[lr.file] = true
		}
	}

	if ctor == nil && len(literals) == 0 {
		touched[sd.file] += synthesizeConstructor(sd, states, ordered)
		needsWeft[sd.file] = true
	}
}

// stateFieldOrder returns the state field names in declaration order.
func stateFieldOrder(sd *structDecl, stateSet map[string]bool) []string {
	var ordered []string
	for _, f := range sd.st.Fields.List {
		for _, id := range f.Names {
			if stateSet[id.Name] {
				ordered = append(ordered, id.Name)
			}
		}
	}
	return ordered
}

// rewriteFieldDecls turns each state field's type T into
// *weft.Signal[T]. A declaration mixing state and non-state names is
// split so the untouched names keep their type.
func rewriteFieldDecls(sd *structDecl, states map[string]Field) int {
	count := 0
	var out []*ast.Field
	for _, f := range sd.st.Fields.List {
		if len(f.Names) == 0 {
			out = append(out, f)
			continue
		}
		var stateNames, plainNames []*ast.Ident
		for _, id := range f.Names {
			if _, ok := states[id.Name]; ok {
				stateNames = append(stateNames, id)
			} else {
				plainNames = append(plainNames, id)
			}
		}
		if len(stateNames) == 0 {
			out = append(out, f)
			continue
		}
		count += len(stateNames)
		if len(plainNames) == 0 {
			f.Type = wrapSignalType(f.Type)
			out = append(out, f)
			continue
		}
		typeStr := exprString(f.Type)
		f.Names = plainNames
		out = append(out, f)
		out = append(out, &ast.Field{
			Names: stateNames,
			Type:  wrapSignalType(ast.NewIdent(typeStr)),
			Tag:   cloneTag(f.Tag),
		})
	}
	sd.st.Fields.List = out
	return count
}

func cloneTag(tag *ast.BasicLit) *ast.BasicLit {
	if tag == nil {
		return nil
	}
	return &ast.BasicLit{Kind: token.STRING, Value: tag.Value}
}

func wrapSignalType(orig ast.Expr) ast.Expr {
	return &ast.StarExpr{X: &ast.IndexExpr{
		X:     &ast.SelectorExpr{X: ast.NewIdent("weft"), Sel: ast.NewIdent("Signal")},
		Index: orig,
	}}
}

// opAssignBinary maps compound assignment tokens to the operator the
// Update closure applies.
var opAssignBinary = map[token.Token]token.Token{
	token.ADD_ASSIGN:     token.ADD,
	token.SUB_ASSIGN:     token.SUB,
	token.MUL_ASSIGN:     token.MUL,
	token.QUO_ASSIGN:     token.QUO,
	token.REM_ASSIGN:     token.REM,
	token.AND_ASSIGN:     token.AND,
	token.OR_ASSIGN:      token.OR,
	token.XOR_ASSIGN:     token.XOR,
	token.SHL_ASSIGN:     token.SHL,
	token.SHR_ASSIGN:     token.SHR,
	token.AND_NOT_ASSIGN: token.AND_NOT,
}

// rewriteBody replaces field reads with Get calls and field writes
// with Set or Update calls, for the given binding names. Children are
// rewritten before parents, so an assignment's right-hand side is
// already migrated when the assignment itself is replaced.
func rewriteBody(body *ast.BlockStmt, bindings map[string]bool, states map[string]Field) int {
	stateSet := make(map[string]bool, len(states))
	for name := range states {
		stateSet[name] = true
	}
	u := scanBody(body, bindings, stateSet)
	writes := make(map[ast.Node]fieldWrite)
	reads := make(map[*ast.SelectorExpr]bool)
	for _, w := range u.writes {
		writes[w.stmt] = w
	}
	for _, rd := range u.reads {
		reads[rd.sel] = true
	}
	if len(writes) == 0 && len(reads) == 0 {
		return 0
	}

	count := 0
	astutil.Apply(body, nil, func(c *astutil.Cursor) bool {
		switch n := c.Node().(type) {
		case *ast.AssignStmt:
			w, ok := writes[n]
			if !ok {
				return true
			}
			var call ast.Expr
			if n.Tok == token.ASSIGN {
				call = methodCall(w.sel, "Set", n.Rhs[0])
			} else {
				call = updateCall(w.sel, states[w.field].Type, opAssignBinary[n.Tok], n.Rhs[0])
			}
			c.Replace(&ast.ExprStmt{X: call})
			count++
		case *ast.IncDecStmt:
			w, ok := writes[n]
			if !ok {
				return true
			}
			op := token.ADD
			if n.Tok == token.DEC {
				op = token.SUB
			}
			one := &ast.BasicLit{Kind: token.INT, Value: "1"}
			c.Replace(&ast.ExprStmt{X: updateCall(w.sel, states[w.field].Type, op, one)})
			count++
		case *ast.SelectorExpr:
			if reads[n] {
				c.Replace(methodCall(n, "Get"))
				count++
			}
		}
		return true
	})
	return count
}

func methodCall(sel *ast.SelectorExpr, name string, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{
		Fun:  &ast.SelectorExpr{X: sel, Sel: ast.NewIdent(name)},
		Args: args,
	}
}

// updateCall builds c.F.Update(func(n T) T { return n <op> rhs }).
func updateCall(sel *ast.SelectorExpr, typeStr string, op token.Token, rhs ast.Expr) *ast.CallExpr {
	param := freshParam(rhs, typeStr)
	fn := &ast.FuncLit{
		Type: &ast.FuncType{
			Params: &ast.FieldList{List: []*ast.Field{{
				Names: []*ast.Ident{ast.NewIdent(param)},
				Type:  ast.NewIdent(typeStr),
			}}},
			Results: &ast.FieldList{List: []*ast.Field{{
				Type: ast.NewIdent(typeStr),
			}}},
		},
		Body: &ast.BlockStmt{List: []ast.Stmt{&ast.ReturnStmt{
			Results: []ast.Expr{&ast.BinaryExpr{X: ast.NewIdent(param), Op: op, Y: rhs}},
		}}},
	}
	return methodCall(sel, "Update", fn)
}

// freshParam picks a closure parameter name absent from the right-hand
// side, so the capture-free expression keeps its meaning.
func freshParam(rhs ast.Expr, typeStr string) string {
	used := map[string]bool{typeStr: true}
	ast.Inspect(rhs, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok {
			used[id.Name] = true
		}
		return true
	})
	for _, cand := range []string{"n", "v", "m"} {
		if !used[cand] {
			return cand
		}
	}
	for i := 2; ; i++ {
		cand := fmt.Sprintf("n%d", i)
		if !used[cand] {
			return cand
		}
	}
}

// rewriteLiteral wraps existing state entries in weft.NewSignal and
// appends initializers for state fields the literal omits, so no
// migrated field is ever a nil signal. Positional literals never get
// here: the scanner demotes their components.
func rewriteLiteral(lit *ast.CompositeLit, states map[string]Field, ordered []string) int {
	if len(lit.Elts) > 0 {
		if _, keyed := lit.Elts[0].(*ast.KeyValueExpr); !keyed {
			return 0
		}
	}
	count := 0
	seen := make(map[string]bool)
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok {
			continue
		}
		f, isState := states[key.Name]
		if !isState {
			continue
		}
		kv.Value = newSignalCall(f.Type, kv.Value)
		seen[key.Name] = true
		count++
	}
	for _, name := range ordered {
		if seen[name] {
			continue
		}
		f := states[name]
		lit.Elts = append(lit.Elts, &ast.KeyValueExpr{
			Key:   ast.NewIdent(name),
			Value: newSignalCall(f.Type, zeroValue(f.Type)),
		})
		count++
	}
	return count
}

// synthesizeConstructor appends a constructor that initializes every
// state field, for components nothing in the package constructs.
func synthesizeConstructor(sd *structDecl, states map[string]Field, ordered []string) int {
	name := sd.name
	ctorName := "New" + upperFirst(name)
	if !ast.IsExported(name) {
		ctorName = "new" + upperFirst(name)
	}
	lit := &ast.CompositeLit{Type: ast.NewIdent(name)}
	for _, fname := range ordered {
		f := states[fname]
		lit.Elts = append(lit.Elts, &ast.KeyValueExpr{
			Key:   ast.NewIdent(fname),
			Value: newSignalCall(f.Type, zeroValue(f.Type)),
		})
	}
	decl := &ast.FuncDecl{
		Name: ast.NewIdent(ctorName),
		Type: &ast.FuncType{
			Params: &ast.FieldList{},
			Results: &ast.FieldList{List: []*ast.Field{{
				Type: &ast.StarExpr{X: ast.NewIdent(name)},
			}}},
		},
		Body: &ast.BlockStmt{List: []ast.Stmt{&ast.ReturnStmt{
			Results: []ast.Expr{&ast.UnaryExpr{Op: token.AND, X: lit}},
		}}},
	}
	sd.file.ast.Decls = append(sd.file.ast.Decls, decl)
	return len(states) + 1
}

// newSignalCall builds weft.NewSignal(init), spelling the type
// argument out whenever inference could land somewhere other than the
// field's type. An Ident prints its name verbatim, so the type
// argument needs no AST of its own.
func newSignalCall(typeStr string, val ast.Expr) ast.Expr {
	fun := ast.Expr(&ast.SelectorExpr{X: ast.NewIdent("weft"), Sel: ast.NewIdent("NewSignal")})
	if !inferableType(typeStr) {
		fun = &ast.IndexExpr{X: fun, Index: ast.NewIdent(typeStr)}
	}
	return &ast.CallExpr{Fun: fun, Args: []ast.Expr{val}}
}

// inferableType reports whether NewSignal's type parameter infers
// correctly from any value the old field accepted: for int, string,
// and bool the untyped constant defaults line up, for everything else
// they may not.
func inferableType(typeStr string) bool {
	switch typeStr {
	case "int", "string", "bool":
		return true
	}
	return false
}

// zeroValue spells the zero value of a type rendered as source text.
func zeroValue(typeStr string) ast.Expr {
	switch typeStr {
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"byte", "rune", "float32", "float64", "complex64", "complex128":
		return &ast.BasicLit{Kind: token.INT, Value: "0"}
	case "string":
		return &ast.BasicLit{Kind: token.STRING, Value: `""`}
	case "bool":
		return ast.NewIdent("false")
	case "any", "error":
		return ast.NewIdent("nil")
	}
	switch {
	case strings.HasPrefix(typeStr, "*"),
		strings.HasPrefix(typeStr, "[]"),
		strings.HasPrefix(typeStr, "map["),
		strings.HasPrefix(typeStr, "chan "),
		strings.HasPrefix(typeStr, "chan<- "),
		strings.HasPrefix(typeStr, "<-chan "),
		strings.HasPrefix(typeStr, "func("),
		strings.HasPrefix(typeStr, "interface{"):
		return ast.NewIdent("nil")
	}
	// *new(T) covers named types without guessing their kind.
	return &ast.StarExpr{X: &ast.CallExpr{
		Fun:  ast.NewIdent("new"),
		Args: []ast.Expr{ast.NewIdent(typeStr)},
	}}
}
