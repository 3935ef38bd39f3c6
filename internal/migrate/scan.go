package migrate

import (
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"io/fs"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

const (
	weftImportPath = "github.com/weft-dev/weft/pkg/weft"
	domImportPath  = "github.com/weft-dev/weft/pkg/dom"
)

// sourceFile is one parsed file of a scanned package.
type sourceFile struct {
	path    string
	ast     *ast.File
	imports map[string]string // local name -> import path
}

// sourcePkg is every parsable file of one package in one directory.
type sourcePkg struct {
	dir   string
	name  string
	fset  *token.FileSet
	files []*sourceFile
}

// parseIssue records a file the parser rejected.
type parseIssue struct {
	path string
	pos  Position
	err  error
}

// collectGoFiles walks the roots and returns the Go files the rules
// admit, grouped by directory. Test files, vendored trees, and hidden
// or underscore-prefixed directories are skipped.
func collectGoFiles(roots []string, rules *Rules) (map[string][]string, error) {
	byDir := make(map[string][]string)
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != root && (name == "vendor" || name == "testdata" ||
					strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if !rules.matchFile(filepath.ToSlash(rel)) {
				return nil
			}
			dir := filepath.Dir(path)
			byDir[dir] = append(byDir[dir], path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	for _, files := range byDir {
		slices.Sort(files)
	}
	return byDir, nil
}

// parseDir parses the given files of one directory, grouped by package
// name. Files with syntax errors are reported and skipped, so one bad
// file does not hide the rest of the package.
func parseDir(dir string, paths []string) ([]*sourcePkg, []parseIssue) {
	fset := token.NewFileSet()
	byName := make(map[string]*sourcePkg)
	var names []string
	var issues []parseIssue

	for _, path := range paths {
		f, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			pos := Position{File: path}
			if list, ok := err.(scanner.ErrorList); ok && len(list) > 0 {
				pos.Line = list[0].Pos.Line
				pos.Column = list[0].Pos.Column
			}
			issues = append(issues, parseIssue{path: path, pos: pos, err: err})
			continue
		}
		pkg := byName[f.Name.Name]
		if pkg == nil {
			pkg = &sourcePkg{dir: dir, name: f.Name.Name, fset: fset}
			byName[f.Name.Name] = pkg
			names = append(names, f.Name.Name)
		}
		pkg.files = append(pkg.files, &sourceFile{path: path, ast: f, imports: importMap(f)})
	}

	slices.Sort(names)
	pkgs := make([]*sourcePkg, 0, len(names))
	for _, name := range names {
		pkgs = append(pkgs, byName[name])
	}
	return pkgs, issues
}

// importMap resolves local import names to paths. The last path
// element stands in for the package name, which holds for every import
// the scanner cares about.
func importMap(f *ast.File) map[string]string {
	m := make(map[string]string)
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := path[strings.LastIndex(path, "/")+1:]
		if imp.Name != nil {
			name = imp.Name.Name
		}
		if name == "." || name == "_" {
			continue
		}
		m[name] = path
	}
	return m
}

// structDecl is a struct type declaration found in a package.
type structDecl struct {
	name string
	spec *ast.TypeSpec
	st   *ast.StructType
	file *sourceFile
}

// methodDecl is a method with a plain named struct receiver.
type methodDecl struct {
	fn       *ast.FuncDecl
	file     *sourceFile
	recvType string
	recvName string
}

// funcDecl is a package-level function.
type funcDecl struct {
	fn   *ast.FuncDecl
	file *sourceFile
}

// litRef is a composite literal of a component type, with the file it
// lives in.
type litRef struct {
	lit  *ast.CompositeLit
	file *sourceFile
}

// pkgIndex is the structural index the scanner and rewriter share.
type pkgIndex struct {
	pkg     *sourcePkg
	structs map[string]*structDecl
	methods map[string][]*methodDecl
	funcs   []*funcDecl
}

func indexPkg(p *sourcePkg) *pkgIndex {
	ix := &pkgIndex{
		pkg:     p,
		structs: make(map[string]*structDecl),
		methods: make(map[string][]*methodDecl),
	}
	for _, sf := range p.files {
		for _, decl := range sf.ast.Decls {
			switch d := decl.(type) {
			case *ast.GenDecl:
				if d.Tok != token.TYPE {
					continue
				}
				for _, spec := range d.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					st, ok := ts.Type.(*ast.StructType)
					if !ok {
						continue
					}
					// Generic components are out of scope.
					if ts.TypeParams != nil {
						continue
					}
					ix.structs[ts.Name.Name] = &structDecl{name: ts.Name.Name, spec: ts, st: st, file: sf}
				}
			case *ast.FuncDecl:
				if d.Recv != nil {
					if typeName, recvName, ok := recvInfo(d); ok {
						ix.methods[typeName] = append(ix.methods[typeName], &methodDecl{
							fn: d, file: sf, recvType: typeName, recvName: recvName,
						})
					}
					continue
				}
				ix.funcs = append(ix.funcs, &funcDecl{fn: d, file: sf})
			}
		}
	}
	return ix
}

// componentNames lists the struct types that carry a qualifying Render
// method, sorted for deterministic output.
func (ix *pkgIndex) componentNames() []string {
	var names []string
	for name := range ix.structs {
		if ix.renderMethod(name) != nil {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (ix *pkgIndex) renderMethod(typeName string) *methodDecl {
	for _, m := range ix.methods[typeName] {
		if isRenderDecl(m.fn, m.file.imports) {
			return m
		}
	}
	return nil
}

// constructor finds the conventionally named constructor for a type,
// NewCounter for Counter or newCounter for counter.
func (ix *pkgIndex) constructor(typeName string) *funcDecl {
	want := map[string]bool{"New" + upperFirst(typeName): true}
	if !ast.IsExported(typeName) {
		want["new"+upperFirst(typeName)] = true
	}
	for _, fd := range ix.funcs {
		if want[fd.fn.Name.Name] {
			return fd
		}
	}
	return nil
}

// literalsOf finds every composite literal of the type, package-level
// variables included.
func (ix *pkgIndex) literalsOf(typeName string) []litRef {
	var refs []litRef
	for _, sf := range ix.pkg.files {
		ast.Inspect(sf.ast, func(n ast.Node) bool {
			lit, ok := n.(*ast.CompositeLit)
			if !ok {
				return true
			}
			if id, ok := lit.Type.(*ast.Ident); ok && id.Name == typeName {
				refs = append(refs, litRef{lit: lit, file: sf})
			}
			return true
		})
	}
	return refs
}

// newCallsOf finds new(T) expressions for the type. They zero the
// struct without going through a literal, which the rewriter cannot
// extend with signal initializers.
func (ix *pkgIndex) newCallsOf(typeName string) []token.Pos {
	var sites []token.Pos
	for _, sf := range ix.pkg.files {
		ast.Inspect(sf.ast, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			fn, ok := call.Fun.(*ast.Ident)
			if !ok || fn.Name != "new" || len(call.Args) != 1 {
				return true
			}
			if id, ok := call.Args[0].(*ast.Ident); ok && id.Name == typeName {
				sites = append(sites, call.Pos())
			}
			return true
		})
	}
	return sites
}

// renderReachable returns the component methods reachable from Render
// through receiver calls, Render itself included.
func (ix *pkgIndex) renderReachable(typeName string) map[string]bool {
	byName := make(map[string]*methodDecl)
	for _, m := range ix.methods[typeName] {
		byName[m.fn.Name.Name] = m
	}
	reach := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		m := byName[name]
		if m == nil || reach[name] {
			return
		}
		reach[name] = true
		if m.fn.Body == nil || m.recvName == "" {
			return
		}
		ast.Inspect(m.fn.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			if id, ok := sel.X.(*ast.Ident); ok && id.Name == m.recvName {
				visit(sel.Sel.Name)
			}
			return true
		})
	}
	visit("Render")
	return reach
}

// recvInfo extracts the receiver's type and variable names. Generic
// and unnamed-type receivers are rejected.
func recvInfo(fn *ast.FuncDecl) (typeName, varName string, ok bool) {
	if fn.Recv == nil || len(fn.Recv.List) != 1 {
		return "", "", false
	}
	t := fn.Recv.List[0].Type
	if star, isStar := t.(*ast.StarExpr); isStar {
		t = star.X
	}
	id, isIdent := t.(*ast.Ident)
	if !isIdent {
		return "", "", false
	}
	name := ""
	if names := fn.Recv.List[0].Names; len(names) > 0 {
		name = names[0].Name
	}
	return id.Name, name, true
}

// isRenderDecl reports whether fn is a Render method returning exactly
// *dom.Node.
func isRenderDecl(fn *ast.FuncDecl, imports map[string]string) bool {
	if fn.Name == nil || fn.Name.Name != "Render" || fn.Recv == nil {
		return false
	}
	res := fn.Type.Results
	if res == nil || len(res.List) != 1 {
		return false
	}
	star, ok := res.List[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	id, ok := sel.X.(*ast.Ident)
	return ok && sel.Sel.Name == "Node" && imports[id.Name] == domImportPath
}

// signalType reports whether a field type already comes from pkg/weft.
func signalType(t ast.Expr, imports map[string]string) bool {
	for {
		star, ok := t.(*ast.StarExpr)
		if !ok {
			break
		}
		t = star.X
	}
	switch tt := t.(type) {
	case *ast.IndexExpr:
		return signalType(tt.X, imports)
	case *ast.IndexListExpr:
		return signalType(tt.X, imports)
	case *ast.SelectorExpr:
		id, ok := tt.X.(*ast.Ident)
		return ok && imports[id.Name] == weftImportPath
	}
	return false
}

// hasStaticTag reports whether a field carries `weft:"static"`.
func hasStaticTag(tag *ast.BasicLit) bool {
	if tag == nil {
		return false
	}
	raw, err := strconv.Unquote(tag.Value)
	if err != nil {
		return false
	}
	return reflect.StructTag(raw).Get("weft") == "static"
}

// compBindings finds parameters and locals of fn declared with the
// component's type, by name. Bindings made through new(T) count too,
// so references through them are still seen.
func compBindings(fn *ast.FuncDecl, typeName string) map[string]bool {
	bindings := make(map[string]bool)
	named := func(t ast.Expr) bool {
		if star, ok := t.(*ast.StarExpr); ok {
			t = star.X
		}
		id, ok := t.(*ast.Ident)
		return ok && id.Name == typeName
	}
	if fn.Type.Params != nil {
		for _, p := range fn.Type.Params.List {
			if !named(p.Type) {
				continue
			}
			for _, id := range p.Names {
				bindings[id.Name] = true
			}
		}
	}
	if fn.Body == nil {
		return bindings
	}
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.ValueSpec:
			if node.Type != nil && named(node.Type) {
				for _, id := range node.Names {
					bindings[id.Name] = true
				}
			}
		case *ast.AssignStmt:
			if node.Tok != token.DEFINE || len(node.Lhs) != len(node.Rhs) {
				return true
			}
			for i, lhs := range node.Lhs {
				id, ok := lhs.(*ast.Ident)
				if !ok {
					continue
				}
				rhs := node.Rhs[i]
				if u, ok := rhs.(*ast.UnaryExpr); ok && u.Op == token.AND {
					rhs = u.X
				}
				switch r := rhs.(type) {
				case *ast.CompositeLit:
					if tid, ok := r.Type.(*ast.Ident); ok && tid.Name == typeName {
						bindings[id.Name] = true
					}
				case *ast.CallExpr:
					if fid, ok := r.Fun.(*ast.Ident); ok && fid.Name == "new" && len(r.Args) == 1 {
						if aid, ok := r.Args[0].(*ast.Ident); ok && aid.Name == typeName {
							bindings[id.Name] = true
						}
					}
				}
			}
		}
		return true
	})
	return bindings
}

// fieldWrite is one supported write statement to a component field.
type fieldWrite struct {
	field string
	kind  MutationKind
	stmt  ast.Node // *ast.AssignStmt or *ast.IncDecStmt
	sel   *ast.SelectorExpr
}

// fieldRead is a selector expression that only reads a field.
type fieldRead struct {
	field string
	sel   *ast.SelectorExpr
}

// fieldRef points at a field use the rewriter refuses to touch.
type fieldRef struct {
	field string
	pos   token.Pos
}

// bodyUsage is what one function body does with a set of fields.
type bodyUsage struct {
	writes      []fieldWrite
	reads       []fieldRead
	addressed   []fieldRef // &c.F
	unsupported []fieldRef // multi-assignment, range target, element write
}

// scanBody inspects one function body for uses of the named fields
// through the given receiver or binding names.
func scanBody(body *ast.BlockStmt, bindings map[string]bool, fields map[string]bool) bodyUsage {
	var u bodyUsage
	if body == nil || len(bindings) == 0 || len(fields) == 0 {
		return u
	}
	match := func(e ast.Expr) (string, *ast.SelectorExpr, bool) {
		s, ok := e.(*ast.SelectorExpr)
		if !ok {
			return "", nil, false
		}
		id, ok := s.X.(*ast.Ident)
		if !ok || !bindings[id.Name] || !fields[s.Sel.Name] {
			return "", nil, false
		}
		return s.Sel.Name, s, true
	}
	// Element writes like c.F[i] = v mutate through the field without
	// assigning it; they defeat change tracking once F is a signal.
	element := func(e ast.Expr) (string, *ast.SelectorExpr, bool) {
		indexed := false
		for {
			ix, ok := e.(*ast.IndexExpr)
			if !ok {
				break
			}
			e = ix.X
			indexed = true
		}
		if !indexed {
			return "", nil, false
		}
		return match(e)
	}

	targets := make(map[*ast.SelectorExpr]bool)
	ast.Inspect(body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.AssignStmt:
			multi := len(node.Lhs) > 1
			for _, lhs := range node.Lhs {
				if name, s, ok := element(lhs); ok {
					targets[s] = true
					u.unsupported = append(u.unsupported, fieldRef{name, s.Pos()})
					continue
				}
				name, s, ok := match(lhs)
				if !ok {
					continue
				}
				targets[s] = true
				if multi {
					u.unsupported = append(u.unsupported, fieldRef{name, s.Pos()})
					continue
				}
				w := fieldWrite{field: name, kind: MutationAssign, stmt: node, sel: s}
				if node.Tok != token.ASSIGN {
					w.kind = MutationOpAssign
				}
				u.writes = append(u.writes, w)
			}
		case *ast.IncDecStmt:
			if name, s, ok := element(node.X); ok {
				targets[s] = true
				u.unsupported = append(u.unsupported, fieldRef{name, s.Pos()})
				return true
			}
			if name, s, ok := match(node.X); ok {
				targets[s] = true
				u.writes = append(u.writes, fieldWrite{field: name, kind: MutationIncDec, stmt: node, sel: s})
			}
		case *ast.RangeStmt:
			if node.Tok != token.ASSIGN {
				return true
			}
			for _, e := range []ast.Expr{node.Key, node.Value} {
				if e == nil {
					continue
				}
				if name, s, ok := match(e); ok {
					targets[s] = true
					u.unsupported = append(u.unsupported, fieldRef{name, s.Pos()})
				}
			}
		case *ast.UnaryExpr:
			if node.Op != token.AND {
				return true
			}
			if name, s, ok := match(node.X); ok {
				targets[s] = true
				u.addressed = append(u.addressed, fieldRef{name, s.Pos()})
			}
		}
		return true
	})

	ast.Inspect(body, func(n ast.Node) bool {
		s, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if name, sel, ok := match(s); ok && !targets[sel] {
			u.reads = append(u.reads, fieldRead{field: name, sel: sel})
		}
		return true
	})
	return u
}

// exprString renders a type or value expression as source text.
func exprString(e ast.Expr) string {
	return types.ExprString(e)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
