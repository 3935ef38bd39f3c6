package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flat collapses all whitespace so assertions survive the printer's
// line-breaking choices.
func flat(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func planTree(t *testing.T, files map[string]string, rules *Rules) (string, []Edit) {
	t.Helper()
	root := writeTree(t, files)
	rep, err := NewScanner([]string{root}, rules).Scan()
	require.NoError(t, err)
	edits, err := NewRewriter(rep, rules).Plan()
	require.NoError(t, err)
	return root, edits
}

var boxSrc = `package app

import (
	"github.com/weft-dev/weft/pkg/dom"
	"github.com/weft-dev/weft/pkg/weft"
)

type Box struct {
	title string
	note  *weft.Signal[string]
}

func NewBox() *Box {
	return &Box{title: "hi"}
}

func (b *Box) Rename(t string) {
	b.title = t
}

func (b *Box) Render() *dom.Node {
	return dom.Div(dom.Text(b.title))
}
`

var boxWant = `package app

import (
	"github.com/weft-dev/weft/pkg/dom"
	"github.com/weft-dev/weft/pkg/weft"
)

type Box struct {
	title *weft.Signal[string]
	note  *weft.Signal[string]
}

func NewBox() *Box {
	return &Box{title: weft.NewSignal("hi")}
}

func (b *Box) Rename(t string) {
	b.title.Set(t)
}

func (b *Box) Render() *dom.Node {
	return dom.Div(dom.Text(b.title.Get()))
}
`

func TestRewriteComponent(t *testing.T) {
	_, edits := planTree(t, map[string]string{"app/box.go": boxSrc}, nil)

	require.Len(t, edits, 1)
	assert.Equal(t, 4, edits[0].Sites, "type, literal, one Set, one Get")
	if diff := cmp.Diff(flat(boxWant), flat(string(edits[0].Content))); diff != "" {
		t.Errorf("rewrite mismatch (-want +got):\n%s", diff)
	}
}

func TestRewriteOpAssignAndIncDec(t *testing.T) {
	_, edits := planTree(t, map[string]string{"app/tally.go": `package app

import (
	"fmt"

	"github.com/weft-dev/weft/pkg/dom"
)

type Tally struct {
	count int
	total int
}

func (t *Tally) Inc() {
	t.count++
}

func (t *Tally) Dec() {
	t.count--
}

func (t *Tally) AddN(n int) {
	t.total += n
}

func (t *Tally) Render() *dom.Node {
	return dom.Text(fmt.Sprintf("%d %d", t.count, t.total))
}
`}, nil)

	require.Len(t, edits, 1)
	got := flat(string(edits[0].Content))

	assert.Contains(t, got, "t.count.Update(func(n int) int { return n + 1 })")
	assert.Contains(t, got, "t.count.Update(func(n int) int { return n - 1 })")
	// The closure parameter steps aside when the right-hand side
	// already uses its name.
	assert.Contains(t, got, "t.total.Update(func(v int) int { return v + n })")

	// Nothing in the package constructs a Tally, so a constructor is
	// synthesized and the package gains the signal import.
	assert.Contains(t, got, "func NewTally() *Tally { return &Tally{count: weft.NewSignal(0), total: weft.NewSignal(0)} }")
	assert.Contains(t, string(edits[0].Content), `"github.com/weft-dev/weft/pkg/weft"`)
}

func TestRewriteFillsOmittedInitializer(t *testing.T) {
	_, edits := planTree(t, map[string]string{"app/tab.go": `package app

import "github.com/weft-dev/weft/pkg/dom"

type Tab struct {
	title string
}

func NewTab() *Tab {
	return &Tab{}
}

func (t *Tab) SetTitle(s string) {
	t.title = s
}

func (t *Tab) Render() *dom.Node {
	return dom.Text(t.title)
}
`}, nil)

	require.Len(t, edits, 1)
	got := flat(string(edits[0].Content))
	assert.Contains(t, got, `&Tab{title: weft.NewSignal("")}`)
	// The existing constructor is kept, not duplicated.
	assert.Equal(t, 1, strings.Count(got, "func NewTab("))
}

func TestRewriteSpellsTypeArgument(t *testing.T) {
	_, edits := planTree(t, map[string]string{"app/meter.go": `package app

import (
	"fmt"

	"github.com/weft-dev/weft/pkg/dom"
)

type Meter struct {
	ratio float64
}

func NewMeter() *Meter {
	return &Meter{ratio: 0}
}

func (m *Meter) Scale(f float64) {
	m.ratio = f
}

func (m *Meter) Render() *dom.Node {
	return dom.Text(fmt.Sprintf("%f", m.ratio))
}
`}, nil)

	require.Len(t, edits, 1)
	// 0 would infer int, so the float64 type argument is explicit.
	assert.Contains(t, flat(string(edits[0].Content)), "ratio: weft.NewSignal[float64](0)")
}

func TestRewriteAppendPattern(t *testing.T) {
	_, edits := planTree(t, map[string]string{"app/roster.go": `package app

import (
	"fmt"

	"github.com/weft-dev/weft/pkg/dom"
)

type Roster struct {
	names []string
}

func NewRoster() *Roster {
	return &Roster{}
}

func (r *Roster) Add(s string) {
	r.names = append(r.names, s)
}

func (r *Roster) Render() *dom.Node {
	return dom.Text(fmt.Sprintf("%d", len(r.names)))
}
`}, nil)

	require.Len(t, edits, 1)
	got := flat(string(edits[0].Content))
	assert.Contains(t, got, "r.names.Set(append(r.names.Get(), s))")
	assert.Contains(t, got, "names: weft.NewSignal[[]string](nil)")
}

func TestRewriteSplitsMixedDeclaration(t *testing.T) {
	_, edits := planTree(t, map[string]string{"app/duo.go": `package app

import (
	"fmt"

	"github.com/weft-dev/weft/pkg/dom"
)

type Duo struct {
	a, b int
}

func (d *Duo) Bump() {
	d.a++
}

func (d *Duo) Render() *dom.Node {
	return dom.Text(fmt.Sprintf("%d %d", d.a, d.b))
}
`}, nil)

	require.Len(t, edits, 1)
	got := flat(string(edits[0].Content))
	assert.Contains(t, got, "type Duo struct { b int a *weft.Signal[int] }")
	assert.Contains(t, got, "func NewDuo() *Duo")
}

func TestPlanLeavesDiskUntouched(t *testing.T) {
	root, edits := planTree(t, map[string]string{"app/box.go": boxSrc}, nil)

	require.Len(t, edits, 1)
	onDisk, err := os.ReadFile(filepath.Join(root, "app", "box.go"))
	require.NoError(t, err)
	assert.Equal(t, boxSrc, string(onDisk))
}

func TestApplyWritesFiles(t *testing.T) {
	root := writeTree(t, map[string]string{"app/box.go": boxSrc})
	rep, err := NewScanner([]string{root}, nil).Scan()
	require.NoError(t, err)

	edits, err := NewRewriter(rep, nil).Apply()
	require.NoError(t, err)
	require.Len(t, edits, 1)

	onDisk, err := os.ReadFile(filepath.Join(root, "app", "box.go"))
	require.NoError(t, err)
	assert.Equal(t, string(edits[0].Content), string(onDisk))
	assert.Contains(t, flat(string(onDisk)), "b.title.Set(t)")
}

func TestRewriteIdempotent(t *testing.T) {
	root := writeTree(t, map[string]string{"app/box.go": boxSrc})
	rep, err := NewScanner([]string{root}, nil).Scan()
	require.NoError(t, err)
	_, err = NewRewriter(rep, nil).Apply()
	require.NoError(t, err)

	rep, err = NewScanner([]string{root}, nil).Scan()
	require.NoError(t, err)
	title := fieldByName(t, componentByName(t, rep, "Box"), "title")
	assert.Equal(t, ClassReactive, title.Class)

	edits, err := NewRewriter(rep, nil).Plan()
	require.NoError(t, err)
	assert.Empty(t, edits)
}

func TestRewriteSkipsVanishedComponent(t *testing.T) {
	root := writeTree(t, map[string]string{"app/box.go": boxSrc})
	rep, err := NewScanner([]string{root}, nil).Scan()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "app", "box.go"),
		[]byte("package app\n"), 0o644))

	edits, err := NewRewriter(rep, nil).Plan()
	require.NoError(t, err)
	assert.Empty(t, edits)
}
