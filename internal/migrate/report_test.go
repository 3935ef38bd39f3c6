package migrate

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteText(t *testing.T) {
	rep := scanTree(t, map[string]string{"app/counter.go": counterSrc}, nil)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteText(&buf))
	out := buf.String()

	assert.Contains(t, out, "COMPONENT")
	assert.Contains(t, out, "Counter")
	assert.Contains(t, out, "state")
	assert.Contains(t, out, `weft:"static" tag`)
	assert.Contains(t, out, "mutations:")
	assert.Contains(t, out, "Counter.count op-assign")
	assert.Contains(t, out, "1 components, 2 state fields, ~9 edits")
}

func TestWriteTextDiagnostics(t *testing.T) {
	rep := scanTree(t, map[string]string{"app/meter.go": `package app

import (
	"fmt"

	"github.com/weft-dev/weft/pkg/dom"
)

type Meter struct {
	n int
}

func (m *Meter) Bump() {
	m.n++
}

func (m *Meter) Render() *dom.Node {
	return dom.Text(fmt.Sprintf("%d", m.n))
}

func Reset(m *Meter) {
	m.n = 0
}
`}, nil)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteText(&buf))
	out := buf.String()

	assert.Contains(t, out, "diagnostics:")
	assert.Contains(t, out, "W201")
	assert.Contains(t, out, ": Meter.n")
	assert.Contains(t, out, "(route the access through a method of Meter)")
}

func TestReportJSONRoundTrip(t *testing.T) {
	rep := scanTree(t, map[string]string{"app/counter.go": counterSrc}, nil)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteJSON(&buf))

	var got Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	if diff := cmp.Diff(*rep, got, cmpopts.IgnoreFields(Report{}, "GeneratedAt")); diff != "" {
		t.Errorf("report changed across JSON (-want +got):\n%s", diff)
	}
	assert.WithinDuration(t, rep.GeneratedAt, got.GeneratedAt, time.Second)
}

func TestPositionString(t *testing.T) {
	p := Position{File: "app/counter.go", Line: 12, Column: 2}
	assert.Equal(t, "app/counter.go:12:2", p.String())
}
