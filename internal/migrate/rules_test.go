package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/internal/errors"
)

func writeRules(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weft-migrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadRules(t *testing.T) {
	path := writeRules(t, `include:
  - "app/*.go"
exclude:
  - "*_gen.go"
aggressive: true
skip:
  Counter:
    - count
    - step
`)

	r, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"app/*.go"}, r.Include)
	assert.Equal(t, []string{"*_gen.go"}, r.Exclude)
	assert.True(t, r.Aggressive)
	assert.Equal(t, []string{"count", "step"}, r.Skip["Counter"])
}

func TestLoadRulesEmptyFile(t *testing.T) {
	r, err := LoadRules(writeRules(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), r)
}

func TestLoadRulesUnknownKey(t *testing.T) {
	_, err := LoadRules(writeRules(t, "agressive: true\n"))
	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "W204", werr.Code)
}

func TestLoadRulesBadGlob(t *testing.T) {
	_, err := LoadRules(writeRules(t, `include:
  - "["
`))
	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "W204", werr.Code)
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "W204", werr.Code)
}

func TestSkipField(t *testing.T) {
	r := &Rules{Skip: map[string][]string{"Counter": {"count"}}}

	assert.True(t, r.SkipField("Counter", "count"))
	assert.False(t, r.SkipField("Counter", "step"))
	assert.False(t, r.SkipField("Other", "count"))
	assert.False(t, DefaultRules().SkipField("Counter", "count"))
}

func TestMatchFile(t *testing.T) {
	tests := []struct {
		name  string
		rules *Rules
		rel   string
		want  bool
	}{
		{"empty rules admit", &Rules{}, "app/counter.go", true},
		{"base name include", &Rules{Include: []string{"*.go"}}, "deep/nested/a.go", true},
		{"path include match", &Rules{Include: []string{"app/*.go"}}, "app/a.go", true},
		{"path include miss", &Rules{Include: []string{"app/*.go"}}, "lib/a.go", false},
		{"exclude wins", &Rules{Exclude: []string{"*_gen.go"}}, "app/types_gen.go", false},
		{"exclude other file", &Rules{Exclude: []string{"*_gen.go"}}, "app/types.go", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rules.matchFile(tt.rel))
		})
	}
}
