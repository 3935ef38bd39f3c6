package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/internal/errors"
)

func TestNewDefaults(t *testing.T) {
	cfg := New("shop")

	assert.Equal(t, "shop", cfg.Name)
	assert.Equal(t, DefaultAddr, cfg.Live.Addr)
	assert.Equal(t, DefaultMaxSessions, cfg.Live.MaxSessions)
	assert.Equal(t, float64(DefaultEventRate), cfg.Live.EventRate)
	assert.Equal(t, StoreMemory, cfg.State.Store)
	assert.Equal(t, DefaultChannel, cfg.Cluster.Channel)
	assert.Equal(t, []string{"."}, cfg.Migrate.Roots)
	assert.Equal(t, 5*time.Minute, cfg.ResumeWindow())
	assert.False(t, cfg.ClusterEnabled())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := New("shop")
	cfg.Live.Addr = ":3000"
	cfg.State.Store = StoreBadger
	cfg.Cluster.Redis = "localhost:6379"
	require.NoError(t, cfg.SaveTo(filepath.Join(dir, ConfigFileName)))

	loaded, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "shop", loaded.Name)
	assert.Equal(t, ":3000", loaded.Live.Addr)
	assert.Equal(t, StoreBadger, loaded.State.Store)
	assert.True(t, loaded.ClusterEnabled())
	assert.Equal(t, dir, loaded.Dir())
	assert.Equal(t, filepath.Join(dir, ConfigFileName), loaded.Path())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)

	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "W102", werr.Code)
	assert.NotEmpty(t, werr.Suggestion)
}

func TestLoadUnknownKeyRejected(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"name": "shop", "liev": {"addr": ":3000"}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0644))

	_, err := Load(dir)
	require.Error(t, err)

	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "W100", werr.Code)
	assert.Contains(t, werr.Detail, "unknown field")
}

func TestLoadRejectsBadAddr(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"name": "shop", "live": {"addr": "nope"}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0644))

	_, err := Load(dir)
	require.Error(t, err)

	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "W101", werr.Code)
	assert.Contains(t, werr.Detail, "addr")
}

func TestLoadRejectsBadStore(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"name": "shop", "state": {"store": "postgres"}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0644))

	_, err := Load(dir)
	require.Error(t, err)

	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "W101", werr.Code)
	assert.Contains(t, werr.Detail, "store")
}

func TestLoadRejectsBadResumeWindow(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"name": "shop", "live": {"resumeWindow": "fast"}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0644))

	_, err := Load(dir)
	require.Error(t, err)

	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "W101", werr.Code)
	assert.Contains(t, werr.Detail, "resumeWindow")
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, New("shop").SaveTo(filepath.Join(dir, ConfigFileName)))

	t.Setenv(EnvAddr, ":9999")
	t.Setenv(EnvMaxSessions, "12")
	t.Setenv(EnvStateStore, StoreBadger)
	t.Setenv(EnvResumeWindow, "90s")
	t.Setenv(EnvRedisAddr, "redis:6379")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Live.Addr)
	assert.Equal(t, 12, cfg.Live.MaxSessions)
	assert.Equal(t, StoreBadger, cfg.State.Store)
	assert.Equal(t, 90*time.Second, cfg.ResumeWindow())
	assert.True(t, cfg.ClusterEnabled())
}

func TestEnvInvalidValueKeepsDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, New("shop").SaveTo(filepath.Join(dir, ConfigFileName)))

	t.Setenv(EnvMaxSessions, "plenty")
	t.Setenv(EnvResumeWindow, "soon")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxSessions, cfg.Live.MaxSessions)
	assert.Equal(t, DefaultResumeWindow, cfg.Live.ResumeWindow)
}

func TestEnvOverrideIsValidated(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, New("shop").SaveTo(filepath.Join(dir, ConfigFileName)))

	t.Setenv(EnvAddr, "nope")

	_, err := Load(dir)
	require.Error(t, err)

	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "W101", werr.Code)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "app", "components")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, New("shop").SaveTo(filepath.Join(root, ConfigFileName)))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestFindProjectRootMissing(t *testing.T) {
	_, err := FindProjectRoot(t.TempDir())
	require.Error(t, err)

	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "W102", werr.Code)
}

func TestPathHelpers(t *testing.T) {
	dir := t.TempDir()
	cfg := New("shop")
	cfg.State.Path = "data/state"
	cfg.Migrate.Roots = []string{"app", "/abs/src"}
	cfg.Migrate.Rules = "weft-rules.yml"
	cfg.Guide.Dir = "docs/guide"
	require.NoError(t, cfg.SaveTo(filepath.Join(dir, ConfigFileName)))

	assert.Equal(t, filepath.Join(dir, "data/state"), cfg.StatePath())
	assert.Equal(t, []string{filepath.Join(dir, "app"), "/abs/src"}, cfg.SourceRoots())
	assert.Equal(t, filepath.Join(dir, "weft-rules.yml"), cfg.RulesPath())
	assert.Equal(t, filepath.Join(dir, "docs/guide"), cfg.GuideDir())
}

func TestPathHelperDefaults(t *testing.T) {
	cfg := New("shop")

	assert.Equal(t, DefaultStatePath, cfg.StatePath())
	assert.Empty(t, cfg.RulesPath())
	assert.Empty(t, cfg.GuideDir())
	assert.Equal(t, []string{"."}, cfg.SourceRoots())
}

func TestSaveWithoutPath(t *testing.T) {
	err := New("shop").Save()
	require.Error(t, err)

	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "W100", werr.Code)
}
