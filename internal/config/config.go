package config

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/weft-dev/weft/internal/errors"
)

// ConfigFileName is the name of the project configuration file.
const ConfigFileName = "weft.json"

// Snapshot store backends.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Defaults filled in for fields left empty in weft.json.
const (
	DefaultAddr         = ":8080"
	DefaultResumeWindow = "5m"
	DefaultMaxSessions  = 4096
	DefaultMaxPerIP     = 64
	DefaultEventRate    = 50
	DefaultEventBurst   = 100
	DefaultStatePath    = ".weft/state"
	DefaultChannel      = "weft:globals"
	DefaultGuideAddr    = ":8090"
)

// Config is the parsed weft.json.
type Config struct {
	// Name identifies the project in logs and generated pages.
	Name string `json:"name"`

	Live    LiveConfig    `json:"live"`
	State   StateConfig   `json:"state"`
	Cluster ClusterConfig `json:"cluster"`
	Migrate MigrateConfig `json:"migrate"`
	Guide   GuideConfig   `json:"guide"`

	// path is the file this config was loaded from, if any.
	path string
}

// LiveConfig tunes the live session server.
type LiveConfig struct {
	// Addr is the listen address of the HTTP server.
	Addr string `json:"addr,omitempty"`
	// ResumeWindow is how long a detached session stays resumable,
	// in Go duration syntax ("30s", "5m").
	ResumeWindow string `json:"resumeWindow,omitempty"`
	// MaxSessions caps concurrent sessions across the server.
	MaxSessions int `json:"maxSessions,omitempty"`
	// MaxPerIP caps concurrent connections per client IP.
	MaxPerIP int `json:"maxPerIP,omitempty"`
	// EventRate is the sustained client events per second allowed
	// per session before events are dropped.
	EventRate float64 `json:"eventRate,omitempty"`
	// EventBurst is the burst size of the per-session event limiter.
	EventBurst int `json:"eventBurst,omitempty"`
}

// StateConfig selects where session state snapshots live.
type StateConfig struct {
	// Store is the snapshot backend: "memory" or "badger".
	Store string `json:"store,omitempty"`
	// Path is the badger database directory, relative to the project root.
	Path string `json:"path,omitempty"`
}

// ClusterConfig wires global-signal replication.
type ClusterConfig struct {
	// Redis is the address of the Redis instance used to replicate
	// global signals. Empty disables clustering.
	Redis string `json:"redis,omitempty"`
	// Channel is the pub/sub channel global updates travel over.
	Channel string `json:"channel,omitempty"`
}

// MigrateConfig feeds the migration toolchain.
type MigrateConfig struct {
	// Roots are the source directories the component scanner walks.
	Roots []string `json:"roots,omitempty"`
	// Rules points at an optional YAML rules file for the codemod.
	Rules string `json:"rules,omitempty"`
}

// GuideConfig tunes the migration guide server.
type GuideConfig struct {
	// Dir serves guide chapters from disk instead of the embedded set.
	Dir string `json:"dir,omitempty"`
	// Addr is the listen address of weft guide.
	Addr string `json:"addr,omitempty"`
}

// New returns a config with defaults for a fresh project.
func New(name string) *Config {
	cfg := &Config{Name: name}
	cfg.applyDefaults()
	return cfg
}

// Load reads weft.json from the given project directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads a config from an explicit path, overlays WEFT_*
// environment variables and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("W102").
				WithDetail("No config file at " + path).
				WithSuggestion("Create " + ConfigFileName + " at the project root, or pass --config")
		}
		return nil, errors.New("W100").WithDetail(err.Error())
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.New("W100").
			WithDetail(path + ": " + err.Error()).
			WithSuggestion("Check " + ConfigFileName + " for typos; unknown keys are rejected")
	}

	cfg.path = path
	cfg.applyDefaults()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromWorkingDir walks up from the current directory to the nearest
// weft.json and loads it.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}
	return Load(root)
}

// Exists reports whether dir contains a config file.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up from startDir and returns the first directory
// containing weft.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("W102").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory").
				WithSuggestion("Run weft from inside a project, or pass --config")
		}
		dir = parent
	}
}

// Save writes the config back to the file it was loaded from.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("W100").WithDetail("Config has no file path; use SaveTo")
	}
	return c.SaveTo(c.path)
}

// SaveTo writes the config as indented JSON.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("W100").WithDetail(err.Error())
	}
	c.path = path
	return nil
}

// Path returns the file this config was loaded from or saved to.
func (c *Config) Path() string {
	return c.path
}

// Dir returns the project root directory.
func (c *Config) Dir() string {
	if c.path == "" {
		return "."
	}
	return filepath.Dir(c.path)
}

// applyDefaults fills zero-valued fields so that loaded configs and
// New configs look the same to callers.
func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "weft-app"
	}
	if c.Live.Addr == "" {
		c.Live.Addr = DefaultAddr
	}
	if c.Live.ResumeWindow == "" {
		c.Live.ResumeWindow = DefaultResumeWindow
	}
	if c.Live.MaxSessions == 0 {
		c.Live.MaxSessions = DefaultMaxSessions
	}
	if c.Live.MaxPerIP == 0 {
		c.Live.MaxPerIP = DefaultMaxPerIP
	}
	if c.Live.EventRate == 0 {
		c.Live.EventRate = DefaultEventRate
	}
	if c.Live.EventBurst == 0 {
		c.Live.EventBurst = DefaultEventBurst
	}
	if c.State.Store == "" {
		c.State.Store = StoreMemory
	}
	if c.State.Path == "" {
		c.State.Path = DefaultStatePath
	}
	if c.Cluster.Channel == "" {
		c.Cluster.Channel = DefaultChannel
	}
	if len(c.Migrate.Roots) == 0 {
		c.Migrate.Roots = []string{"."}
	}
	if c.Guide.Addr == "" {
		c.Guide.Addr = DefaultGuideAddr
	}
}

// Validate checks the config after defaults have been applied. Failures
// come back as a single W101 whose detail names the offending fields.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Live),
		validation.Field(&c.State),
		validation.Field(&c.Guide),
	)
	if err != nil {
		return errors.New("W101").
			WithDetail(err.Error()).
			WithSuggestion("Fix the listed fields in " + ConfigFileName)
	}
	return nil
}

// Validate implements validation.Validatable.
func (lc LiveConfig) Validate() error {
	return validation.ValidateStruct(&lc,
		validation.Field(&lc.Addr, validation.By(checkHostPort)),
		validation.Field(&lc.ResumeWindow, validation.By(checkDuration)),
		validation.Field(&lc.MaxSessions, validation.Min(0)),
		validation.Field(&lc.MaxPerIP, validation.Min(0)),
		validation.Field(&lc.EventRate, validation.Min(0.0)),
		validation.Field(&lc.EventBurst, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (sc StateConfig) Validate() error {
	return validation.ValidateStruct(&sc,
		validation.Field(&sc.Store, validation.In(StoreMemory, StoreBadger)),
	)
}

// Validate implements validation.Validatable.
func (gc GuideConfig) Validate() error {
	return validation.ValidateStruct(&gc,
		validation.Field(&gc.Addr, validation.By(checkHostPort)),
	)
}

func checkHostPort(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(s); err != nil {
		return validation.NewError("weft.config.addr_invalid", "must be a host:port address")
	}
	return nil
}

func checkDuration(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return validation.NewError("weft.config.duration_invalid", `must be a Go duration such as "30s"`)
	}
	if d <= 0 {
		return validation.NewError("weft.config.duration_nonpositive", "must be positive")
	}
	return nil
}

// ResumeWindow returns the parsed resume window. Values that fail to
// parse fall back to the default; Validate is where they get reported.
func (c *Config) ResumeWindow() time.Duration {
	if d, err := time.ParseDuration(c.Live.ResumeWindow); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(DefaultResumeWindow)
	return d
}

// StatePath returns the absolute badger database directory.
func (c *Config) StatePath() string {
	path := c.State.Path
	if path == "" {
		path = DefaultStatePath
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// SourceRoots returns the scanner roots resolved against the project root.
func (c *Config) SourceRoots() []string {
	roots := c.Migrate.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}
	out := make([]string, len(roots))
	for i, r := range roots {
		if filepath.IsAbs(r) {
			out[i] = r
			continue
		}
		out[i] = filepath.Join(c.Dir(), r)
	}
	return out
}

// RulesPath returns the absolute codemod rules path, or "" when unset.
func (c *Config) RulesPath() string {
	if c.Migrate.Rules == "" {
		return ""
	}
	if filepath.IsAbs(c.Migrate.Rules) {
		return c.Migrate.Rules
	}
	return filepath.Join(c.Dir(), c.Migrate.Rules)
}

// GuideDir returns the absolute guide chapter directory, or "" when the
// embedded chapters should be served.
func (c *Config) GuideDir() string {
	if c.Guide.Dir == "" {
		return ""
	}
	if filepath.IsAbs(c.Guide.Dir) {
		return c.Guide.Dir
	}
	return filepath.Join(c.Dir(), c.Guide.Dir)
}

// ClusterEnabled reports whether a Redis address is configured.
func (c *Config) ClusterEnabled() bool {
	return c.Cluster.Redis != ""
}
