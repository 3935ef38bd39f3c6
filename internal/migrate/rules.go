package migrate

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/weft-dev/weft/internal/errors"
)

// Rules tunes what the scanner admits and what the codemod touches.
// Loaded from the YAML file named by --rules.
type Rules struct {
	// Include lists globs of files to scan. Empty admits every Go file
	// under the roots. Patterns without a separator match the base
	// name; patterns with one match the root-relative path.
	Include []string `yaml:"include"`

	// Exclude lists globs of files to skip, matched the same way.
	Exclude []string `yaml:"exclude"`

	// Aggressive also migrates plain fields that Render reads but no
	// method was observed to write.
	Aggressive bool `yaml:"aggressive"`

	// Skip maps component names to fields the codemod must leave
	// alone.
	Skip map[string][]string `yaml:"skip"`
}

// DefaultRules returns the rules applied when no file is given.
func DefaultRules() *Rules {
	return &Rules{}
}

// LoadRules reads and validates a rules file. An empty file yields the
// defaults; anything malformed comes back as a W204.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("W204").WithDetail("reading " + path).Wrap(err)
	}
	r := DefaultRules()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(r); err != nil {
		if stderrors.Is(err, io.EOF) {
			return r, nil
		}
		return nil, errors.New("W204").
			WithSuggestion("check the YAML against the documented schema").
			Wrap(err)
	}
	if err := r.Validate(); err != nil {
		return nil, errors.New("W204").WithDetail(err.Error()).Wrap(err)
	}
	return r, nil
}

// Validate rejects rule shapes the scanner cannot honor.
func (r *Rules) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Include, validation.Each(validation.By(checkGlob))),
		validation.Field(&r.Exclude, validation.Each(validation.By(checkGlob))),
		validation.Field(&r.Skip, validation.By(checkSkips)),
	)
}

func checkGlob(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return stderrors.New("empty pattern")
	}
	if _, err := path.Match(s, "probe"); err != nil {
		return fmt.Errorf("invalid glob %q", s)
	}
	return nil
}

func checkSkips(value interface{}) error {
	skips, _ := value.(map[string][]string)
	for comp, fields := range skips {
		if comp == "" {
			return stderrors.New("empty component name")
		}
		for _, f := range fields {
			if f == "" {
				return fmt.Errorf("empty field name under %q", comp)
			}
		}
	}
	return nil
}

// SkipField reports whether the rules exclude a field from migration.
func (r *Rules) SkipField(component, field string) bool {
	for _, f := range r.Skip[component] {
		if f == field {
			return true
		}
	}
	return false
}

// matchFile applies the include and exclude globs to a slash-separated
// root-relative path.
func (r *Rules) matchFile(rel string) bool {
	if len(r.Include) > 0 && !matchAny(r.Include, rel) {
		return false
	}
	return !matchAny(r.Exclude, rel)
}

func matchAny(patterns []string, rel string) bool {
	base := path.Base(rel)
	for _, p := range patterns {
		target := base
		if strings.Contains(p, "/") {
			target = rel
		}
		if ok, _ := path.Match(p, target); ok {
			return true
		}
	}
	return false
}
