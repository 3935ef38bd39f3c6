package main

import (
	"fmt"
	"os"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/semver"

	"github.com/weft-dev/weft/internal/errors"
)

// weftModule is the requirement the update command bumps.
const weftModule = "github.com/weft-dev/weft"

func updateCmd() *cobra.Command {
	var (
		check bool
		force bool
		file  string
	)

	cmd := &cobra.Command{
		Use:   "update <version>",
		Short: "Bump the weft requirement in go.mod",
		Long: `Update rewrites go.mod to require the given weft version.

Downgrades are refused unless --force is passed. The file is
replaced atomically, so a crash mid-write cannot corrupt it.
After updating, run weft migrate to apply any codemods the new
version ships.

Examples:
  weft update v0.5.0
  weft update v0.5.0 --check
  weft update v0.4.0 --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(args[0], file, check, force)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Report the change without writing go.mod")
	cmd.Flags().BoolVar(&force, "force", false, "Allow downgrading to an older version")
	cmd.Flags().StringVar(&file, "file", "go.mod", "Path to the go.mod to update")

	return cmd
}

func runUpdate(target, path string, check, force bool) error {
	current, mf, err := planUpdate(target, path, force)
	if err != nil {
		return err
	}
	if mf == nil {
		info("Already at %s", current)
		return nil
	}

	if semver.Compare(target, current) < 0 {
		warn("Downgrading %s: %s -> %s", weftModule, current, target)
	}
	if check {
		info("%s: %s -> %s (not written)", weftModule, current, target)
		return nil
	}

	out, err := mf.Format()
	if err != nil {
		return fmt.Errorf("formatting %s: %w", path, err)
	}
	if err := renameio.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	success("%s: %s -> %s", weftModule, current, target)
	info("Run weft migrate to apply the new version's codemods")
	return nil
}

// planUpdate parses the module file and prepares the version bump.
// It returns the currently required version and the updated file, or
// a nil file when the requirement already matches the target.
func planUpdate(target, path string, force bool) (string, *modfile.File, error) {
	if !semver.IsValid(target) {
		return "", nil, fmt.Errorf("invalid version %q: versions look like v0.5.0", target)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", path, err)
	}
	mf, err := modfile.Parse(path, data, nil)
	if err != nil {
		return "", nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	var current string
	for _, req := range mf.Require {
		if req.Mod.Path == weftModule {
			current = req.Mod.Version
			break
		}
	}
	if current == "" {
		return "", nil, errors.New("W150").
			WithDetail(path + " has no requirement on " + weftModule).
			WithSuggestion("Add weft to the module first: go get " + weftModule)
	}

	switch semver.Compare(target, current) {
	case 0:
		return current, nil, nil
	case -1:
		if !force {
			return "", nil, errors.New("W151").
				WithDetail(fmt.Sprintf("go.mod requires %s and %s is older", current, target)).
				WithSuggestion("Pass --force to downgrade anyway")
		}
	}

	if err := mf.AddRequire(weftModule, target); err != nil {
		return "", nil, fmt.Errorf("updating requirement: %w", err)
	}
	mf.Cleanup()
	return current, mf, nil
}
