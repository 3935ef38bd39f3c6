package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/migrate"
)

func migrateCmd() *cobra.Command {
	var (
		rulesPath string
		dryRun    bool
		fromPath  string
	)

	cmd := &cobra.Command{
		Use:   "migrate [roots...]",
		Short: "Rewrite component state to signals",
		Long: `Migrate runs the codemod: state fields become signal fields,
reads become Get calls, writes become Set or Update calls, and
initializers wrap their values in NewSignal.

The rewrite is conservative. Fields the analyzer could not prove
safe are skipped and reported; run weft analyze first to see what
will change. Files are rewritten atomically, one at a time, and
running migrate twice is a no-op.

Examples:
  weft migrate
  weft migrate ./app
  weft migrate --dry-run
  weft migrate --from report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(args, rulesPath, dryRun, fromPath)
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "Path to a rules file (default from weft.json)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the edits without writing any file")
	cmd.Flags().StringVar(&fromPath, "from", "", "Apply a previously saved analyze report instead of rescanning")

	return cmd
}

func runMigrate(args []string, rulesPath string, dryRun bool, fromPath string) error {
	roots, rules, err := projectInputs(args, rulesPath)
	if err != nil {
		return err
	}

	var report *migrate.Report
	if fromPath != "" {
		report, err = loadReport(fromPath)
	} else {
		report, err = migrate.NewScanner(roots, rules).Scan()
	}
	if err != nil {
		return err
	}

	var stateFields int
	for _, c := range report.Components {
		for _, f := range c.Fields {
			if f.Class == migrate.ClassState {
				stateFields++
			}
		}
	}
	if stateFields == 0 {
		info("Nothing to migrate: no state fields found")
		return nil
	}
	if n := len(report.Diagnostics); n > 0 {
		warn("%d fields skipped; run weft analyze for details", n)
	}

	rw := migrate.NewRewriter(report, rules)

	if dryRun {
		edits, err := rw.Plan()
		if err != nil {
			return err
		}
		for _, e := range edits {
			info("would rewrite %s (%d sites)", e.Path, e.Sites)
		}
		info("%d files would change, %d state fields; nothing written", len(edits), stateFields)
		return nil
	}

	edits, err := rw.Apply()
	if err != nil {
		return err
	}
	sites := 0
	for _, e := range edits {
		success("rewrote %s (%d sites)", e.Path, e.Sites)
		sites += e.Sites
	}
	success("Migrated %d state fields across %d files (%d sites)", stateFields, len(edits), sites)
	info("Review the diff, then run your tests")
	return nil
}

// loadReport reads a report written by weft analyze -o.
func loadReport(path string) (*migrate.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r migrate.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}
