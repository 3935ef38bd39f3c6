package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/migrate"
)

func analyzeCmd() *cobra.Command {
	var (
		rulesPath string
		asJSON    bool
		output    string
		upload    string
	)

	cmd := &cobra.Command{
		Use:   "analyze [roots...]",
		Short: "Classify component fields without changing code",
		Long: `Analyze scans your components and reports how each field would
migrate: reactive fields already use signals, state fields will be
rewritten, static fields stay plain.

The report lists every mutation the codemod will rewrite and a
diagnostic for every field it refuses to touch, with the reason.
Nothing on disk changes.

Examples:
  weft analyze
  weft analyze ./app ./widgets
  weft analyze --json
  weft analyze -o report.json
  weft analyze --upload s3://reports/frontend.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(args, rulesPath, asJSON, output, upload)
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "Path to a rules file (default from weft.json)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON instead of a table")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Also write the report to this file")
	cmd.Flags().StringVar(&upload, "upload", "", "Also upload the report to an s3://bucket/key URL")

	return cmd
}

func runAnalyze(args []string, rulesPath string, asJSON bool, output, upload string) error {
	report, err := scanProject(args, rulesPath)
	if err != nil {
		return err
	}

	if asJSON {
		err = report.WriteJSON(os.Stdout)
	} else {
		err = report.WriteText(os.Stdout)
	}
	if err != nil {
		return err
	}

	if output != "" {
		store := &migrate.DiskStore{Path: output}
		loc, err := store.Write(context.Background(), report)
		if err != nil {
			return err
		}
		success("Report written to %s", loc)
	}

	if upload != "" {
		bucket, key, err := migrate.ParseS3URL(upload)
		if err != nil {
			return err
		}
		store := &migrate.S3Store{
			Client: migrate.NewS3ClientFromEnv(),
			Bucket: bucket,
			Key:    key,
		}
		loc, err := store.Write(context.Background(), report)
		if err != nil {
			return err
		}
		success("Report uploaded to %s", loc)
	}

	return nil
}

// scanProject resolves roots and rules from the command line and the
// project config, then runs the scanner.
func scanProject(args []string, rulesPath string) (*migrate.Report, error) {
	roots, rules, err := projectInputs(args, rulesPath)
	if err != nil {
		return nil, err
	}
	return migrate.NewScanner(roots, rules).Scan()
}
