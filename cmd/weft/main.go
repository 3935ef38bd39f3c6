package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/errors"
	"github.com/weft-dev/weft/internal/log"
	"github.com/weft-dev/weft/internal/migrate"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦ ╦╔═╗╔═╗╔╦╗
  ║║║║╣ ╠╣  ║
  ╚╩╝╚═╝╚    ╩
`

// Persistent flags shared by every subcommand.
var (
	flagConfig  string
	flagVerbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "weft",
		Short: "Migrate component state to signals",
		Long: `Weft moves server-driven components from plain struct fields
to reactive signals.

The toolchain analyzes your components, rewrites state access to
the signal API, and serves a migration guide. Features include:

  • Field classification: reactive, state, static
  • Codemod that rewrites reads, writes, and initializers
  • Reports you can store on disk or in S3
  • go.mod version bumps with downgrade protection
  • Built-in migration guide with live reload`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if flagVerbose {
				level = "debug"
			}
			log.Configure(log.Config{
				Level:   level,
				Output:  zerolog.ConsoleWriter{Out: os.Stderr},
				Service: "weft",
			})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to weft.json (default: nearest parent directory)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	// Add commands
	rootCmd.AddCommand(
		analyzeCmd(),
		migrateCmd(),
		updateCmd(),
		guideCmd(),
		versionCmd(),
	)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

// loadProject resolves the project config. A missing weft.json is not
// fatal: every command works from flags and defaults alone, so a bare
// "not found" comes back as a nil config. An unreadable or invalid
// file is still an error.
func loadProject() (*config.Config, error) {
	if flagConfig != "" {
		return config.LoadFile(flagConfig)
	}
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		var werr *errors.Error
		if stderrors.As(err, &werr) && werr.Code == "W102" {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

// projectInputs resolves scanner roots and codemod rules from the
// command line and weft.json. Flags win over the config file.
func projectInputs(args []string, rulesPath string) ([]string, *migrate.Rules, error) {
	cfg, err := loadProject()
	if err != nil {
		return nil, nil, err
	}

	roots := args
	if len(roots) == 0 && cfg != nil {
		roots = cfg.SourceRoots()
	}

	if rulesPath == "" && cfg != nil {
		rulesPath = cfg.RulesPath()
	}
	rules := migrate.DefaultRules()
	if rulesPath != "" {
		rules, err = migrate.LoadRules(rulesPath)
		if err != nil {
			return nil, nil, err
		}
	}

	return roots, rules, nil
}

// printBanner prints the Weft ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
