package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/guide"
)

func guideCmd() *cobra.Command {
	var (
		addr string
		dir  string
	)

	cmd := &cobra.Command{
		Use:   "guide",
		Short: "Serve the migration guide",
		Long: `Guide starts a local server with the migration handbook:
thinking in signals, reading analyze reports, running the codemod,
and fixing what the codemod skips.

With --dir the guide serves your own chapters instead of the
built-in ones, and live-reloads connected browsers on every edit.

Examples:
  weft guide
  weft guide --addr :9000
  weft guide --dir docs/guide`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuide(addr, dir)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from weft.json, else :8090)")
	cmd.Flags().StringVar(&dir, "dir", "", "Serve chapters from this directory with live reload")

	return cmd
}

func runGuide(addr, dir string) error {
	cfg, err := loadProject()
	if err != nil {
		return err
	}
	if addr == "" && cfg != nil {
		addr = cfg.Guide.Addr
	}
	if addr == "" {
		addr = config.DefaultGuideAddr
	}
	if dir == "" && cfg != nil {
		dir = cfg.GuideDir()
	}

	srv, err := guide.NewServer(guide.Options{Addr: addr, Dir: dir})
	if err != nil {
		return err
	}

	printBanner()
	success("Migration guide on http://localhost%s", addr)
	if dir != "" {
		info("Serving chapters from %s with live reload", dir)
	}
	info("Press Ctrl+C to stop")

	return srv.Run(context.Background())
}
