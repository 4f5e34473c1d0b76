package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"svg2img/internal/app"
	u "svg2img/internal/utils"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stderr)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "svg2img <input.svg>",
		Short: "Render an SVG file to PNG and JPG with a real browser",
		Long: `svg2img opens the SVG in Chrome, draws it onto a canvas at its intrinsic
size and saves the canvas as <name>.png and <name>.jpg. JPG output gets a
white background where the SVG is transparent.

Output formats and directories come from the YAML file named by --config or
CONFIG_PATH (default config.yaml, optional).`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("missing input SVG file")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			var cfg u.Config
			var err error
			if configPath != "" {
				cfg, err = u.LoadFrom(configPath)
			} else {
				cfg, err = u.LoadConfig()
			}
			if err != nil {
				return err
			}
			level := cfg.Logger.Level
			if verbose {
				level = "debug"
			}
			u.InitLogger(
				cfg.Logger.File,
				cfg.Logger.MaxSizeMB,
				cfg.Logger.MaxBackups,
				cfg.Logger.MaxAgeDays,
				cfg.Logger.Compress,
				level,
			)

			conv, closeFn := app.SetupConverter(cmd.Context(), cfg)
			defer closeFn()

			report, err := conv.Run(cmd.Context(), args[0])
			if err != nil {
				u.Error("Conversion aborted", "source", args[0], "run_id", report.RunID, "error", err)
				return err
			}
			u.Info("Done", "run_id", report.RunID, "saved", report.Saved(), "failed", report.Failed())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (or set CONFIG_PATH)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}
