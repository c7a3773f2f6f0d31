package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wrd-project/wrd-server/internal/config"
	"github.com/wrd-project/wrd-server/internal/input"
)

// flags mirrors spec.md §6's CLI surface: a flat set of flags on a
// single command, not a subcommand tree, since every one of them is
// either an alternate one-shot diagnostic or a modifier of the same
// "run the server" action.
type flags struct {
	configPath        string
	port              int
	verbosity         int
	logFile           string
	showCapabilities  bool
	persistenceStatus bool
	grantPermission   bool
	clearTokens       bool
	diagnose          bool
}

// newRootCmd builds the wrd-server command, grounded on
// api/cmd/helix/root.go's NewRootCmd + api/cmd/helix/serve.go's
// newServeCmd (a constructor returning *cobra.Command with RunE
// deferring to a plain function so it stays testable without cobra in
// the loop).
func newRootCmd(exitCode *int) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "wrd-server",
		Short: "Wayland RDP remote desktop server",
		Long:  "wrd-server captures a Wayland compositor's output, encodes it to H.264, and serves it over RDP/EGFX.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			*exitCode = runRoot(cmd.Context(), f)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "", "path to a KEY=VALUE config file, applied before environment defaults")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "listening port (overrides WRD_PORT)")
	cmd.Flags().CountVarP(&f.verbosity, "verbose", "v", "increase log verbosity (-v, -vv, -vvv)")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "write logs to this file instead of stdout")
	cmd.Flags().BoolVar(&f.showCapabilities, "show-capabilities", false, "probe the host and print the capability registry, then exit")
	cmd.Flags().BoolVar(&f.persistenceStatus, "persistence-status", false, "print the restore tokens currently on disk, then exit")
	cmd.Flags().BoolVar(&f.grantPermission, "grant-permission", false, "force the portal consent dialog once, then exit")
	cmd.Flags().BoolVar(&f.clearTokens, "clear-tokens", false, "delete every persisted restore token, then exit")
	cmd.Flags().BoolVar(&f.diagnose, "diagnose", false, "print capabilities, persistence status, and a strategy-selection dry run, then exit")

	return cmd
}

// runRoot loads configuration, builds the logger, and dispatches to
// whichever one-shot diagnostic flag was set, falling back to the
// long-running server loop.
func runRoot(ctx context.Context, f flags) int {
	if f.configPath != "" {
		if err := loadEnvFile(f.configPath); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			return exitConfigError
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return exitConfigError
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}

	logger, closeLog, err := buildLogger(cfg, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return exitConfigError
	}
	defer closeLog()

	tokenDir := cfg.Credential.ResolvedTokenDir()

	switch {
	case f.showCapabilities:
		return runShowCapabilities(ctx, logger)
	case f.persistenceStatus:
		return runPersistenceStatus(tokenDir)
	case f.clearTokens:
		return runClearTokens(tokenDir)
	case f.grantPermission:
		return runGrantPermission(ctx, logger)
	case f.diagnose:
		return runDiagnose(ctx, logger, diagnoseConfig{
			tokenDir:      tokenDir,
			layout:        input.MonitorLayout{},
			screenWidth:   cfg.Display.ScreenWidth,
			screenHeight:  cfg.Display.ScreenHeight,
			mutterMonitor: cfg.Display.MutterMonitor,
		})
	default:
		return runServe(ctx, cfg, logger)
	}
}

// buildLogger constructs the slog handler per verbosity/--log-file,
// grounded on desktop-bridge/main.go's slog.NewTextHandler(os.Stdout,
// ...) construction, extended with the file-output and verbosity-count
// knobs spec.md §6 asks for.
func buildLogger(cfg config.Config, f flags) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if f.verbosity >= 1 || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	closeLog := func() {}

	logFile := f.logFile
	if logFile == "" {
		logFile = cfg.Logging.File
	}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = file
		closeLog = func() { file.Close() }
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: f.verbosity >= 3}

	var handler slog.Handler
	if cfg.Logging.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closeLog, nil
}
