package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"devenv/internal/cache"
	"devenv/internal/config"
	"devenv/internal/env"
	"devenv/internal/errs"
	"devenv/internal/logger"
	"devenv/internal/setup"
)

// debug flag indicates whether debug logging should be enabled.
// It can be toggled via the `--debug` command-line flag.
var debug bool

// configPath is the settings file passed via `--config`.
var configPath string

// manifestPath overrides manifest resolution when set via `--manifest`.
var manifestPath string

// rootCmd is the base command for the CLI tool `devenv`.
// It sets up the root-level CLI structure and provides global flags.
var rootCmd = &cobra.Command{
	Use:   "devenv",
	Short: "Portable developer toolchain provisioner",
	Long: `devenv downloads, verifies and installs a portable developer toolchain
(runtimes, compilers, shells, editors) into a per-user location and registers
it on the user's persistent PATH.`,
	SilenceUsage:  true,
	SilenceErrors: true,

	// PersistentPreRun is a hook that runs before any subcommand.
	// Here, we initialize the logger based on the debug flag.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(debug)
	},
}

// Execute registers global flags and runs the selected subcommand.
// Unrecoverable errors exit with status 1; per-tool failures are reported
// by the subcommands and do not change the exit status.
func Execute() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultSettingsFile, "Path to settings file")
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "", "Path to tool manifest (JSON or YAML)")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, errs.ErrCancelled) {
			logger.Warn("[WARN] %v\n", err)
		} else {
			logger.Error("[ERROR] %v\n", err)
		}
		os.Exit(1)
	}
}

// session is everything a subcommand needs, loaded once per invocation.
type session struct {
	settings config.Settings
	manifest *config.Manifest
	env      *env.Environment
	orch     *setup.Orchestrator
}

// httpClient is shared by manifest fetching and release lookups.
var httpClient = &http.Client{Timeout: 2 * time.Minute}

// loadSession reads settings, resolves the manifest and builds the environment.
func loadSession(ctx context.Context) (*session, error) {
	st, err := config.LoadSettings(configPath)
	if err != nil {
		return nil, err
	}
	m, err := config.ResolveManifest(ctx, httpClient, manifestPath, st)
	if err != nil {
		return nil, err
	}
	e, err := env.New(st)
	if err != nil {
		return nil, err
	}
	return &session{
		settings: st,
		manifest: m,
		env:      e,
		orch:     setup.NewDefault(e, cache.WithProgress(newProgressPrinter(os.Stderr))),
	}, nil
}
