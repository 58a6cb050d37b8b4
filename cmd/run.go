package cmd

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"devenv/internal/errs"
	"devenv/internal/logger"
)

// runCmd runs a command with the installed tools on PATH, without touching
// the persistent search path.
var runCmd = &cobra.Command{
	Use:   "run -- command [args...]",
	Short: "Run a command with the installed toolchain on PATH",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}
		return spawn(cmd, s.orch.ProcessEnv(s.manifest, os.Environ()), args[0], args[1:]...)
	},
}

// shellCmd opens an interactive shell with the toolchain environment.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open a shell with the installed toolchain on PATH",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}

		shell := detectShell()
		if pwsh, ok := s.manifest.Lookup("pwsh"); ok && s.env.IsInstalled(pwsh) {
			shell = s.env.MarkerPath(pwsh)
		}
		logger.Info("[INFO] Starting %s\n", filepath.Base(shell))
		return spawn(cmd, s.orch.ProcessEnv(s.manifest, os.Environ()), shell)
	},
}

// spawn runs name attached to the terminal with the given environment.
func spawn(cmd *cobra.Command, environ []string, name string, args ...string) error {
	c := exec.CommandContext(cmd.Context(), name, args...)
	c.Env = environ
	c.Stdin = cmd.InOrStdin()
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()
	logger.Debug("[DEBUG] Running command: %s\n", strings.Join(c.Args, " "))
	if err := c.Run(); err != nil {
		return errs.New(errs.KindSubprocess, "", name, err)
	}
	return nil
}

// detectShell attempts to identify the current user's shell by inspecting the SHELL env variable.
// It falls back to the platform's command interpreter.
func detectShell() string {
	if runtime.GOOS == "windows" {
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return comspec
		}
		return "powershell.exe"
	}

	shell := os.Getenv("SHELL")
	logger.Debug("[DEBUG] Detected shell environment: %s\n", shell)
	if strings.Contains(shell, "zsh") || strings.Contains(shell, "bash") {
		return shell
	}
	return "/bin/sh"
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(shellCmd)
}
