package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"devenv/internal/logger"
	"devenv/internal/setup"
)

var (
	assumeYes bool   // skip confirmation prompts
	fromDir   string // install from unpacked folders instead of downloading
)

// setupCmd installs the selected tools (all manifest tools when none are named).
var setupCmd = &cobra.Command{
	Use:   "setup [tool...]",
	Short: "Download, verify and install tools, then register them on PATH",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}

		selected := args
		if len(selected) == 0 {
			selected = s.manifest.Names()
		}

		logger.Info("[INFO] Install target: %s\n", s.env.TargetBase)
		if !assumeYes {
			q := fmt.Sprintf("Install %s into %s?", strings.Join(selected, ", "), s.env.TargetBase)
			if err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), q); err != nil {
				return err
			}
		}

		var report *setup.Report
		if fromDir != "" {
			report, err = s.orch.ImportLocal(cmd.Context(), s.manifest, selected, fromDir)
		} else {
			report, err = s.orch.Run(cmd.Context(), s.manifest, selected)
		}
		printReport(report)
		return err
	},
}

// printReport prints one line per tool and a closing summary.
func printReport(r *setup.Report) {
	if r == nil || len(r.Results) == 0 {
		logger.Info("[INFO] Nothing to do.\n")
		return
	}
	for _, res := range r.Results {
		switch res.State {
		case setup.Installed, setup.AlreadyInstalled:
			logger.Info("  %-10s %s\n", res.Tool, res.State)
		case setup.Failed:
			logger.Error("  %-10s failed while %s: %v\n", res.Tool, res.Stage, res.Err)
		default:
			logger.Warn("  %-10s %s\n", res.Tool, res.State)
		}
	}
	failed := len(r.Failures())
	if failed > 0 {
		logger.Warn("[WARN] %d tool(s) failed. Re-run setup to retry them.\n", failed)
		return
	}
	logger.Info("[INFO] Setup complete.\n")
}

func init() {
	setupCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	setupCmd.Flags().StringVar(&fromDir, "from", "", "Install from unpacked folders under this directory")
	rootCmd.AddCommand(setupCmd)
}
