package cmd

import (
	"github.com/spf13/cobra"

	"devenv/internal/logger"
)

// statusCmd shows which manifest tools are installed and on PATH.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show installed tools and their PATH registration",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}

		logger.Info("[INFO] Install target: %s\n", s.env.TargetBase)
		missing := 0
		for _, st := range s.orch.Status(s.manifest) {
			switch {
			case st.Installed && st.OnPath:
				logger.Info("  %-10s %-10s installed, on PATH\n", st.Name, st.Version)
			case st.Installed:
				logger.Warn("  %-10s %-10s installed, not on PATH\n", st.Name, st.Version)
				missing++
			case st.Cached:
				logger.Error("  %-10s %-10s not installed (artifact cached)\n", st.Name, st.Version)
				missing++
			default:
				logger.Error("  %-10s %-10s not installed\n", st.Name, st.Version)
				missing++
			}
			logger.Debug("[DEBUG]   kind=%s dir=%s cached=%t\n", st.Kind, st.Dir, st.Cached)
		}
		if missing > 0 {
			logger.Warn("[WARN] Run `devenv setup` to install or register missing tools.\n")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
