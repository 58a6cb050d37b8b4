package cmd

import (
	"github.com/spf13/cobra"

	"devenv/internal/logger"
)

var cleanYes bool

// cleanCmd removes installed tools, the download cache and PATH entries.
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove installed tools, the download cache and their PATH entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}
		if !cleanYes {
			if err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Remove every installed tool under "+s.env.TargetBase+"?"); err != nil {
				return err
			}
		}
		if err := s.orch.Clean(s.manifest); err != nil {
			return err
		}
		logger.Info("[INFO] Environment cleaned.\n")
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(cleanCmd)
}
