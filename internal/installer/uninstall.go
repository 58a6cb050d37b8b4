package installer

import (
	"os"

	"devenv/internal/config"
	"devenv/internal/errs"
	"devenv/internal/logger"
)

// Remove deletes the installed tree of a directory-kind tool. It reports
// whether anything was removed. Bootstrap tools are left to their own
// uninstaller.
func (i *Installer) Remove(tool config.Tool) (bool, error) {
	if tool.Kind == config.BootstrapInstaller {
		logger.Warn("[WARN] %s manages its own install. Run its uninstaller to remove it.\n", tool.Name)
		return false, nil
	}

	i.sweepPartials(tool)
	dir := i.env.ToolDir(tool.Name)
	if !dirExists(dir) {
		logger.Debug("[DEBUG] %s is not installed at %s\n", tool.Name, dir)
		return false, nil
	}

	logger.Info("[INFO] Uninstalling %s...\n", tool.Name)
	if err := os.RemoveAll(dir); err != nil {
		logger.Error("[ERROR] Failed to remove %s: %v\n", dir, err)
		return false, errs.New(errs.KindArchive, tool.Name, "remove "+dir, err)
	}
	logger.Info("[INFO] Successfully removed directory %s\n", dir)
	return true, nil
}
