package setup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"devenv/internal/config"
	"devenv/internal/errs"
	"devenv/internal/logger"
)

// maxSearchDepth bounds how deep ImportLocal looks below the source folder.
const maxSearchDepth = 3

// ImportLocal installs the selected tools from already unpacked folders under
// sourceDir instead of downloading them. A folder qualifies when it holds
// the tool's marker file.
func (o *Orchestrator) ImportLocal(ctx context.Context, m *config.Manifest, selected []string, sourceDir string) (*Report, error) {
	report := &Report{}
	if len(selected) == 0 {
		return report, nil
	}
	if info, err := os.Stat(sourceDir); err != nil || !info.IsDir() {
		return report, errs.Newf(errs.KindConfiguration, "", "import", "source folder %s does not exist", sourceDir)
	}
	tools, err := m.Select(selected)
	if err != nil {
		return report, errs.New(errs.KindConfiguration, "", "select tools", err)
	}

	for i, tool := range tools {
		if err := ctx.Err(); err != nil {
			for _, rest := range tools[i:] {
				report.add(Result{Tool: rest.Name, State: NotStarted})
			}
			return report, errs.New(errs.KindCancelled, "", "import", err)
		}

		res := Result{Tool: tool.Name, State: Installing}
		switch {
		case o.env.IsInstalled(tool):
			res.State = AlreadyInstalled
		case tool.Kind == config.BootstrapInstaller:
			logger.Warn("[WARN] %s runs its own installer and cannot be imported. Skipping.\n", tool.Name)
			res.State = NotStarted
		default:
			logger.Info("[INFO] Searching for %s...\n", tool.Name)
			folder, ok := FindFolderContaining(sourceDir, tool.CheckFile)
			if !ok {
				res = fail(res, tool, errs.Newf(errs.KindArchive, tool.Name, "import",
					"no folder under %s contains %s", sourceDir, tool.CheckFile))
				break
			}
			logger.Info("[INFO] Copying %s to %s...\n", folder, o.env.ToolDir(tool.Name))
			if err := o.installer.InstallFromDir(tool, folder); err != nil {
				res = fail(res, tool, err)
				break
			}
			res.State = Installed
		}
		report.add(res)
		if res.Err != nil && errs.IsFatal(res.Err) {
			return report, res.Err
		}
	}

	if report.Count(Installed) == 0 {
		return report, nil
	}
	changed, err := o.registerInstalled(ctx, m)
	report.Registered = changed
	return report, err
}

// FindFolderContaining returns the first directory one to three levels below
// base that contains marker.
func FindFolderContaining(base, marker string) (string, bool) {
	marker = filepath.FromSlash(marker)
	var found string
	_ = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped.
			if d != nil && d.IsDir() && path != base {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() || path == base {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		depth := len(strings.Split(rel, string(filepath.Separator)))
		if depth > maxSearchDepth {
			return filepath.SkipDir
		}
		if info, err := os.Stat(filepath.Join(path, marker)); err == nil && !info.IsDir() {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}
