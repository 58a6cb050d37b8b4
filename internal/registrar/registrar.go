// Package registrar merges installed tool directories into the user's
// persistent search path and creates launch shortcuts.
package registrar

import (
	"errors"
	"path/filepath"
	"runtime"
	"strings"

	"devenv/internal/config"
	"devenv/internal/env"
	"devenv/internal/errs"
	"devenv/internal/logger"
)

// ErrImplausiblePath is returned when an unregister would leave an almost
// empty search path behind for a user who had other entries.
var ErrImplausiblePath = errors.New("refusing to write implausibly short search path")

// minPlausibleLen is the shortest search path written back over a non-empty one.
const minPlausibleLen = 5

// Registrar edits the persistent search path of env.Paths.
type Registrar struct {
	env    *env.Environment
	writer ShortcutWriter
}

// New returns a registrar. A nil writer selects the platform's shortcut writer.
func New(e *env.Environment, writer ShortcutWriter) *Registrar {
	if writer == nil {
		writer = NewShortcutWriter(e.ShortcutDir, nil)
	}
	return &Registrar{env: e, writer: writer}
}

// ToolDirs returns the absolute executable directories of tool.
// Explicit path_dirs win; git exposes cmd and bin; everything else exposes
// the directory holding its marker file.
func (r *Registrar) ToolDirs(tool config.Tool) []string {
	root := r.env.InstallRoot(tool)
	var rel []string
	switch {
	case len(tool.PathDirs) > 0:
		rel = tool.PathDirs
	case tool.Name == "git":
		rel = []string{"cmd", "bin"}
	default:
		rel = []string{filepath.Dir(filepath.FromSlash(tool.CheckFile))}
	}

	dirs := make([]string, 0, len(rel))
	for _, d := range rel {
		dirs = append(dirs, filepath.Join(root, filepath.FromSlash(d)))
	}
	return dirs
}

// Register appends every missing tool directory to the search path. The
// store is written only when something changed.
func (r *Registrar) Register(tools []config.Tool) (bool, error) {
	current, err := r.env.Paths.Get()
	if err != nil {
		return false, errs.New(errs.KindEnvironment, "", "read search path", err)
	}

	// Index existing entries so a directory is never added twice.
	entries := r.split(current)
	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		present[r.key(e)] = true
	}

	var added []string
	for _, tool := range tools {
		for _, dir := range r.ToolDirs(tool) {
			if present[r.key(dir)] {
				continue
			}
			present[r.key(dir)] = true
			added = append(added, dir)
			logger.Debug("[DEBUG] Adding %s to the search path\n", dir)
		}
	}
	if len(added) == 0 {
		logger.Debug("[DEBUG] Search path already up to date\n")
		return false, nil
	}

	// Append after the user's own entries; no leading separator on an empty path.
	updated := strings.Join(added, r.env.PathSeparator)
	if current != "" {
		updated = current + r.env.PathSeparator + updated
	}
	if err := r.env.Paths.Set(updated); err != nil {
		return false, errs.New(errs.KindEnvironment, "", "write search path", err)
	}
	logger.Info("[INFO] Added %d directories to the user search path\n", len(added))
	return true, nil
}

// Unregister removes every search-path entry that contains one of the
// tools' directories. Empty entries are kept so that unregistering right
// after a register restores the original value byte for byte.
func (r *Registrar) Unregister(tools []config.Tool) (bool, error) {
	current, err := r.env.Paths.Get()
	if err != nil {
		return false, errs.New(errs.KindEnvironment, "", "read search path", err)
	}
	if current == "" {
		return false, nil
	}

	// Normalize our directories once for substring matching.
	var ours []string
	for _, tool := range tools {
		for _, dir := range r.ToolDirs(tool) {
			ours = append(ours, r.key(strings.TrimRight(dir, `\/`)))
		}
	}

	// Split without dropping empties so the join below is byte-exact.
	original := strings.Split(current, r.env.PathSeparator)
	kept := make([]string, 0, len(original))
	allOurs := true
	for _, e := range original {
		if e != "" && r.matches(e, ours) {
			logger.Debug("[DEBUG] Removing %s from the search path\n", e)
			continue
		}
		if e != "" {
			allOurs = false
		}
		kept = append(kept, e)
	}
	if len(kept) == len(original) {
		return false, nil
	}

	// Refuse to leave a near-empty path unless only our entries were there.
	updated := strings.Join(kept, r.env.PathSeparator)
	if len(updated) < minPlausibleLen && !allOurs {
		return false, errs.New(errs.KindEnvironment, "", "unregister", ErrImplausiblePath)
	}
	if err := r.env.Paths.Set(updated); err != nil {
		return false, errs.New(errs.KindEnvironment, "", "write search path", err)
	}
	logger.Info("[INFO] Removed %d entries from the user search path\n", len(original)-len(kept))
	return true, nil
}

// Registered reports whether every directory of tool is on the search path.
func (r *Registrar) Registered(tool config.Tool) bool {
	current, err := r.env.Paths.Get()
	if err != nil {
		logger.Debug("[DEBUG] read search path: %v\n", err)
		return false
	}
	entries := r.split(current)
	for _, dir := range r.ToolDirs(tool) {
		if !r.matchesAny(entries, r.key(strings.TrimRight(dir, `\/`))) {
			return false
		}
	}
	return true
}

func (r *Registrar) matches(entry string, dirs []string) bool {
	k := r.key(entry)
	for _, d := range dirs {
		if strings.Contains(k, d) {
			return true
		}
	}
	return false
}

func (r *Registrar) matchesAny(entries []string, dir string) bool {
	for _, e := range entries {
		if strings.Contains(r.key(e), dir) {
			return true
		}
	}
	return false
}

// split returns the non-empty entries of a search path value.
func (r *Registrar) split(value string) []string {
	var out []string
	for _, e := range strings.Split(value, r.env.PathSeparator) {
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// key folds case on Windows, where the search path is case-insensitive.
func (r *Registrar) key(s string) string {
	if runtime.GOOS == "windows" {
		return strings.ToLower(s)
	}
	return s
}
