// Package env holds the Environment context object: every location and
// persistent store the pipeline touches, resolved once at startup and passed
// explicitly to each component.
package env

import (
	"os"
	"path/filepath"
	"runtime"

	"devenv/internal/config"
	"devenv/internal/errs"
	"devenv/internal/logger"
)

// AppName names the cache, data and config directories.
const AppName = "devenv"

// Environment is constructed once per process and never mutated afterwards.
type Environment struct {
	// TargetBase is the per-user root where tools are installed as <TargetBase>/<name>.
	TargetBase string
	// CacheDir holds downloaded artifacts, one file per tool.
	CacheDir string
	// TempDir is where scratch extraction directories are created.
	TempDir string
	// HomeDir is the install root used by bootstrap installers that manage their own location.
	HomeDir string
	// ShortcutDir receives launcher files; empty disables shortcuts.
	ShortcutDir string
	// PathSeparator delimits entries of the persistent search path.
	PathSeparator string
	// Paths is the user-scoped persistent search-path store.
	Paths PathStore
	// Bootstrap carries the host triple and toolchain for bootstrap installers.
	Bootstrap config.Bootstrap
}

// New resolves the environment for the current user from settings and the OS.
// Failing to determine the target base is a configuration error.
func New(st config.Settings) (*Environment, error) {
	base, err := targetBase(st.TargetBase)
	if err != nil {
		return nil, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errs.New(errs.KindConfiguration, "", "resolve home directory", err)
	}

	cacheDir := st.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), AppName+"-cache")
	}

	store, err := NewUserPathStore()
	if err != nil {
		return nil, err
	}

	e := &Environment{
		TargetBase:    base,
		CacheDir:      cacheDir,
		TempDir:       os.TempDir(),
		HomeDir:       home,
		PathSeparator: string(os.PathListSeparator),
		Paths:         store,
		Bootstrap:     st.Bootstrap,
	}
	if st.ShortcutsEnabled() {
		e.ShortcutDir = shortcutDir(home)
	}

	logger.Debug("[DEBUG] Environment: base=%s cache=%s home=%s shortcuts=%s\n",
		e.TargetBase, e.CacheDir, e.HomeDir, e.ShortcutDir)
	return e, nil
}

// ToolDir returns <TargetBase>/<name>.
func (e *Environment) ToolDir(name string) string {
	return filepath.Join(e.TargetBase, name)
}

// InstallRoot returns the directory a tool's marker file and executable
// directories are relative to. Bootstrap installers pick their own location
// under the user's home, every other kind lives in <TargetBase>/<name>.
func (e *Environment) InstallRoot(tool config.Tool) string {
	if tool.Kind == config.BootstrapInstaller {
		return e.HomeDir
	}
	return e.ToolDir(tool.Name)
}

// MarkerPath returns the absolute path of the tool's marker file.
func (e *Environment) MarkerPath(tool config.Tool) string {
	return filepath.Join(e.InstallRoot(tool), filepath.FromSlash(tool.CheckFile))
}

// IsInstalled reports whether the tool's marker file is present.
func (e *Environment) IsInstalled(tool config.Tool) bool {
	info, err := os.Stat(e.MarkerPath(tool))
	return err == nil && !info.IsDir()
}

func targetBase(configured string) (string, error) {
	if configured != "" {
		return filepath.Clean(configured), nil
	}
	if runtime.GOOS == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return local, nil
		}
		return "", errs.Newf(errs.KindConfiguration, "", "resolve target base", "%%LOCALAPPDATA%% is not set")
	}
	if data := os.Getenv("XDG_DATA_HOME"); data != "" {
		return filepath.Join(data, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.New(errs.KindConfiguration, "", "resolve target base", err)
	}
	return filepath.Join(home, ".local", "share", AppName), nil
}

func shortcutDir(home string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(home, "Desktop")
	}
	if data := os.Getenv("XDG_DATA_HOME"); data != "" {
		return filepath.Join(data, "applications")
	}
	return filepath.Join(home, ".local", "share", "applications")
}
