package registrar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"devenv/internal/config"
	"devenv/internal/installer"
	"devenv/internal/logger"
)

// Launcher is a shortcut ready to be written.
type Launcher struct {
	Name     string
	Target   string
	WorkDir  string
	Terminal bool
}

// ShortcutWriter materializes launchers in a platform-specific format.
type ShortcutWriter interface {
	Write(ctx context.Context, l Launcher) error
}

// curated launchers for tools whose manifest entry names none.
var curated = map[string]struct {
	shortcut config.Shortcut
	terminal bool
}{
	"pwsh":     {config.Shortcut{Name: "Devenv Shell", Exe: "pwsh.exe"}, true},
	"vscodium": {config.Shortcut{Name: "VSCodium Portable", Exe: "VSCodium.exe"}, false},
	"git":      {config.Shortcut{Name: "Git Bash", Exe: "git-bash.exe"}, false},
}

// LauncherFor returns the launcher of tool, if it has one.
func (r *Registrar) LauncherFor(tool config.Tool) (Launcher, bool) {
	sc := tool.Shortcut
	terminal := false
	if sc == nil {
		c, ok := curated[tool.Name]
		if !ok {
			return Launcher{}, false
		}
		sc, terminal = &c.shortcut, c.terminal
	}
	root := r.env.InstallRoot(tool)
	return Launcher{
		Name:     sc.Name,
		Target:   filepath.Join(root, filepath.FromSlash(sc.Exe)),
		WorkDir:  root,
		Terminal: terminal,
	}, true
}

// Shortcuts creates launchers for every installed tool that has one.
// Failures are logged and never returned.
func (r *Registrar) Shortcuts(ctx context.Context, tools []config.Tool) {
	if r.env.ShortcutDir == "" {
		logger.Debug("[DEBUG] Shortcuts disabled\n")
		return
	}
	for _, tool := range tools {
		// Only curated tools that are actually present get a launcher.
		l, ok := r.LauncherFor(tool)
		if !ok || !r.env.IsInstalled(tool) {
			continue
		}
		// A shortcut failure is cosmetic and never fails the run.
		if err := r.writer.Write(ctx, l); err != nil {
			logger.Warn("[WARN] Could not create shortcut %q: %v\n", l.Name, err)
			continue
		}
		logger.Info("[INFO] Created shortcut %q\n", l.Name)
	}
}

// NewShortcutWriter returns the writer for the running platform: .lnk files
// through PowerShell on Windows, freedesktop entries elsewhere.
func NewShortcutWriter(dir string, runner installer.Runner) ShortcutWriter {
	if runtime.GOOS == "windows" {
		if runner == nil {
			runner = installer.ExecRunner{}
		}
		return &LnkWriter{Dir: dir, Runner: runner}
	}
	return &DesktopWriter{Dir: dir}
}

// LnkWriter creates Windows shortcuts with the WScript.Shell COM object.
type LnkWriter struct {
	Dir    string
	Runner installer.Runner
}

func (w *LnkWriter) Write(ctx context.Context, l Launcher) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(w.Dir, l.Name+".lnk")
	script := fmt.Sprintf(
		"$s = (New-Object -ComObject WScript.Shell).CreateShortcut(%s); $s.TargetPath = %s; $s.WorkingDirectory = %s; $s.Save()",
		psQuote(path), psQuote(l.Target), psQuote(l.WorkDir))
	return w.Runner.Run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
}

// psQuote renders s as a single-quoted PowerShell literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// DesktopWriter creates freedesktop .desktop entries.
type DesktopWriter struct {
	Dir string
}

func (w *DesktopWriter) Write(_ context.Context, l Launcher) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", l.Name)
	fmt.Fprintf(&b, "Exec=\"%s\"\n", l.Target)
	fmt.Fprintf(&b, "Path=%s\n", l.WorkDir)
	fmt.Fprintf(&b, "Terminal=%t\n", l.Terminal)

	path := filepath.Join(w.Dir, desktopFileName(l.Name))
	return os.WriteFile(path, []byte(b.String()), 0755)
}

func desktopFileName(name string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(name), "-"))
	return "devenv-" + slug + ".desktop"
}
