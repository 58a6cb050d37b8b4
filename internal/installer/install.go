package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"devenv/internal/config"
	"devenv/internal/env"
	"devenv/internal/errs"
	"devenv/internal/logger"
)

// Installer runs the install procedure selected by each tool's kind.
type Installer struct {
	env    *env.Environment
	runner Runner
}

// New returns an installer for the given environment. A nil runner uses ExecRunner.
func New(e *env.Environment, runner Runner) *Installer {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Installer{env: e, runner: runner}
}

// Installed reports whether Install would be a no-op for tool.
// Directory kinds are probed by the presence of <base>/<name>; bootstrap
// installers own their location, so their marker file is the probe.
func (i *Installer) Installed(tool config.Tool) bool {
	if tool.Kind == config.BootstrapInstaller {
		return i.env.IsInstalled(tool)
	}
	return dirExists(i.env.ToolDir(tool.Name))
}

// Install installs tool from the artifact at artifactPath. It is idempotent:
// an already installed tool returns nil without touching the filesystem.
func (i *Installer) Install(ctx context.Context, tool config.Tool, artifactPath string) error {
	if i.Installed(tool) {
		logger.Info("[INFO] %s is already installed. Skipping.\n", tool.Name)
		return nil
	}
	logger.Debug("[DEBUG] Installing %s (%s) from %s\n", tool.Name, tool.Kind, artifactPath)

	var err error
	switch tool.Kind {
	case config.GenericArchive:
		err = i.installArchive(tool, artifactPath, false)
	case config.PortableEditor:
		err = i.installArchive(tool, artifactPath, true)
	case config.SelfExtracting:
		err = i.installSelfExtracting(ctx, tool, artifactPath)
	case config.BootstrapInstaller:
		err = i.installBootstrap(ctx, tool, artifactPath)
	default:
		err = errs.Newf(errs.KindConfiguration, tool.Name, "install", "unsupported install kind %s", tool.Kind)
	}
	if err != nil {
		return errs.WithTool(err, tool.Name)
	}

	logger.Info("[INFO] Installed %s@%s\n", tool.Name, tool.Version)
	return nil
}

// InstallFromDir copies an already unpacked tool tree into place.
func (i *Installer) InstallFromDir(tool config.Tool, srcDir string) error {
	if tool.Kind == config.BootstrapInstaller {
		return errs.Newf(errs.KindConfiguration, tool.Name, "import", "bootstrap installers cannot be imported from a folder")
	}
	if i.Installed(tool) {
		return nil
	}
	return i.stageAndCommit(tool, errs.KindArchive, func(staging string) error {
		n, err := copyTree(srcDir, staging)
		if err != nil {
			return errs.New(errs.KindArchive, tool.Name, "copy "+srcDir, err)
		}
		logger.Debug("[DEBUG] Copied %d files from %s\n", n, srcDir)
		return i.portableMode(tool, staging)
	})
}

// installArchive extracts into a scratch directory, normalizes a single
// wrapper folder, and copies the payload into place.
func (i *Installer) installArchive(tool config.Tool, artifactPath string, portable bool) error {
	scratch := filepath.Join(i.env.TempDir, fmt.Sprintf("devenv-extract-%s-%s", tool.Name, uuid.NewString()))
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Debug("[DEBUG] Failed to remove scratch directory %s: %v\n", scratch, err)
		}
	}()

	logger.Step("==> Extracting %s\n", filepath.Base(artifactPath))
	if err := Extract(artifactPath, scratch); err != nil {
		return err
	}
	root, err := PayloadRoot(scratch)
	if err != nil {
		return errs.New(errs.KindArchive, tool.Name, "inspect extracted tree", err)
	}

	return i.stageAndCommit(tool, errs.KindArchive, func(staging string) error {
		n, err := copyTree(root, staging)
		if err != nil {
			return errs.New(errs.KindArchive, tool.Name, "copy extracted tree", err)
		}
		logger.Debug("[DEBUG] Copied %d files into %s\n", n, staging)
		if portable {
			return i.portableMode(tool, staging)
		}
		return nil
	})
}

// portableMode creates the data/ folder that keeps an editor from writing
// to the user's profile.
func (i *Installer) portableMode(tool config.Tool, staging string) error {
	if tool.Kind != config.PortableEditor {
		return nil
	}
	logger.Step("==> Making %s portable\n", tool.Name)
	if err := os.MkdirAll(filepath.Join(staging, "data"), 0755); err != nil {
		return errs.New(errs.KindArchive, tool.Name, "create portable data directory", err)
	}
	return nil
}

// installSelfExtracting runs a self-extracting archive with silent and
// overwrite flags pointed at the staging directory.
func (i *Installer) installSelfExtracting(ctx context.Context, tool config.Tool, artifactPath string) error {
	return i.stageAndCommit(tool, errs.KindSubprocess, func(staging string) error {
		logger.Step("==> Unpacking %s\n", filepath.Base(artifactPath))
		if err := i.run(ctx, artifactPath, "-y", "-o"+staging); err != nil {
			return errs.New(errs.KindSubprocess, tool.Name, "self-extract", err)
		}
		return nil
	})
}

// installBootstrap runs a toolchain installer that manages its own location.
// PATH changes are disabled here; the registrar owns the search path.
func (i *Installer) installBootstrap(ctx context.Context, tool config.Tool, artifactPath string) error {
	host := i.env.Bootstrap.Host
	if host == "" {
		host = config.DefaultBootstrapHost
	}
	toolchain := i.env.Bootstrap.Toolchain
	if toolchain == "" {
		toolchain = config.DefaultBootstrapToolchain
	}

	logger.Step("==> Running %s installer\n", tool.Name)
	err := i.run(ctx, artifactPath,
		"-y",
		"--default-host", host,
		"--default-toolchain", toolchain,
		"--no-modify-path",
	)
	if err != nil {
		return errs.New(errs.KindSubprocess, tool.Name, "bootstrap installer", err)
	}
	if !i.env.IsInstalled(tool) {
		return errs.Newf(errs.KindSubprocess, tool.Name, "bootstrap installer",
			"installer finished but %s is missing", i.env.MarkerPath(tool))
	}
	return nil
}

func (i *Installer) run(ctx context.Context, artifactPath string, args ...string) error {
	// Cached artifacts are written without the executable bit.
	if err := os.Chmod(artifactPath, 0755); err != nil {
		logger.Debug("[DEBUG] chmod %s: %v\n", artifactPath, err)
	}
	return i.runner.Run(ctx, artifactPath, args...)
}

// stageAndCommit assembles the tool in a hidden staging directory next to
// its target, checks the marker file, and renames the staging directory into
// place. The target never exists in a half-built state.
func (i *Installer) stageAndCommit(tool config.Tool, kind errs.Kind, build func(staging string) error) error {
	// An unusable target base affects every tool, so it aborts the run.
	if err := os.MkdirAll(i.env.TargetBase, 0755); err != nil {
		return errs.New(errs.KindEnvironment, tool.Name, "create target base", err)
	}
	i.sweepPartials(tool)

	// Build into a hidden sibling so the rename below stays on one volume.
	staging := filepath.Join(i.env.TargetBase, fmt.Sprintf(".%s.partial-%s", tool.Name, uuid.NewString()))
	if err := os.MkdirAll(staging, 0755); err != nil {
		return errs.New(errs.KindArchive, tool.Name, "create staging directory", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	if err := build(staging); err != nil {
		return err
	}

	// Verify the marker before anything becomes visible at the target.
	marker := filepath.Join(staging, filepath.FromSlash(tool.CheckFile))
	if !fileExists(marker) {
		return errs.Newf(kind, tool.Name, "verify install", "marker file %s not found", tool.CheckFile)
	}

	// Commit. A stray file or directory at the target only fails this tool.
	target := i.env.ToolDir(tool.Name)
	if err := os.Rename(staging, target); err != nil {
		return errs.New(errs.KindArchive, tool.Name, "move into place", err)
	}
	committed = true
	logger.Debug("[DEBUG] %s committed to %s\n", tool.Name, target)
	return nil
}

// sweepPartials removes staging directories left by interrupted runs.
func (i *Installer) sweepPartials(tool config.Tool) {
	matches, err := filepath.Glob(filepath.Join(i.env.TargetBase, "."+tool.Name+".partial-*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		logger.Debug("[DEBUG] Removing leftover staging directory %s\n", m)
		_ = os.RemoveAll(m)
	}
}
