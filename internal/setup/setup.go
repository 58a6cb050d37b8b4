// Package setup drives the provisioning pipeline: for each selected tool it
// resolves a verified artifact, installs it, and finally registers every
// installed tool on the user's search path.
package setup

import (
	"context"

	"devenv/internal/cache"
	"devenv/internal/config"
	"devenv/internal/env"
	"devenv/internal/errs"
	"devenv/internal/installer"
	"devenv/internal/logger"
	"devenv/internal/registrar"
)

// Orchestrator wires the pipeline components around one Environment.
type Orchestrator struct {
	env       *env.Environment
	cache     *cache.Cache
	installer *installer.Installer
	registrar *registrar.Registrar
}

// New builds an orchestrator from its components.
func New(e *env.Environment, c *cache.Cache, inst *installer.Installer, reg *registrar.Registrar) *Orchestrator {
	return &Orchestrator{env: e, cache: c, installer: inst, registrar: reg}
}

// NewDefault builds an orchestrator with production components.
func NewDefault(e *env.Environment, opts ...cache.Option) *Orchestrator {
	return New(e,
		cache.New(e.CacheDir, opts...),
		installer.New(e, nil),
		registrar.New(e, nil),
	)
}

// Env returns the orchestrator's environment.
func (o *Orchestrator) Env() *env.Environment { return o.env }

// Run installs the selected tools in manifest order. Per-tool failures are
// recorded in the report and do not stop the run; environment,
// configuration and cancellation errors abort it and are returned.
// The context is only consulted between tools.
func (o *Orchestrator) Run(ctx context.Context, m *config.Manifest, selected []string) (*Report, error) {
	report := &Report{}
	// Nothing selected means nothing to do, including no network access.
	if len(selected) == 0 {
		return report, nil
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
			return report, errs.New(errs.KindCancelled, "", "setup", err)
		}

		// Per-tool failures stay in the report; only fatal kinds stop the loop.
		res := o.installOne(ctx, tool)
		report.add(res)
		if res.Err != nil && errs.IsFatal(res.Err) {
			return report, res.Err
		}
	}

	// Register once, after the loop, and only when something new landed.
	if report.Count(Installed) == 0 {
		logger.Debug("[DEBUG] Nothing newly installed, leaving the search path alone\n")
		return report, nil
	}
	changed, err := o.registerInstalled(ctx, m)
	report.Registered = changed
	return report, err
}

func (o *Orchestrator) installOne(ctx context.Context, tool config.Tool) Result {
	res := Result{Tool: tool.Name, State: NotStarted}
	// The marker file is the only proof of a previous install.
	if o.env.IsInstalled(tool) {
		logger.Info("[INFO] %s is already installed. Skipping.\n", tool.Name)
		res.State = AlreadyInstalled
		return res
	}

	logger.Step("==> %s %s\n", tool.Name, tool.Version)
	// Fetch or reuse the verified artifact.
	res.State = CacheResolving
	artifact, err := o.cache.Resolve(ctx, tool.Name, tool.URL, tool.SHA256)
	if err != nil {
		return fail(res, tool, err)
	}

	// Install it with the procedure for its kind.
	res.State = Installing
	if err := o.installer.Install(ctx, tool, artifact); err != nil {
		return fail(res, tool, err)
	}
	// A target directory left by an older, unstaged install satisfies the
	// installer's probe without holding the marker.
	if !o.env.IsInstalled(tool) {
		return fail(res, tool, errs.Newf(errs.KindArchive, tool.Name, "verify install",
			"%s exists but %s is missing; run clean and retry", o.env.ToolDir(tool.Name), tool.CheckFile))
	}

	res.State = Installed
	return res
}

func fail(res Result, tool config.Tool, err error) Result {
	err = errs.WithTool(err, tool.Name)
	logger.Error("[ERROR] %s failed while %s: %v\n", tool.Name, res.State, err)
	res.Stage = res.State
	res.State = Failed
	res.Err = err
	return res
}

// registerInstalled registers every manifest tool whose marker is present,
// then creates their shortcuts.
func (o *Orchestrator) registerInstalled(ctx context.Context, m *config.Manifest) (bool, error) {
	installed := o.installedTools(m)
	changed, err := o.registrar.Register(installed)
	if err != nil {
		logger.Error("[ERROR] Failed to update the search path: %v\n", err)
		return false, err
	}
	if changed {
		logger.Warn("[WARN] Restart your terminals to pick up the new PATH.\n")
	}
	o.registrar.Shortcuts(ctx, installed)
	return changed, nil
}

func (o *Orchestrator) installedTools(m *config.Manifest) []config.Tool {
	var out []config.Tool
	for _, t := range m.Tools {
		if o.env.IsInstalled(t) {
			out = append(out, t)
		}
	}
	return out
}
