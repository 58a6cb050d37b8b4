package setup

import (
	"errors"

	"devenv/internal/config"
	"devenv/internal/errs"
	"devenv/internal/logger"
	"devenv/internal/registrar"
)

// ToolStatus describes one manifest tool on this machine.
type ToolStatus struct {
	Name      string
	Version   string
	Kind      config.InstallKind
	Dir       string
	Installed bool
	OnPath    bool
	Cached    bool
}

// Status reports, for every manifest tool, whether its marker is present and
// whether its directories are on the persistent search path. It never
// touches the network: Cached only says a slot exists, not that it verifies.
func (o *Orchestrator) Status(m *config.Manifest) []ToolStatus {
	out := make([]ToolStatus, 0, len(m.Tools))
	for _, t := range m.Tools {
		_, err := o.cache.Lookup(t.Name, t.URL)
		out = append(out, ToolStatus{
			Name:      t.Name,
			Version:   t.Version,
			Kind:      t.Kind,
			Dir:       o.env.InstallRoot(t),
			Installed: o.env.IsInstalled(t),
			OnPath:    o.registrar.Registered(t),
			Cached:    err == nil,
		})
	}
	return out
}

// Clean removes every installed manifest tool, the download cache and the
// tools' search-path entries. Removal failures are collected; an implausible
// search-path rewrite is skipped with a warning.
func (o *Orchestrator) Clean(m *config.Manifest) error {
	var failures []error
	// Remove tool trees first; one failure does not stop the others.
	for _, t := range m.Tools {
		if _, err := o.installer.Remove(t); err != nil {
			failures = append(failures, err)
		}
	}

	logger.Info("[INFO] Removing download cache %s\n", o.cache.Dir())
	if err := o.cache.Clean(); err != nil {
		logger.Error("[ERROR] Failed to remove cache: %v\n", err)
		failures = append(failures, errs.New(errs.KindEnvironment, "", "clean cache", err))
	}

	// Drop our search-path entries last, after the trees are gone.
	changed, err := o.registrar.Unregister(m.Tools)
	switch {
	case errors.Is(err, registrar.ErrImplausiblePath):
		logger.Warn("[WARN] The resulting PATH looks too short. Leaving it unchanged.\n")
	case err != nil:
		failures = append(failures, err)
	case changed:
		logger.Warn("[WARN] Restart your terminals to pick up the new PATH.\n")
	default:
		logger.Info("[INFO] The search path was already clean.\n")
	}

	if len(failures) == 0 {
		return nil
	}
	if len(failures) == 1 {
		return failures[0]
	}
	return errs.New(errs.KindEnvironment, "", "clean", errors.Join(failures...))
}
