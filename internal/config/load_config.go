package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"devenv/internal/errs"
	"devenv/internal/logger"
)

const (
	// DefaultSettingsFile is looked up in the working directory when --config is not given.
	DefaultSettingsFile = "devenv.yaml"
	// DefaultBootstrapHost is the host triple handed to toolchain bootstrap installers.
	DefaultBootstrapHost = "x86_64-pc-windows-gnu"
	// DefaultBootstrapToolchain is the toolchain handed to toolchain bootstrap installers.
	DefaultBootstrapToolchain = "stable"
)

// LoadSettings reads the optional settings file.
// A missing file yields defaults; an unreadable or malformed one is a configuration error.
func LoadSettings(path string) (Settings, error) {
	var st Settings

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("[DEBUG] No settings file at %s, using defaults\n", path)
		st.applyDefaults()
		return st, nil
	}
	if err != nil {
		return st, errs.New(errs.KindConfiguration, "", "read settings", err)
	}
	if err := yaml.Unmarshal(raw, &st); err != nil {
		return st, errs.New(errs.KindConfiguration, "", "parse settings "+path, err)
	}
	st.applyDefaults()
	logger.Debug("[DEBUG] Loaded settings from %s: %+v\n", path, st)
	return st, nil
}

func (s *Settings) applyDefaults() {
	if s.Bootstrap.Host == "" {
		s.Bootstrap.Host = DefaultBootstrapHost
	}
	if s.Bootstrap.Toolchain == "" {
		s.Bootstrap.Toolchain = DefaultBootstrapToolchain
	}
}
