//go:build !windows

package env

import (
	"os"
	"path/filepath"

	"devenv/internal/errs"
)

// NewUserPathStore returns a file store under the user config directory.
func NewUserPathStore() (PathStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, errs.New(errs.KindEnvironment, "", "resolve config directory", err)
	}
	return NewFileStore(filepath.Join(dir, AppName, "path")), nil
}
