//go:build windows

package env

import (
	"errors"

	"golang.org/x/sys/windows/registry"

	"devenv/internal/errs"
)

// RegistryStore is the Windows user PATH in HKCU\Environment.
type RegistryStore struct {
	Key   string
	Value string
}

// NewUserPathStore returns the HKCU\Environment\Path store.
func NewUserPathStore() (PathStore, error) {
	return &RegistryStore{Key: `Environment`, Value: "Path"}, nil
}

// Get returns the user Path value; an absent value reads as empty.
func (s *RegistryStore) Get() (string, error) {
	key, err := registry.OpenKey(registry.CURRENT_USER, s.Key, registry.QUERY_VALUE)
	if err != nil {
		return "", errs.New(errs.KindEnvironment, "", "open registry key", err)
	}
	defer key.Close()

	value, _, err := key.GetStringValue(s.Value)
	if errors.Is(err, registry.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errs.New(errs.KindEnvironment, "", "read registry Path", err)
	}
	return value, nil
}

// Set writes the user Path value as REG_EXPAND_SZ so %VAR% entries keep expanding.
func (s *RegistryStore) Set(value string) error {
	key, err := registry.OpenKey(registry.CURRENT_USER, s.Key, registry.SET_VALUE)
	if err != nil {
		return errs.New(errs.KindEnvironment, "", "open registry key", err)
	}
	defer key.Close()

	if err := key.SetExpandStringValue(s.Value, value); err != nil {
		return errs.New(errs.KindEnvironment, "", "write registry Path", err)
	}
	return nil
}
