package env

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"devenv/internal/errs"
)

// PathStore reads and writes the user's persistent search path as a single
// delimited string.
type PathStore interface {
	Get() (string, error)
	Set(value string) error
}

// FileStore keeps the persistent search path in a single-line file.
// It backs the store on platforms without a user environment registry.
type FileStore struct {
	Path string
}

// NewFileStore returns a store rooted at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Get returns the stored value; a missing file reads as empty.
func (s *FileStore) Get() (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errs.New(errs.KindEnvironment, "", "read search path", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// Set replaces the stored value.
func (s *FileStore) Set(value string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return errs.New(errs.KindEnvironment, "", "create search path store", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value+"\n"), 0644); err != nil {
		return errs.New(errs.KindEnvironment, "", "write search path", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		_ = os.Remove(tmp)
		return errs.New(errs.KindEnvironment, "", "write search path", err)
	}
	return nil
}
