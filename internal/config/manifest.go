package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"devenv/internal/errs"
	"devenv/internal/logger"
)

// LocalManifestFile is the manifest override looked up in the working directory.
const LocalManifestFile = "tools.json"

// DefaultManifest returns the compiled-in tool catalog.
func DefaultManifest() *Manifest {
	m := &Manifest{Tools: []Tool{
		{
			Name:      "node",
			Version:   "22.12.0",
			URL:       "https://nodejs.org/dist/v22.12.0/node-v22.12.0-win-x64.zip",
			CheckFile: "node.exe",
		},
		{
			Name:      "mingw64",
			Version:   "14.2.0",
			URL:       "https://github.com/brechtsanders/winlibs_mingw/releases/download/14.2.0posix-19.1.1-12.0.0-ucrt-r2/winlibs-x86_64-posix-seh-gcc-14.2.0-llvm-19.1.1-mingw-w64ucrt-12.0.0-r2.zip",
			CheckFile: "bin/gcc.exe",
		},
		{
			Name:      "pwsh",
			Version:   "7.4.6",
			URL:       "https://github.com/PowerShell/PowerShell/releases/download/v7.4.6/PowerShell-7.4.6-win-x64.zip",
			CheckFile: "pwsh.exe",
		},
		{
			Name:      "git",
			Version:   "2.47.1",
			URL:       "https://github.com/git-for-windows/git/releases/download/v2.47.1.windows.1/PortableGit-2.47.1-64-bit.7z.exe",
			CheckFile: "cmd/git.exe",
		},
		{
			Name:      "vscodium",
			Version:   "1.96.2",
			URL:       "https://github.com/VSCodium/vscodium/releases/download/1.96.2.24355/VSCodium-win32-x64-1.96.2.24355.zip",
			CheckFile: "VSCodium.exe",
		},
		{
			Name:      "rustup",
			Version:   "1.27.1",
			URL:       "https://static.rust-lang.org/rustup/archive/1.27.1/x86_64-pc-windows-msvc/rustup-init.exe",
			CheckFile: ".cargo/bin/rustup.exe",
		},
	}}
	// The compiled-in catalog is known to be well formed.
	_ = m.validate()
	return m
}

// ParseManifest decodes a manifest document. JSON is accepted as a YAML subset.
// Unknown fields are ignored and a missing sha256 only disables verification.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errs.New(errs.KindConfiguration, "", "parse manifest", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// validate enforces required fields and name uniqueness and settles each tool's kind.
func (m *Manifest) validate() error {
	seen := make(map[string]bool, len(m.Tools))
	for i := range m.Tools {
		t := &m.Tools[i]
		t.Name = strings.TrimSpace(t.Name)
		switch {
		case t.Name == "":
			return errs.Newf(errs.KindConfiguration, "", "validate manifest", "entry %d has no name", i)
		case !isPathComponent(t.Name):
			// Names become directory and cache file names under the target base.
			return errs.Newf(errs.KindConfiguration, t.Name, "validate manifest", "name must be a single path component")
		case t.URL == "":
			return errs.Newf(errs.KindConfiguration, t.Name, "validate manifest", "missing url")
		case t.CheckFile == "":
			return errs.Newf(errs.KindConfiguration, t.Name, "validate manifest", "missing check_file")
		case seen[t.Name]:
			return errs.Newf(errs.KindConfiguration, t.Name, "validate manifest", "duplicate tool name")
		}
		seen[t.Name] = true
		t.SHA256 = strings.ToLower(strings.TrimSpace(t.SHA256))
		if t.Kind == KindUnset {
			t.Kind = InferKind(t.Name)
		}
	}
	return nil
}

// isPathComponent reports whether name can be joined under a directory
// without escaping it or naming the directory itself.
func isPathComponent(name string) bool {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\:`) {
		return false
	}
	return filepath.IsLocal(name)
}

// LoadManifest reads a manifest file from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.KindConfiguration, "", "read manifest", err)
	}
	return ParseManifest(data)
}

// LoadManifestURL fetches a published manifest.
func LoadManifestURL(ctx context.Context, client *http.Client, url string) (*Manifest, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.New(errs.KindConfiguration, "", "build manifest request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errs.New(errs.KindNetwork, "", "fetch manifest", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close HTTP response body: %v\n", cerr)
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.Newf(errs.KindNetwork, "", "fetch manifest", "HTTP status %d from %s", resp.StatusCode, url)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.KindNetwork, "", "read manifest body", err)
	}
	return ParseManifest(data)
}

// ResolveManifest picks the manifest for a run.
// Order: explicit path, settings path, ./tools.json, settings URL, compiled-in defaults.
// Explicitly named files must load; the implicit sources fall back to the defaults.
func ResolveManifest(ctx context.Context, client *http.Client, explicit string, st Settings) (*Manifest, error) {
	for _, path := range []string{explicit, st.Manifest} {
		if path == "" {
			continue
		}
		logger.Debug("[DEBUG] Loading manifest from %s\n", path)
		return LoadManifest(path)
	}

	if _, err := os.Stat(LocalManifestFile); err == nil {
		m, err := LoadManifest(LocalManifestFile)
		if err == nil {
			logger.Info("[INFO] Using local manifest %s (%d tools)\n", LocalManifestFile, len(m.Tools))
			return m, nil
		}
		logger.Warn("[WARN] Could not read %s: %v. Using built-in defaults.\n", LocalManifestFile, err)
		return DefaultManifest(), nil
	}

	if st.ManifestURL != "" {
		m, err := LoadManifestURL(ctx, client, st.ManifestURL)
		if err == nil {
			logger.Info("[INFO] Using remote manifest %s (%d tools)\n", st.ManifestURL, len(m.Tools))
			return m, nil
		}
		logger.Warn("[WARN] Remote manifest unavailable (%v). Using built-in defaults.\n", err)
	}
	return DefaultManifest(), nil
}

// SaveManifest writes the manifest back to disk, as indented JSON for .json
// paths and YAML otherwise.
func SaveManifest(path string, m *Manifest) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(m, "", "  ")
	} else {
		data, err = yaml.Marshal(m)
	}
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	logger.Debug("[DEBUG] Writing manifest to %s:\n%s\n", path, string(data))

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errs.New(errs.KindConfiguration, "", "write manifest", err)
	}
	return nil
}
