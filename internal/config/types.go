package config

import (
	"fmt"
	"strings"
)

// InstallKind selects the installation procedure for a tool.
// It is decided once when the manifest is loaded.
type InstallKind int

const (
	// KindUnset means the manifest entry did not name a kind; it is inferred at load time.
	KindUnset InstallKind = iota
	// GenericArchive is a plain archive unpacked into <base>/<name>.
	GenericArchive
	// SelfExtracting is an executable archive invoked with silent/overwrite flags.
	SelfExtracting
	// BootstrapInstaller is a toolchain installer that manages its own location.
	BootstrapInstaller
	// PortableEditor is a GenericArchive forced into portable mode with a data/ folder.
	PortableEditor
)

var kindNames = map[InstallKind]string{
	GenericArchive:     "archive",
	SelfExtracting:     "self-extracting",
	BootstrapInstaller: "bootstrap",
	PortableEditor:     "portable-editor",
}

func (k InstallKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unset"
}

// MarshalText writes the manifest spelling of the kind.
func (k InstallKind) MarshalText() ([]byte, error) {
	if k == KindUnset {
		return []byte{}, nil
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses the manifest spelling of the kind.
func (k *InstallKind) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	if s == "" {
		*k = KindUnset
		return nil
	}
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown install kind %q", s)
}

// InferKind maps the historic tool names to their procedures.
func InferKind(name string) InstallKind {
	switch name {
	case "rustup":
		return BootstrapInstaller
	case "git":
		return SelfExtracting
	case "vscodium":
		return PortableEditor
	default:
		return GenericArchive
	}
}

// Shortcut describes a desktop/start-menu launcher for a tool.
// - Name: label of the launcher.
// - Exe: executable path relative to the tool's install root.
type Shortcut struct {
	Name string `yaml:"name" json:"name"`
	Exe  string `yaml:"exe" json:"exe"`
}

// Tool represents an installable tool entry of the manifest.
// - Name: unique key, also the cache slot and target directory name.
// - Version: display only.
// - URL: download location of the artifact.
// - CheckFile: marker path inside the installed tree proving a successful install.
// - SHA256: optional lowercase hex digest of the artifact; empty skips verification.
// - Kind: install procedure, inferred from Name when absent.
// - PathDirs: executable directories relative to the install root, derived when absent.
// - Shortcut: optional launcher, derived for a curated subset when absent.
type Tool struct {
	Name      string      `yaml:"name" json:"name"`
	Version   string      `yaml:"version" json:"version"`
	URL       string      `yaml:"url" json:"url"`
	CheckFile string      `yaml:"check_file" json:"check_file"`
	SHA256    string      `yaml:"sha256,omitempty" json:"sha256,omitempty"`
	Kind      InstallKind `yaml:"kind,omitempty" json:"kind,omitempty"`
	PathDirs  []string    `yaml:"path_dirs,omitempty" json:"path_dirs,omitempty"`
	Shortcut  *Shortcut   `yaml:"shortcut,omitempty" json:"shortcut,omitempty"`
}

// Manifest is the declarative catalog of installable tools.
type Manifest struct {
	Tools []Tool `yaml:"tools" json:"tools"`
}

// Lookup returns the tool with the given name.
func (m *Manifest) Lookup(name string) (Tool, bool) {
	for _, t := range m.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Upsert replaces the tool with the same name or appends it.
func (m *Manifest) Upsert(t Tool) {
	for i := range m.Tools {
		if m.Tools[i].Name == t.Name {
			m.Tools[i] = t
			return
		}
	}
	m.Tools = append(m.Tools, t)
}

// Names lists tool names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Tools))
	for _, t := range m.Tools {
		names = append(names, t.Name)
	}
	return names
}

// Select returns the named tools in manifest order.
// An unknown name is an error.
func (m *Manifest) Select(names []string) ([]Tool, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := m.Lookup(n); !ok {
			return nil, fmt.Errorf("tool %q is not in the manifest", n)
		}
		want[n] = true
	}
	selected := make([]Tool, 0, len(want))
	for _, t := range m.Tools {
		if want[t.Name] {
			selected = append(selected, t)
		}
	}
	return selected, nil
}

// Bootstrap holds the arguments passed to toolchain bootstrap installers.
type Bootstrap struct {
	Host      string `yaml:"host"`
	Toolchain string `yaml:"toolchain"`
}

// Settings is the optional devenv.yaml configuration.
// Empty values fall back to platform defaults resolved by the env package.
type Settings struct {
	TargetBase  string    `yaml:"target_base"`
	CacheDir    string    `yaml:"cache_dir"`
	Manifest    string    `yaml:"manifest"`
	ManifestURL string    `yaml:"manifest_url"` // remote manifest, consulted only when set
	Shortcuts   *bool     `yaml:"shortcuts"`
	Bootstrap   Bootstrap `yaml:"bootstrap"`
}

// ShortcutsEnabled reports whether launchers should be created (default true).
func (s Settings) ShortcutsEnabled() bool {
	return s.Shortcuts == nil || *s.Shortcuts
}
