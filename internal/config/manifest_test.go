package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devenv/internal/errs"
)

func TestParseManifestJSON(t *testing.T) {
	data := []byte(`
{
	"tools": [
		{
			"name": "test_tool",
			"version": "1.0",
			"url": "http://example.com/tool.zip",
			"check_file": "bin/tool.exe",
			"homepage": "ignored for forward compatibility"
		}
	]
}`)

	m, err := ParseManifest(data)
	require.NoError(t, err)
	require.Len(t, m.Tools, 1)

	tool := m.Tools[0]
	assert.Equal(t, "test_tool", tool.Name)
	assert.Equal(t, "bin/tool.exe", tool.CheckFile)
	assert.Empty(t, tool.SHA256, "missing sha256 means verification skipped")
	assert.Equal(t, GenericArchive, tool.Kind)
}

func TestParseManifestKinds(t *testing.T) {
	data := []byte(`
tools:
  - name: rustup
    url: http://example.com/rustup-init.exe
    check_file: .cargo/bin/rustup.exe
  - name: git
    url: http://example.com/git.7z.exe
    check_file: cmd/git.exe
  - name: vscodium
    url: http://example.com/codium.zip
    check_file: VSCodium.exe
  - name: mytool
    url: http://example.com/mytool.exe
    check_file: mytool.exe
    kind: self-extracting
    sha256: ABCDEF
`)

	m, err := ParseManifest(data)
	require.NoError(t, err)

	want := map[string]InstallKind{
		"rustup":   BootstrapInstaller,
		"git":      SelfExtracting,
		"vscodium": PortableEditor,
		"mytool":   SelfExtracting,
	}
	for name, kind := range want {
		tool, ok := m.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, kind, tool.Kind, name)
	}
	tool, _ := m.Lookup("mytool")
	assert.Equal(t, "abcdef", tool.SHA256)
}

func TestParseManifestRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "duplicate_name",
			data: `{"tools":[{"name":"a","url":"u","check_file":"c"},{"name":"a","url":"u2","check_file":"c"}]}`,
		},
		{
			name: "missing_url",
			data: `{"tools":[{"name":"a","check_file":"c"}]}`,
		},
		{
			name: "missing_check_file",
			data: `{"tools":[{"name":"a","url":"u"}]}`,
		},
		{
			name: "unknown_kind",
			data: `{"tools":[{"name":"a","url":"u","check_file":"c","kind":"msi"}]}`,
		},
		{
			name: "malformed",
			data: `{"tools": [`,
		},
		{
			name: "name_dot",
			data: `{"tools":[{"name":".","url":"u","check_file":"c"}]}`,
		},
		{
			name: "name_dotdot",
			data: `{"tools":[{"name":"..","url":"u","check_file":"c"}]}`,
		},
		{
			name: "name_nested",
			data: `{"tools":[{"name":"a/b","url":"u","check_file":"c"}]}`,
		},
		{
			name: "name_escapes_parent",
			data: `{"tools":[{"name":"../x","url":"u","check_file":"c"}]}`,
		},
		{
			name: "name_backslash",
			data: `{"tools":[{"name":"a\\\\b","url":"u","check_file":"c"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindConfiguration), "got %v", err)
		})
	}
}

func TestSelectKeepsManifestOrder(t *testing.T) {
	m := DefaultManifest()

	tools, err := m.Select([]string{"pwsh", "node"})
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "node", tools[0].Name)
	assert.Equal(t, "pwsh", tools[1].Name)

	_, err = m.Select([]string{"nope"})
	assert.Error(t, err)

	none, err := m.Select(nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsert(t *testing.T) {
	m := DefaultManifest()
	n := len(m.Tools)

	node, ok := m.Lookup("node")
	require.True(t, ok)
	node.Version = "99.0.0"
	m.Upsert(node)
	assert.Len(t, m.Tools, n)
	updated, _ := m.Lookup("node")
	assert.Equal(t, "99.0.0", updated.Version)
	assert.Equal(t, "node", m.Tools[0].Name)

	m.Upsert(Tool{Name: "zig", URL: "https://example.com/zig.zip", CheckFile: "zig.exe"})
	assert.Len(t, m.Tools, n+1)
	assert.Equal(t, "zig", m.Tools[n].Name)
}

func TestSaveManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := DefaultManifest()
	m.Tools[0].SHA256 = "0123abcd"

	for _, name := range []string{"tools.json", "tools.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveManifest(path, m))

		loaded, err := LoadManifest(path)
		require.NoError(t, err, name)
		assert.Equal(t, m.Tools, loaded.Tools, name)
	}
}

func TestLoadManifestURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tools.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"tools":[{"name":"x","version":"1","url":"http://host/x.zip","check_file":"x.exe"}]}`))
	}))
	defer server.Close()

	m, err := LoadManifestURL(context.Background(), server.Client(), server.URL+"/tools.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, m.Names())

	_, err = LoadManifestURL(context.Background(), server.Client(), server.URL+"/missing.json")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNetwork))
}

func TestResolveManifestFallsBackToDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	// Run from an empty directory so no tools.json is picked up.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer func() { _ = os.Chdir(wd) }()

	m, err := ResolveManifest(context.Background(), server.Client(), "", Settings{ManifestURL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, DefaultManifest().Names(), m.Names())

	_, err = ResolveManifest(context.Background(), server.Client(), "does-not-exist.json", Settings{})
	assert.True(t, errs.Is(err, errs.KindConfiguration))
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()

	st, err := LoadSettings(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, st.ManifestURL, "remote manifest is opt-in")
	assert.Equal(t, DefaultBootstrapHost, st.Bootstrap.Host)
	assert.True(t, st.ShortcutsEnabled())

	path := filepath.Join(dir, "devenv.yaml")
	content := `
target_base: /opt/devenv
cache_dir: /tmp/devenv-cache
shortcuts: false
bootstrap:
  host: x86_64-unknown-linux-gnu
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	st, err = LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/devenv", st.TargetBase)
	assert.Equal(t, "/tmp/devenv-cache", st.CacheDir)
	assert.False(t, st.ShortcutsEnabled())
	assert.Equal(t, "x86_64-unknown-linux-gnu", st.Bootstrap.Host)
	assert.Equal(t, DefaultBootstrapToolchain, st.Bootstrap.Toolchain)

	require.NoError(t, os.WriteFile(path, []byte("target_base: [unterminated"), 0644))
	_, err = LoadSettings(path)
	assert.True(t, errs.Is(err, errs.KindConfiguration))
}
