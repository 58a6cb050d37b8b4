package setup

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devenv/internal/cache"
	"devenv/internal/config"
	"devenv/internal/env"
	"devenv/internal/errs"
	"devenv/internal/installer"
	"devenv/internal/registrar"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func digest(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

type fixture struct {
	orch   *Orchestrator
	env    *env.Environment
	store  *env.FileStore
	server *httptest.Server
	hits   *int32
	files  map[string][]byte
}

// newFixture serves files by URL path and wires a full pipeline over temp dirs.
func newFixture(t *testing.T, files map[string][]byte) *fixture {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)

	root := t.TempDir()
	store := env.NewFileStore(filepath.Join(root, "path"))
	e := &env.Environment{
		TargetBase:    filepath.Join(root, "base"),
		CacheDir:      filepath.Join(root, "cache"),
		TempDir:       filepath.Join(root, "tmp"),
		HomeDir:       filepath.Join(root, "home"),
		ShortcutDir:   filepath.Join(root, "shortcuts"),
		PathSeparator: string(os.PathListSeparator),
		Paths:         store,
	}
	orch := New(e,
		cache.New(e.CacheDir, cache.WithClient(server.Client())),
		installer.New(e, nil),
		registrar.New(e, &registrar.DesktopWriter{Dir: e.ShortcutDir}),
	)
	return &fixture{orch: orch, env: e, store: store, server: server, hits: &hits, files: files}
}

func (f *fixture) manifest(t *testing.T, tools ...config.Tool) *config.Manifest {
	t.Helper()
	for i := range tools {
		tools[i].URL = f.server.URL + tools[i].URL
	}
	data, err := json.Marshal(&config.Manifest{Tools: tools})
	require.NoError(t, err)
	m, err := config.ParseManifest(data)
	require.NoError(t, err)
	return m
}

func TestRunZeroSelectedHasNoSideEffects(t *testing.T) {
	f := newFixture(t, nil)
	m := f.manifest(t, config.Tool{Name: "x", URL: "/x.zip", CheckFile: "x.exe"})

	report, err := f.orch.Run(context.Background(), m, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Zero(t, atomic.LoadInt32(f.hits))
	assert.NoDirExists(t, f.env.CacheDir)
	assert.NoDirExists(t, f.env.TargetBase)
	assert.NoFileExists(t, f.store.Path)
}

func TestRunUnknownToolIsConfigurationError(t *testing.T) {
	f := newFixture(t, nil)
	m := f.manifest(t, config.Tool{Name: "x", URL: "/x.zip", CheckFile: "x.exe"})

	_, err := f.orch.Run(context.Background(), m, []string{"nope"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConfiguration))
	assert.Zero(t, atomic.LoadInt32(f.hits))
}

func TestRunInstallsAndRegisters(t *testing.T) {
	nodeZip := zipBytes(t, map[string]string{"node-v20/node.exe": "node", "node-v20/npm.cmd": "npm"})
	pwshZip := zipBytes(t, map[string]string{"pwsh.exe": "pwsh"})
	f := newFixture(t, map[string][]byte{"/node.zip": nodeZip, "/pwsh.zip": pwshZip})
	m := f.manifest(t,
		config.Tool{Name: "node", Version: "20", URL: "/node.zip", CheckFile: "node.exe", SHA256: strings.ToUpper(digest(nodeZip))},
		config.Tool{Name: "pwsh", Version: "7", URL: "/pwsh.zip", CheckFile: "pwsh.exe"},
	)

	report, err := f.orch.Run(context.Background(), m, []string{"pwsh", "node"})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "node", report.Results[0].Tool)
	assert.Equal(t, Installed, report.Results[0].State)
	assert.Equal(t, Installed, report.Results[1].State)
	assert.True(t, report.Registered)

	assert.FileExists(t, filepath.Join(f.env.TargetBase, "node", "node.exe"))
	path, err := f.store.Get()
	require.NoError(t, err)
	assert.Contains(t, path, filepath.Join(f.env.TargetBase, "node"))
	assert.Contains(t, path, filepath.Join(f.env.TargetBase, "pwsh"))
	assert.FileExists(t, filepath.Join(f.env.ShortcutDir, "devenv-devenv-shell.desktop"))

	// Second run: everything is already installed, nothing is fetched.
	before := atomic.LoadInt32(f.hits)
	report, err = f.orch.Run(context.Background(), m, []string{"node", "pwsh"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(AlreadyInstalled))
	assert.False(t, report.Registered)
	assert.Equal(t, before, atomic.LoadInt32(f.hits))
}

func TestRunIntegrityFailureIsIsolated(t *testing.T) {
	good := zipBytes(t, map[string]string{"y.exe": "y"})
	f := newFixture(t, map[string][]byte{
		"/x.zip": zipBytes(t, map[string]string{"x.exe": "tampered"}),
		"/y.zip": good,
	})
	known := digest([]byte("the real x.zip"))
	m := f.manifest(t,
		config.Tool{Name: "x", URL: "/x.zip", CheckFile: "x.exe", SHA256: known},
		config.Tool{Name: "y", URL: "/y.zip", CheckFile: "y.exe"},
	)

	report, err := f.orch.Run(context.Background(), m, []string{"x", "y"})
	require.NoError(t, err)

	x, _ := report.Lookup("x")
	assert.Equal(t, Failed, x.State)
	assert.Equal(t, CacheResolving, x.Stage)
	assert.True(t, errs.Is(x.Err, errs.KindIntegrity))
	assert.Contains(t, x.Err.Error(), known)
	assert.NoFileExists(t, filepath.Join(f.env.CacheDir, "x.zip"))
	assert.NoDirExists(t, filepath.Join(f.env.TargetBase, "x"))

	y, _ := report.Lookup("y")
	assert.Equal(t, Installed, y.State)
	assert.Len(t, report.Failures(), 1)
}

func TestRunNetworkFailureIsIsolated(t *testing.T) {
	f := newFixture(t, map[string][]byte{"/y.zip": zipBytes(t, map[string]string{"y.exe": "y"})})
	m := f.manifest(t,
		config.Tool{Name: "x", URL: "/missing.zip", CheckFile: "x.exe"},
		config.Tool{Name: "y", URL: "/y.zip", CheckFile: "y.exe"},
	)

	report, err := f.orch.Run(context.Background(), m, []string{"x", "y"})
	require.NoError(t, err)
	x, _ := report.Lookup("x")
	assert.True(t, errs.Is(x.Err, errs.KindNetwork))
	y, _ := report.Lookup("y")
	assert.Equal(t, Installed, y.State)
}

func TestRunInstallFailureRecordsStage(t *testing.T) {
	f := newFixture(t, map[string][]byte{"/x.zip": zipBytes(t, map[string]string{"other.exe": "x"})})
	m := f.manifest(t, config.Tool{Name: "x", URL: "/x.zip", CheckFile: "x.exe"})

	report, err := f.orch.Run(context.Background(), m, []string{"x"})
	require.NoError(t, err)
	x, _ := report.Lookup("x")
	assert.Equal(t, Failed, x.State)
	assert.Equal(t, Installing, x.Stage)
	assert.True(t, errs.Is(x.Err, errs.KindArchive))
	assert.False(t, report.Registered)
	assert.NoFileExists(t, f.store.Path)
}

func TestRunOccupiedTargetDoesNotStopLaterTools(t *testing.T) {
	f := newFixture(t, map[string][]byte{
		"/x.zip": zipBytes(t, map[string]string{"x.exe": "x"}),
		"/y.zip": zipBytes(t, map[string]string{"y.exe": "y"}),
	})
	m := f.manifest(t,
		config.Tool{Name: "x", URL: "/x.zip", CheckFile: "x.exe"},
		config.Tool{Name: "y", URL: "/y.zip", CheckFile: "y.exe"},
	)
	// A stray file where x's directory belongs.
	require.NoError(t, os.MkdirAll(f.env.TargetBase, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.env.TargetBase, "x"), []byte("stray"), 0644))

	report, err := f.orch.Run(context.Background(), m, []string{"x", "y"})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	x, _ := report.Lookup("x")
	assert.Equal(t, Failed, x.State)
	assert.Equal(t, Installing, x.Stage)
	assert.True(t, errs.Is(x.Err, errs.KindArchive), "got %v", x.Err)
	assert.False(t, errs.IsFatal(x.Err))

	y, _ := report.Lookup("y")
	assert.Equal(t, Installed, y.State)
	assert.FileExists(t, filepath.Join(f.env.TargetBase, "y", "y.exe"))
	assert.True(t, report.Registered)
}

func TestRunCancelledBetweenTools(t *testing.T) {
	f := newFixture(t, nil)
	m := f.manifest(t,
		config.Tool{Name: "x", URL: "/x.zip", CheckFile: "x.exe"},
		config.Tool{Name: "y", URL: "/y.zip", CheckFile: "y.exe"},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.orch.Run(ctx, m, []string{"x", "y"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindCancelled))
	assert.Equal(t, 2, report.Count(NotStarted))
	assert.Zero(t, atomic.LoadInt32(f.hits))
}

func TestStatusAndClean(t *testing.T) {
	f := newFixture(t, map[string][]byte{"/x.zip": zipBytes(t, map[string]string{"bin/x.exe": "x"})})
	m := f.manifest(t,
		config.Tool{Name: "x", URL: "/x.zip", CheckFile: "bin/x.exe"},
		config.Tool{Name: "y", URL: "/y.zip", CheckFile: "y.exe"},
	)
	require.NoError(t, f.store.Set("/usr/local/bin"))

	_, err := f.orch.Run(context.Background(), m, []string{"x"})
	require.NoError(t, err)

	status := f.orch.Status(m)
	require.Len(t, status, 2)
	assert.True(t, status[0].Installed)
	assert.True(t, status[0].OnPath)
	assert.True(t, status[0].Cached)
	assert.False(t, status[1].Installed)
	assert.False(t, status[1].OnPath)
	assert.False(t, status[1].Cached)

	require.NoError(t, f.orch.Clean(m))
	assert.NoDirExists(t, filepath.Join(f.env.TargetBase, "x"))
	assert.NoDirExists(t, f.env.CacheDir)
	path, err := f.store.Get()
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin", path)
}

func TestImportLocal(t *testing.T) {
	f := newFixture(t, nil)
	m := f.manifest(t,
		config.Tool{Name: "mingw64", URL: "/mingw.7z", CheckFile: "bin/gcc.exe"},
		config.Tool{Name: "pwsh", URL: "/pwsh.zip", CheckFile: "pwsh.exe"},
		config.Tool{Name: "rustup", URL: "/rustup-init.exe", CheckFile: ".cargo/bin/rustup.exe"},
	)

	src := t.TempDir()
	gcc := filepath.Join(src, "downloads", "mingw64", "bin", "gcc.exe")
	require.NoError(t, os.MkdirAll(filepath.Dir(gcc), 0755))
	require.NoError(t, os.WriteFile(gcc, []byte("gcc"), 0755))

	report, err := f.orch.ImportLocal(context.Background(), m, m.Names(), src)
	require.NoError(t, err)

	mingw, _ := report.Lookup("mingw64")
	assert.Equal(t, Installed, mingw.State)
	assert.FileExists(t, filepath.Join(f.env.TargetBase, "mingw64", "bin", "gcc.exe"))
	pwsh, _ := report.Lookup("pwsh")
	assert.Equal(t, Failed, pwsh.State)
	rustup, _ := report.Lookup("rustup")
	assert.Equal(t, NotStarted, rustup.State)
	assert.True(t, report.Registered)
	assert.Zero(t, atomic.LoadInt32(f.hits))

	_, err = f.orch.ImportLocal(context.Background(), m, m.Names(), filepath.Join(src, "nope"))
	assert.True(t, errs.Is(err, errs.KindConfiguration))
}

func TestFindFolderContainingDepth(t *testing.T) {
	src := t.TempDir()
	deep := filepath.Join(src, "a", "b", "c", "d")
	require.NoError(t, os.MkdirAll(deep, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "tool.exe"), nil, 0644))

	_, ok := FindFolderContaining(src, "tool.exe")
	assert.False(t, ok)

	got, ok := FindFolderContaining(filepath.Join(src, "a"), "tool.exe")
	assert.True(t, ok)
	assert.Equal(t, deep, got)
}

func TestProcessEnv(t *testing.T) {
	f := newFixture(t, nil)
	m := f.manifest(t,
		config.Tool{Name: "node", URL: "/node.zip", CheckFile: "node.exe"},
		config.Tool{Name: "mingw64", URL: "/mingw.7z", CheckFile: "bin/gcc.exe"},
		config.Tool{Name: "pwsh", URL: "/pwsh.zip", CheckFile: "pwsh.exe"},
	)
	for _, name := range []string{"node/node.exe", "mingw64/bin/gcc.exe"} {
		p := filepath.Join(f.env.TargetBase, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, nil, 0755))
	}

	out := f.orch.ProcessEnv(m, []string{"PATH=/usr/bin", "HOME=/home/u"})
	vars := map[string]string{}
	for _, kv := range out {
		k, v, _ := strings.Cut(kv, "=")
		vars[k] = v
	}
	sep := string(os.PathListSeparator)
	nodeDir := filepath.Join(f.env.TargetBase, "node")
	mingwBin := filepath.Join(f.env.TargetBase, "mingw64", "bin")
	assert.Equal(t, nodeDir+sep+mingwBin+sep+"/usr/bin", vars["PATH"])
	assert.Equal(t, filepath.Join(nodeDir, "node_modules"), vars["NODE_PATH"])
	assert.Equal(t, filepath.Join(mingwBin, "gcc.exe"), vars["CC"])
	assert.Equal(t, filepath.Join(mingwBin, "g++.exe"), vars["CXX"])
	assert.Equal(t, "/home/u", vars["HOME"])
	assert.Len(t, out, 5)
}
