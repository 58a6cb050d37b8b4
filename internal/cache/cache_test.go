package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devenv/internal/errs"
)

func sum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// newServer serves body for every request and counts the requests.
func newServer(t *testing.T, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	hash, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", hash)
}

func TestResolveDownloadsThenHitsCache(t *testing.T) {
	body := "zip bytes"
	server, hits := newServer(t, body)
	c := New(t.TempDir(), WithClient(server.Client()))

	first, err := c.Resolve(context.Background(), "x", server.URL+"/x.zip", sum(body))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.Dir(), "x.zip"), first)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))

	second, err := c.Resolve(context.Background(), "x", server.URL+"/x.zip", sum(body))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits), "verified cache hit must not touch the network")
}

func TestResolveAcceptsUppercaseHash(t *testing.T) {
	body := "payload"
	server, _ := newServer(t, body)
	c := New(t.TempDir(), WithClient(server.Client()))

	upper := []byte(sum(body))
	for i, b := range upper {
		if b >= 'a' && b <= 'f' {
			upper[i] = b - 'a' + 'A'
		}
	}
	_, err := c.Resolve(context.Background(), "x", server.URL+"/x.zip", string(upper))
	assert.NoError(t, err)
}

func TestResolveRedownloadsMutatedEntry(t *testing.T) {
	body := "good archive"
	server, hits := newServer(t, body)
	c := New(t.TempDir(), WithClient(server.Client()))

	slot, err := c.Resolve(context.Background(), "x", server.URL+"/x.zip", sum(body))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(slot, []byte("tampered"), 0644))

	again, err := c.Resolve(context.Background(), "x", server.URL+"/x.zip", sum(body))
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(hits))

	content, err := os.ReadFile(again)
	require.NoError(t, err)
	assert.Equal(t, body, string(content))
}

func TestResolveTrustsPresenceWithoutHash(t *testing.T) {
	server, hits := newServer(t, "fresh")
	c := New(t.TempDir(), WithClient(server.Client()))

	slot := c.SlotPath("x", server.URL+"/x.zip")
	require.NoError(t, os.WriteFile(slot, []byte("whatever was there"), 0644))

	got, err := c.Resolve(context.Background(), "x", server.URL+"/x.zip", "")
	require.NoError(t, err)
	assert.Equal(t, slot, got)
	assert.EqualValues(t, 0, atomic.LoadInt32(hits))
}

func TestResolveIntegrityFailureLeavesNoFile(t *testing.T) {
	server, _ := newServer(t, "not the expected bytes")
	c := New(t.TempDir(), WithClient(server.Client()))
	known := sum("the expected bytes")

	_, err := c.Resolve(context.Background(), "x", server.URL+"/x.zip", known)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindIntegrity), "got %v", err)
	assert.Contains(t, err.Error(), known)
	assert.Contains(t, err.Error(), sum("not the expected bytes"))

	_, statErr := os.Stat(c.SlotPath("x", server.URL+"/x.zip"))
	assert.True(t, os.IsNotExist(statErr), "bad artifact must not stay in the cache")

	entries, err := os.ReadDir(c.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolveHTTPErrors(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		c := New(t.TempDir(), WithClient(server.Client()))
		_, err := c.Resolve(context.Background(), "x", server.URL+"/x.zip", "")
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.KindNetwork), "status %d: got %v", status, err)

		entries, _ := os.ReadDir(c.Dir())
		assert.Empty(t, entries, "no partial file may remain")
		server.Close()
	}
}

func TestResolveReportsProgress(t *testing.T) {
	body := string(make([]byte, 100*1024))
	server, _ := newServer(t, body)

	var last int64
	c := New(t.TempDir(), WithClient(server.Client()), WithProgress(func(written, total int64) {
		assert.GreaterOrEqual(t, written, last)
		last = written
	}))

	_, err := c.Resolve(context.Background(), "big", server.URL+"/big.zip", "")
	require.NoError(t, err)
	assert.EqualValues(t, len(body), last)
}

func TestArtifactExt(t *testing.T) {
	tests := map[string]string{
		"http://host/x.zip":                        ".zip",
		"http://host/node-v22-linux-x64.tar.xz":    ".tar.xz",
		"http://host/a.tar.gz?token=1":             ".tar.gz",
		"http://host/PortableGit-2.47.1.7z.exe":    ".exe",
		"http://host/tool.TGZ":                     ".tgz",
		"http://host/download":                     ".zip",
		"http://host.example.com":                  ".zip",
		"https://host/dist/archive.7z#fragment":    ".7z",
	}
	for url, want := range tests {
		assert.Equal(t, want, ArtifactExt(url), url)
	}
}

func TestClean(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.zip"), []byte("x"), 0644))

	c := New(dir)
	_, err := c.Lookup("x", "http://host/x.zip")
	require.NoError(t, err)

	require.NoError(t, c.Clean())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	_, err = c.Lookup("x", "http://host/x.zip")
	assert.ErrorIs(t, err, ErrNoSlot)
}
