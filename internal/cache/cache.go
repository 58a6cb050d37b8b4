// Package cache maps a tool name to a verified local copy of its artifact.
//
// A cached file is trusted when its SHA-256 matches the expected digest. When
// no digest is supplied, an existing file is returned unconditionally: a stale
// or poisoned cache entry is not detected in that case. This trust-on-presence
// policy is kept for compatibility with manifests that carry no hashes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"devenv/internal/errs"
	"devenv/internal/logger"
)

const (
	// DefaultTimeout bounds a whole artifact download.
	DefaultTimeout = 30 * time.Minute
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "devenv/1.0"

	copyBufferSize = 32 * 1024
)

// ProgressFunc receives the bytes written so far and the expected total
// (zero when the server did not announce a length).
type ProgressFunc func(written, total int64)

// Cache owns the cache root directory. No other component writes there.
type Cache struct {
	dir       string
	client    *http.Client
	userAgent string
	progress  ProgressFunc
}

// Option configures a Cache.
type Option func(*Cache)

// WithClient replaces the HTTP client.
func WithClient(client *http.Client) Option {
	return func(c *Cache) { c.client = client }
}

// WithProgress installs a download progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Cache) { c.progress = fn }
}

// New returns a cache rooted at dir.
func New(dir string, opts ...Option) *Cache {
	c := &Cache{
		dir:       dir,
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

// SlotPath returns the deterministic cache location for a tool's artifact.
func (c *Cache) SlotPath(toolName, url string) string {
	return filepath.Join(c.dir, toolName+ArtifactExt(url))
}

// Resolve returns the path of a valid local copy of the artifact at url,
// downloading it when the slot is empty or fails verification.
// expectedHash may be empty, which disables verification.
func (c *Cache) Resolve(ctx context.Context, toolName, url, expectedHash string) (string, error) {
	expectedHash = strings.ToLower(strings.TrimSpace(expectedHash))
	slot := c.SlotPath(toolName, url)

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", errs.New(errs.KindEnvironment, toolName, "create cache directory", err)
	}

	// Check the existing slot first.
	if info, err := os.Stat(slot); err == nil && !info.IsDir() {
		logger.Debug("[DEBUG] Cache hit for %s: %s\n", toolName, slot)
		if expectedHash == "" {
			logger.Info("[INFO] Using cached %s (no hash to verify)\n", filepath.Base(slot))
			return slot, nil
		}
		actual, err := HashFile(slot)
		if err != nil {
			return "", errs.New(errs.KindIntegrity, toolName, "hash cached artifact", err)
		}
		if actual == expectedHash {
			logger.Info("[INFO] Using cached %s (hash verified)\n", filepath.Base(slot))
			return slot, nil
		}
		// Stale copy: drop it and fall through to a fresh download.
		logger.Warn("[WARN] Cached %s is stale (expected %s, got %s). Downloading again.\n",
			filepath.Base(slot), expectedHash, actual)
		if err := os.Remove(slot); err != nil {
			return "", errs.New(errs.KindIntegrity, toolName, "remove stale artifact", err)
		}
	}

	// Download into the slot, then verify the new file.
	if err := c.download(ctx, url, slot); err != nil {
		return "", errs.New(errs.KindNetwork, toolName, "download "+url, err)
	}

	if expectedHash != "" {
		actual, err := HashFile(slot)
		if err != nil {
			_ = os.Remove(slot)
			return "", errs.New(errs.KindIntegrity, toolName, "hash downloaded artifact", err)
		}
		if actual != expectedHash {
			_ = os.Remove(slot)
			return "", errs.Newf(errs.KindIntegrity, toolName, "verify download",
				"checksum mismatch for %s: expected %s, got %s", filepath.Base(slot), expectedHash, actual)
		}
		logger.Debug("[DEBUG] Verified %s sha256=%s\n", slot, actual)
	}
	return slot, nil
}

// Fetch downloads url to dest without touching the cache slots.
// It is used to hash candidate artifacts during manifest maintenance.
func (c *Cache) Fetch(ctx context.Context, url, dest string) error {
	if err := c.download(ctx, url, dest); err != nil {
		return errs.New(errs.KindNetwork, "", "download "+url, err)
	}
	return nil
}

// Clean removes the whole cache root.
func (c *Cache) Clean() error {
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("remove cache %s: %w", c.dir, err)
	}
	return nil
}

// download streams url into dest through a sibling .part file that is renamed
// into place only once the body has been fully written.
func (c *Cache) download(ctx context.Context, url, dest string) error {
	logger.Info("[INFO] Downloading %s\n", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	// Execute the request
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close HTTP response body: %v\n", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	// Stream into a sibling .part file
	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	keep := false
	defer func() {
		_ = out.Close()
		if !keep {
			_ = os.Remove(tmp)
		}
	}()

	var w io.Writer = out
	if c.progress != nil {
		w = &progressWriter{w: out, total: resp.ContentLength, report: c.progress}
	}
	written, err := io.CopyBuffer(w, resp.Body, make([]byte, copyBufferSize))
	if err != nil {
		return fmt.Errorf("write response to file: %w", err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return fmt.Errorf("short body: got %d of %d bytes", written, resp.ContentLength)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	// Move the complete file into place
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("move download into place: %w", err)
	}
	keep = true

	logger.Debug("[DEBUG] Downloaded %d bytes to %s\n", written, dest)
	return nil
}

// ArtifactExt returns the archive extension carried by url, keeping compound
// tar suffixes together. URLs without an extension map to ".zip".
func ArtifactExt(rawURL string) string {
	p := rawURL
	if u, err := neturl.Parse(rawURL); err == nil {
		p = u.Path
	}
	name := strings.ToLower(path.Base(p))
	for _, ext := range []string{".tar.gz", ".tar.bz2", ".tar.xz"} {
		if strings.HasSuffix(name, ext) {
			return ext
		}
	}
	if ext := path.Ext(name); ext != "" && ext != "." {
		return ext
	}
	return ".zip"
}

type progressWriter struct {
	w       io.Writer
	written int64
	total   int64
	report  ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	p.report(p.written, p.total)
	return n, err
}

// ErrNoSlot is returned by Lookup when nothing is cached for a tool.
var ErrNoSlot = errors.New("artifact not cached")

// Lookup returns the slot path of an already cached artifact without any
// network access or verification.
func (c *Cache) Lookup(toolName, url string) (string, error) {
	slot := c.SlotPath(toolName, url)
	if _, err := os.Stat(slot); err != nil {
		return "", ErrNoSlot
	}
	return slot, nil
}
