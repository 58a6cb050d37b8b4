package installer

import (
	"archive/tar"    // For reading .tar archives
	"archive/zip"    // For reading .zip archives
	"compress/bzip2" // For reading .bz2 compressed data
	"compress/gzip"  // For reading .gz compressed data
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip" // For reading .7z archives
	"github.com/xi2/xz"          // For reading .xz compressed data

	"devenv/internal/errs"
	"devenv/internal/logger"
)

// entry is one member of an archive, independent of the container format.
// open is only valid for the duration of the walk callback.
type entry struct {
	name string
	dir  bool
	mode os.FileMode
	open func() (io.ReadCloser, error)
}

// Extract unpacks every entry of the archive into destDir.
// Entries that would land outside destDir are skipped.
func Extract(src, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return errs.New(errs.KindArchive, "", "create extraction directory", err)
	}

	count := 0
	err := walkArchive(src, func(e entry) error {
		target, ok := safeTarget(destDir, e.name)
		if !ok {
			logger.Warn("[WARN] Skipping unsafe archive entry %q\n", e.name)
			return nil
		}
		if e.dir {
			return os.MkdirAll(target, 0755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := writeEntry(target, e); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return errs.New(errs.KindArchive, "", "extract "+filepath.Base(src), err)
	}

	logger.Debug("[DEBUG] Extracted %d files from %s to %s\n", count, src, destDir)
	return nil
}

// ArchiveContains reports whether an entry of the archive matches marker,
// either exactly or as the tail of a longer path (so "bin/gcc.exe" matches
// "mingw64/bin/gcc.exe").
func ArchiveContains(src, marker string) (bool, error) {
	marker = strings.TrimPrefix(filepath.ToSlash(marker), "/")
	found := false
	err := walkArchive(src, func(e entry) error {
		name := strings.ReplaceAll(e.name, "\\", "/")
		if name == marker || strings.HasSuffix(name, "/"+marker) {
			found = true
			return io.EOF
		}
		return nil
	})
	if err != nil && err != io.EOF {
		return false, errs.New(errs.KindArchive, "", "read "+filepath.Base(src), err)
	}
	return found, nil
}

// PayloadRoot detects the "single wrapper folder" layout: when dir holds
// exactly one entry and it is a directory, that directory is the real root.
func PayloadRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		root := filepath.Join(dir, entries[0].Name())
		logger.Debug("[DEBUG] Archive wraps its payload in %s\n", entries[0].Name())
		return root, nil
	}
	return dir, nil
}

// safeTarget resolves an archive entry name under destDir. It rejects empty,
// absolute and parent-escaping names; backslashes count as separators.
func safeTarget(destDir, name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSuffix(name, "/")
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return "", false
	}
	return filepath.Join(destDir, local), true
}

func writeEntry(target string, e entry) error {
	rc, err := e.open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := e.mode.Perm()
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode|0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// walkArchive routes to the reader for the archive's format and calls fn
// for every entry. fn may return io.EOF to stop early.
func walkArchive(src string, fn func(entry) error) error {
	lower := strings.ToLower(src)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		logger.Debug("[DEBUG] compression type is zip\n")
		return walkZip(src, fn)
	case strings.HasSuffix(lower, ".7z"):
		logger.Debug("[DEBUG] compression type is .7z\n")
		return walk7z(src, fn)
	case strings.HasSuffix(lower, ".tar"), strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"),
		strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tar.xz"):
		logger.Debug("[DEBUG] compression type is .tar.*\n")
		return walkTar(src, fn)
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(src))
	}
}

// walkTar handles tar and compressed tar variants
func walkTar(src string, fn func(entry) error) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	var reader io.Reader = f
	lower := strings.ToLower(src)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gr.Close()
		reader = gr
	case strings.HasSuffix(lower, ".tar.bz2"):
		reader = bzip2.NewReader(f)
	case strings.HasSuffix(lower, ".tar.xz"):
		xzr, err := xz.NewReader(f, 0)
		if err != nil {
			return err
		}
		reader = xzr
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var e entry
		switch hdr.Typeflag {
		case tar.TypeDir:
			e = entry{name: hdr.Name, dir: true}
		case tar.TypeReg:
			e = entry{
				name: hdr.Name,
				mode: os.FileMode(hdr.Mode),
				open: func() (io.ReadCloser, error) { return io.NopCloser(tr), nil },
			}
		default:
			// Links and special files are not materialized.
			logger.Debug("[DEBUG] Skipping tar entry %s (type %c)\n", hdr.Name, hdr.Typeflag)
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

// walkZip iterates a .zip archive
func walkZip(src string, fn func(entry) error) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		e := entry{
			name: f.Name,
			dir:  strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir(),
			mode: f.Mode(),
			open: f.Open,
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// walk7z iterates a .7z archive using the sevenzip library
func walk7z(src string, fn func(entry) error) error {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		e := entry{
			name: f.Name,
			dir:  f.FileInfo().IsDir(),
			mode: f.Mode(),
			open: f.Open,
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}
