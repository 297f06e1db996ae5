// Package saver hands a downloaded archive off to the local filesystem.
package saver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultName is used when a filename cannot be made safe.
const DefaultName = "website.zip"

// maxNameBytes is the common filesystem limit for a single path component.
const maxNameBytes = 255

// maxAttempts bounds the search for a free name.
const maxAttempts = 1000

// reserved characters are invalid in a filename on at least one common
// platform, or would break a quoted Content-Disposition value.
const reserved = `<>:"/\|?*`

// Payload is something that can write the archive bytes, such as a live
// orchestrator handle.
type Payload interface {
	Filename() string
	WriteTo(w io.Writer) (int64, error)
}

// Result describes a completed save.
type Result struct {
	Path         string `json:"path"`
	BytesWritten int64  `json:"bytes_written"`
}

// SafeName hardens a filename taken from a server header for use on disk.
// Directory components, control characters and characters reserved on
// common filesystems are removed, and the result is capped at 255 bytes
// with the extension kept.
func SafeName(name string) string {
	// Treat both separators as path separators regardless of platform.
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == utf8.RuneError:
		case unicode.IsControl(r):
		case strings.ContainsRune(reserved, r):
		default:
			b.WriteRune(r)
		}
	}
	name = strings.TrimSpace(b.String())
	name = strings.TrimLeft(name, ".")

	if name == "" {
		return DefaultName
	}
	return truncate(name, maxNameBytes)
}

// truncate shortens name to at most max bytes without splitting a rune,
// keeping the extension when it fits.
func truncate(name string, max int) string {
	if len(name) <= max {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) >= max/2 {
		ext = ""
	}
	base := name[:len(name)-len(ext)]
	limit := max - len(ext)
	for limit > 0 && !utf8.RuneStart(base[limit]) {
		limit--
	}
	return base[:limit] + ext
}

// Save writes the payload into dir under its hardened filename. An existing
// file is never overwritten: a numeric suffix is added instead (site-1.zip).
// The bytes go to a temporary file first and are renamed into place.
func Save(dir string, p Payload) (*Result, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("saver: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sitegrab-*.part")
	if err != nil {
		return nil, fmt.Errorf("saver: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful link

	n, err := p.WriteTo(tmp)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("saver: write: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("saver: chmod: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("saver: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("saver: close: %w", err)
	}

	path, err := claim(dir, SafeName(p.Filename()), tmpPath)
	if err != nil {
		return nil, err
	}
	return &Result{Path: path, BytesWritten: n}, nil
}

// claim moves tmpPath to the first free candidate name in dir. os.Link fails
// when the target exists, so a concurrent writer can never be clobbered.
func claim(dir, name, tmpPath string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxAttempts; i++ {
		candidate := name
		if i > 0 {
			suffix := "-" + strconv.Itoa(i)
			candidate = truncate(stem, maxNameBytes-len(ext)-len(suffix)) + suffix + ext
		}
		target := filepath.Join(dir, candidate)

		err := os.Link(tmpPath, target)
		if err == nil {
			return target, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		// Filesystems without hard links: fall back to an exclusive create.
		if ok, rerr := renameIfAbsent(tmpPath, target); rerr != nil {
			return "", rerr
		} else if ok {
			return target, nil
		}
	}
	return "", fmt.Errorf("saver: no free name for %q in %s", name, dir)
}

// renameIfAbsent reserves target with O_EXCL and renames tmpPath over it.
func renameIfAbsent(tmpPath, target string) (bool, error) {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("saver: reserve %s: %w", target, err)
	}
	f.Close()
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(target)
		return false, fmt.Errorf("saver: rename: %w", err)
	}
	return true, nil
}
