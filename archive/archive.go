// Package archive previews a downloaded site archive without unpacking it
// to disk.
//
// The scraping service lays out every archive the same way: the page itself
// as index.html at the root, and its assets under css/, js/, images/, fonts/
// and assets/.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// IndexName is the entry holding the archived page.
const IndexName = "index.html"

// maxIndexBytes caps how much of index.html is read into memory.
const maxIndexBytes = 8 << 20

// ErrEmpty is returned for a zip without any file entries.
var ErrEmpty = errors.New("archive: no files")

// Categories recognised in the archive layout. Files outside these folders
// (and index.html itself) are counted as CategoryOther.
const (
	CategoryCSS    = "css"
	CategoryJS     = "js"
	CategoryImages = "images"
	CategoryFonts  = "fonts"
	CategoryAssets = "assets"
	CategoryOther  = "other"
)

var knownCategories = map[string]bool{
	CategoryCSS:    true,
	CategoryJS:     true,
	CategoryImages: true,
	CategoryFonts:  true,
	CategoryAssets: true,
}

// Manifest summarises an archive.
type Manifest struct {
	Entries    int            `json:"entries"`
	TotalBytes int64          `json:"total_bytes"`
	Categories map[string]int `json:"categories"`
	Files      []string       `json:"-"`

	// Index describes index.html; nil when the archive has none.
	Index *Page `json:"index,omitempty"`
}

// Has reports whether the archive contains the given slash-separated path.
func (m *Manifest) Has(name string) bool {
	i := sort.SearchStrings(m.Files, name)
	return i < len(m.Files) && m.Files[i] == name
}

// Inspect reads a zip archive from memory. sourceURL is the page the archive
// was made from and is used to resolve links in the Markdown preview; it may
// be empty.
func Inspect(data []byte, sourceURL string) (*Manifest, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	m := &Manifest{Categories: make(map[string]int)}
	var index *zip.File

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := cleanEntry(f.Name)
		if name == "" {
			continue
		}
		m.Entries++
		m.TotalBytes += int64(f.UncompressedSize64)
		m.Files = append(m.Files, name)
		m.Categories[categoryOf(name)]++
		if name == IndexName {
			index = f
		}
	}
	if m.Entries == 0 {
		return nil, ErrEmpty
	}
	sort.Strings(m.Files)

	if index != nil {
		raw, err := readEntry(index)
		if err != nil {
			return nil, err
		}
		m.Index = inspectPage(raw, sourceURL, m)
	}
	return m, nil
}

// cleanEntry normalises a zip entry name to a relative slash path. Names
// that would escape the archive root are dropped.
func cleanEntry(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Clean("/" + name)
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." {
		return ""
	}
	return name
}

func categoryOf(name string) string {
	dir, _, found := strings.Cut(name, "/")
	if found && knownCategories[dir] {
		return dir
	}
	return CategoryOther
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxIndexBytes))
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", f.Name, err)
	}
	return data, nil
}
