package saver

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

type memPayload struct {
	name string
	data []byte
	err  error
}

func (p memPayload) Filename() string { return p.name }

func (p memPayload) WriteTo(w io.Writer) (int64, error) {
	if p.err != nil {
		return 0, p.err
	}
	n, err := w.Write(p.data)
	return int64(n), err
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"site.zip", "site.zip"},
		{"my site.zip", "my site.zip"},
		{"../../etc/passwd", "passwd"},
		{`..\..\windows\evil.zip`, "evil.zip"},
		{"/abs/path/site.zip", "site.zip"},
		{"a\x00b\x1fc.zip", "abc.zip"},
		{"C:site.zip", "Csite.zip"},
		{"line\nbreak.zip", "linebreak.zip"},
		{".", DefaultName},
		{"..", DefaultName},
		{"", DefaultName},
		{"   ", DefaultName},
		{"dir/", DefaultName},
		{".hidden.zip", "hidden.zip"},
		{"caf\xe9.zip", "caf.zip"},
		{`say "hi"?.zip`, "say hi.zip"},
		{"a<b>|c*.zip", "abc.zip"},
	}

	for _, tt := range tests {
		if got := SafeName(tt.in); got != tt.want {
			t.Errorf("SafeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSafeName_Truncates(t *testing.T) {
	long := strings.Repeat("é", 200) + ".zip" // 404 bytes
	got := SafeName(long)

	if len(got) > maxNameBytes {
		t.Errorf("len = %d, want <= %d", len(got), maxNameBytes)
	}
	if !strings.HasSuffix(got, ".zip") {
		t.Errorf("extension lost: %q", got[len(got)-8:])
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a rune")
	}
}

func TestSave_WritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	payload := []byte("PK\x03\x04archive")

	res, err := Save(dir, memPayload{name: "site.zip", data: payload})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Path != filepath.Join(dir, "site.zip") {
		t.Errorf("path = %q", res.Path)
	}
	if res.BytesWritten != int64(len(payload)) {
		t.Errorf("bytes written = %d", res.BytesWritten)
	}

	got, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("file content = %q", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only the archive", len(entries))
	}
}

func TestSave_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()

	var paths []string
	for i := 0; i < 3; i++ {
		res, err := Save(dir, memPayload{name: "site.zip", data: []byte{byte('a' + i)}})
		if err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
		paths = append(paths, filepath.Base(res.Path))
	}

	want := []string{"site.zip", "site-1.zip", "site-2.zip"}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("save %d went to %q, want %q", i, paths[i], want[i])
		}
	}

	first, _ := os.ReadFile(filepath.Join(dir, "site.zip"))
	if string(first) != "a" {
		t.Errorf("first file was overwritten: %q", first)
	}
}

func TestSave_HardensName(t *testing.T) {
	dir := t.TempDir()

	res, err := Save(dir, memPayload{name: "../escape.zip", data: []byte("x")})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Dir(res.Path) != dir {
		t.Errorf("file escaped the output dir: %s", res.Path)
	}
}

func TestSave_WriteError(t *testing.T) {
	dir := t.TempDir()
	cause := errors.New("handle revoked")

	if _, err := Save(dir, memPayload{name: "site.zip", err: cause}); !errors.Is(err, cause) {
		t.Fatalf("err = %v, want %v", err, cause)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("failed save left %d files behind", len(entries))
	}
}
