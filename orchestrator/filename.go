package orchestrator

import (
	"net/http"
	"regexp"
	"strings"
)

// DefaultFilename is used when the service does not suggest a name.
const DefaultFilename = "website.zip"

var reDispositionFilename = regexp.MustCompile(`filename="(.+)"`)

// FilenameFromHeader derives the archive name from a Content-Disposition
// header. The header name is matched case-insensitively. It never fails:
// a missing or malformed header yields DefaultFilename.
func FilenameFromHeader(h http.Header) string {
	return FilenameFromDisposition(headerValue(h, "Content-Disposition"))
}

// FilenameFromDisposition extracts the quoted filename from a disposition
// directive such as `attachment; filename="site.zip"`. The name is returned
// verbatim; callers writing to a filesystem must harden it first.
func FilenameFromDisposition(disposition string) string {
	if disposition == "" {
		return DefaultFilename
	}
	m := reDispositionFilename.FindStringSubmatch(disposition)
	if len(m) < 2 || m[1] == "" {
		return DefaultFilename
	}
	return m[1]
}

// headerValue looks a header up ignoring case, including non-canonical keys
// that were set directly on the map.
func headerValue(h http.Header, name string) string {
	if v := h.Get(name); v != "" {
		return v
	}
	for k, vs := range h {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}
