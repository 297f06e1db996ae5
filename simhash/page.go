package simhash

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped holds elements whose text is never shown to a reader.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Head:     true,
}

// VisibleText returns the text a reader would see on the page, with runs of
// whitespace collapsed to single spaces.
func VisibleText(page string) string {
	z := html.NewTokenizer(strings.NewReader(page))
	var parts []string
	depth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			if skipped[atom.Lookup(name)] {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skipped[atom.Lookup(name)] && depth > 0 {
				depth--
			}
		case html.TextToken:
			if depth > 0 {
				continue
			}
			if s := strings.Join(strings.Fields(string(z.Text())), " "); s != "" {
				parts = append(parts, s)
			}
		}
	}
}

// FingerprintPage fingerprints the visible text of an HTML page.
func FingerprintPage(page string) uint64 {
	return Fingerprint(VisibleText(page))
}

// FingerprintLayout fingerprints the sequence of opening tags, ignoring text
// and attributes. Pages built from the same template share a layout
// fingerprint even when their content differs.
func FingerprintLayout(page string) uint64 {
	tags := openTags(page)
	if len(tags) == 0 {
		return 0
	}
	if shingles := shingle(tags, 3); len(shingles) > 0 {
		return fromFeatures(shingles)
	}
	return fromFeatures([]string{strings.Join(tags, "_")})
}

func openTags(page string) []string {
	z := html.NewTokenizer(strings.NewReader(page))
	var tags []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tags = append(tags, string(name))
		}
	}
}

// shingle joins every run of n consecutive tokens. It returns nil when there
// are fewer than n tokens.
func shingle(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], "_"))
	}
	return out
}
