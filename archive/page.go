package archive

import (
	"bytes"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/use-agent/sitegrab/simhash"
)

// Preview limits.
const (
	maxExcerptRunes  = 300
	maxMarkdownRunes = 2000
)

// assetRefs matches the elements whose references the service downloads and
// rewrites to local paths.
var assetRefs = cascadia.MustCompile("link[href], script[src], img[src]")

// markdownConv is goroutine-safe and shared by all previews.
var markdownConv = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	),
)

// Page describes the archived index.html.
type Page struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
	Markdown    string `json:"markdown,omitempty"`

	// Assets lists the local references found in the page; MissingAssets is
	// the subset not present in the archive.
	Assets        []string `json:"assets,omitempty"`
	MissingAssets []string `json:"missing_assets,omitempty"`

	// Fingerprint is the simhash of the visible text; Layout the simhash of
	// the tag structure.
	Fingerprint uint64 `json:"fingerprint"`
	Layout      uint64 `json:"layout"`
}

// inspectPage never fails: a page that cannot be parsed yields only the
// fields that could be computed.
func inspectPage(raw []byte, sourceURL string, m *Manifest) *Page {
	page := string(raw)
	p := &Page{
		Fingerprint: simhash.FingerprintPage(page),
		Layout:      simhash.FingerprintLayout(page),
	}

	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		slog.Warn("archive: index.html could not be parsed", "error", err)
		return p
	}
	doc := goquery.NewDocumentFromNode(root)

	p.Title = pageTitle(doc)
	p.Description = pageDescription(doc)
	p.Excerpt = truncateRunes(pageExcerpt(page, sourceURL, doc), maxExcerptRunes)
	p.Assets, p.MissingAssets = localAssets(root, m)

	md, err := toMarkdown(page, sourceURL)
	if err != nil {
		slog.Warn("archive: markdown preview failed", "error", err)
	} else {
		p.Markdown = truncateRunes(md, maxMarkdownRunes)
	}
	return p
}

func pageTitle(doc *goquery.Document) string {
	if t := collapse(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t = collapse(t); t != "" {
			return t
		}
	}
	return collapse(doc.Find("h1").First().Text())
}

func pageDescription(doc *goquery.Document) string {
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if d, ok := doc.Find(sel).Attr("content"); ok {
			if d = collapse(d); d != "" {
				return d
			}
		}
	}
	return ""
}

// pageExcerpt prefers the readability excerpt and falls back to the first
// non-empty paragraph.
func pageExcerpt(page, sourceURL string, doc *goquery.Document) string {
	pageURL, err := url.Parse(sourceURL)
	if err != nil || sourceURL == "" {
		pageURL = &url.URL{Scheme: "file", Path: "/" + IndexName}
	}

	article, err := readability.FromReader(strings.NewReader(page), pageURL)
	if err == nil {
		if e := collapse(article.Excerpt); e != "" {
			return e
		}
	}

	var first string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		first = collapse(s.Text())
		return first == ""
	})
	return first
}

func toMarkdown(page, sourceURL string) (string, error) {
	if sourceURL == "" {
		return markdownConv.ConvertString(page)
	}
	return markdownConv.ConvertString(page, converter.WithDomain(sourceURL))
}

// localAssets collects the references that point inside the archive and
// reports which of them are missing.
func localAssets(root *html.Node, m *Manifest) (assets, missing []string) {
	seen := make(map[string]bool)
	for _, n := range cascadia.QueryAll(root, assetRefs) {
		attr := "src"
		if n.Data == "link" {
			attr = "href"
		}
		ref, ok := localRef(attrValue(n, attr))
		if !ok || seen[ref] {
			continue
		}
		seen[ref] = true
		assets = append(assets, ref)
		if !m.Has(ref) {
			missing = append(missing, ref)
		}
	}
	return assets, missing
}

// localRef turns a reference into an archive path. External URLs, data
// URIs and fragments are not local.
func localRef(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}
	name := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	if name == "" {
		return "", false
	}
	return name, true
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max])) + "…"
}
