// Package session runs submissions for a caller (console, CLI or MCP server)
// and attaches what they need beyond the raw outcome: an archive preview,
// change detection against earlier downloads, history and notifications.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/use-agent/sitegrab/archive"
	"github.com/use-agent/sitegrab/history"
	"github.com/use-agent/sitegrab/models"
	"github.com/use-agent/sitegrab/orchestrator"
	"github.com/use-agent/sitegrab/simhash"
	"github.com/use-agent/sitegrab/webhook"
)

// Session wraps one orchestrator. History and Notifier are optional.
type Session struct {
	Orch     *orchestrator.Orchestrator
	History  *history.Store
	Notifier *webhook.Notifier

	// Preview enables archive inspection after a successful submission.
	Preview bool
}

// Result is an orchestrator outcome plus session extras.
type Result struct {
	URL      string
	Outcome  orchestrator.Outcome
	Manifest *archive.Manifest // nil without preview or when inspection failed

	// ContentChanged is set when the index page differs noticeably from the
	// last archive downloaded for the same URL.
	ContentChanged bool

	// LayoutChanged is the same comparison for the page's tag structure.
	LayoutChanged bool
	Duration      time.Duration
}

// Submit runs one submission. A superseded call is returned as is: it is
// not recorded and triggers no notification.
func (s *Session) Submit(ctx context.Context, rawURL string) *Result {
	return s.SubmitWith(ctx, rawURL, s.Preview)
}

// SubmitWith is Submit with the preview setting chosen per call.
func (s *Session) SubmitWith(ctx context.Context, rawURL string, preview bool) *Result {
	start := time.Now()
	url := strings.TrimSpace(rawURL)

	out := s.Orch.Submit(ctx, rawURL)
	res := &Result{URL: url, Outcome: out}

	if out.Failure != nil && out.Failure.Kind == models.KindSuperseded {
		res.Duration = time.Since(start)
		return res
	}

	entry := models.HistoryEntry{URL: url}
	if out.Succeeded() {
		h := out.Download.Handle
		entry.Filename = out.Download.Filename
		entry.Size = h.Size()

		if preview {
			res.Manifest = s.inspect(h, url)
		}
		if res.Manifest != nil && res.Manifest.Index != nil {
			entry.Fingerprint = res.Manifest.Index.Fingerprint
			entry.Layout = res.Manifest.Index.Layout
		}
		if s.History != nil {
			prevContent, prevLayout := s.History.Fingerprints(url)
			res.ContentChanged = simhash.Changed(prevContent, entry.Fingerprint)
			res.LayoutChanged = simhash.Changed(prevLayout, entry.Layout)
		}
	} else {
		entry.Kind = out.Failure.Kind
		entry.Message = out.Failure.UserMessage()
	}

	if s.History != nil {
		s.History.Record(entry)
	}
	s.notify(out, entry)

	res.Duration = time.Since(start)
	return res
}

func (s *Session) inspect(h *orchestrator.Handle, url string) *archive.Manifest {
	data, err := h.Bytes()
	if err != nil {
		// Superseded or handed off in the meantime.
		return nil
	}
	m, err := archive.Inspect(data, url)
	if err != nil {
		slog.Warn("archive preview failed", "url", url, "token", h.Token(), "error", err)
		return nil
	}
	return m
}

func (s *Session) notify(out orchestrator.Outcome, entry models.HistoryEntry) {
	if s.Notifier == nil {
		return
	}
	ev := &webhook.Event{URL: entry.URL, Token: out.Token}
	if out.Succeeded() {
		ev.Type = webhook.EventSucceeded
		ev.Data = webhook.Succeeded{Filename: entry.Filename, Size: entry.Size}
	} else {
		ev.Type = webhook.EventFailed
		ev.Data = webhook.Failed{Kind: string(entry.Kind), Message: entry.Message}
	}
	s.Notifier.Notify(ev)
}

// Preview converts a manifest to its API form. It returns nil for nil.
func Preview(m *archive.Manifest) *models.ArchivePreview {
	if m == nil {
		return nil
	}
	p := &models.ArchivePreview{
		Entries:    m.Entries,
		TotalBytes: m.TotalBytes,
		Categories: m.Categories,
	}
	if idx := m.Index; idx != nil {
		p.Title = idx.Title
		p.Description = idx.Description
		p.Excerpt = idx.Excerpt
		p.Markdown = idx.Markdown
		p.MissingAssets = idx.MissingAssets
	}
	return p
}

// Describe renders a manifest as plain text for terminals and tool output.
func Describe(m *archive.Manifest) string {
	if m == nil {
		return ""
	}
	var b strings.Builder

	fmt.Fprintf(&b, "Entries: %d (%d bytes uncompressed)\n", m.Entries, m.TotalBytes)
	cats := make([]string, 0, len(m.Categories))
	for c := range m.Categories {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(&b, "  %-7s %d\n", c, m.Categories[c])
	}

	idx := m.Index
	if idx == nil {
		b.WriteString("No index.html in archive\n")
		return b.String()
	}
	if idx.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", idx.Title)
	}
	if idx.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", idx.Description)
	}
	if idx.Excerpt != "" {
		fmt.Fprintf(&b, "Excerpt: %s\n", idx.Excerpt)
	}
	if len(idx.MissingAssets) > 0 {
		fmt.Fprintf(&b, "Missing assets (%d):\n", len(idx.MissingAssets))
		for _, a := range idx.MissingAssets {
			fmt.Fprintf(&b, "  - %s\n", a)
		}
	}
	return b.String()
}
