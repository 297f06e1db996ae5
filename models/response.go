package models

import "time"

// SubmitResponse is the response for POST /api/v1/submit.
type SubmitResponse struct {
	// Success indicates whether the submission produced an archive.
	Success bool `json:"success"`

	// State is the orchestrator state after the call resolved.
	State State `json:"state"`

	// Token identifies the call that produced this response.
	Token uint64 `json:"token"`

	// Filename is the name suggested by the scraping service, verbatim.
	Filename string `json:"filename,omitempty"`

	// Size is the archive size in bytes.
	Size int `json:"size,omitempty"`

	// DownloadURL is the console route that hands the archive off.
	DownloadURL string `json:"download_url,omitempty"`

	// Preview summarises the archive contents when previews are enabled.
	Preview *ArchivePreview `json:"preview,omitempty"`

	// ContentChanged is true when the previous archive for the same URL
	// had a noticeably different index page.
	ContentChanged bool `json:"content_changed,omitempty"`

	// LayoutChanged is true when the page structure (its tag sequence)
	// differs noticeably from the previous archive for the same URL.
	LayoutChanged bool `json:"layout_changed,omitempty"`

	// Timing reports how long the call took.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// ArchivePreview is the API view of an archive manifest.
type ArchivePreview struct {
	Entries       int            `json:"entries"`
	TotalBytes    int64          `json:"total_bytes"`
	Categories    map[string]int `json:"categories"`
	Title         string         `json:"title,omitempty"`
	Description   string         `json:"description,omitempty"`
	Excerpt       string         `json:"excerpt,omitempty"`
	Markdown      string         `json:"markdown,omitempty"`
	MissingAssets []string       `json:"missing_assets,omitempty"`
}

// TimingInfo breaks down the time spent in a submission.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`
}

// StateResponse is the response for GET /api/v1/state.
type StateResponse struct {
	State    State        `json:"state"`
	Token    uint64       `json:"token"`
	Filename string       `json:"filename,omitempty"`
	Size     int          `json:"size,omitempty"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// HistoryEntry records the terminal outcome of one submission.
type HistoryEntry struct {
	URL         string    `json:"url"`
	Kind        Kind      `json:"kind,omitempty"` // empty on success
	Message     string    `json:"message,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	Size        int       `json:"size,omitempty"`
	Fingerprint uint64    `json:"fingerprint,omitempty"`
	Layout      uint64    `json:"layout,omitempty"`
	At          time.Time `json:"at"`
}

// Succeeded reports whether the entry describes a downloaded archive.
func (e HistoryEntry) Succeeded() bool {
	return e.Kind == ""
}

// HistoryResponse is the response for GET /api/v1/history.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status     string `json:"status"` // "healthy" or "busy"
	Uptime     string `json:"uptime"`
	State      State  `json:"state"`
	ServiceURL string `json:"service_url"`
	Version    string `json:"version"`
}
