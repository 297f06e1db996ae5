package models

import (
	"errors"
	"net/url"
	"strings"
)

// ScrapeRequest is the payload sent to the scraping service, and the body of
// POST /api/v1/submit on the console.
type ScrapeRequest struct {
	// URL is the website to archive. Required, absolute, http or https.
	URL string `json:"url"`
}

// Normalize trims surrounding whitespace from the URL.
func (r *ScrapeRequest) Normalize() {
	r.URL = strings.TrimSpace(r.URL)
}

// Validate reports why the URL cannot be submitted, or nil.
func (r *ScrapeRequest) Validate() error {
	if r.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return errors.New("url is not well-formed")
	}
	if !u.IsAbs() {
		return errors.New("url must be absolute; include http:// or https://")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if u.Hostname() == "" {
		return errors.New("url has no host")
	}
	return nil
}
