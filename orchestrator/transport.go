package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/use-agent/sitegrab/models"
)

// ErrTooLarge is returned when the response body exceeds the configured cap.
var ErrTooLarge = errors.New("orchestrator: response body exceeds limit")

// Collaborator is the remote scraping service.
type Collaborator interface {
	// Scrape submits the request and returns the raw response, whatever its
	// status. A *TransportError means no response was received at all.
	Scrape(ctx context.Context, req *models.ScrapeRequest) (*RawResponse, error)
}

// RawResponse is the unclassified reply of the scraping service.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is in the 2xx range.
func (r *RawResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// TransportError wraps a failure that happened before any response arrived.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "orchestrator: service unreachable: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPOptions configures an HTTPCollaborator.
type HTTPOptions struct {
	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client

	// Timeout bounds each call, including reading the body. Zero means none.
	Timeout time.Duration

	// MaxBytes caps the body size read into memory. Zero means no cap.
	MaxBytes int64

	// UserAgent is sent with every request when non-empty.
	UserAgent string
}

// HTTPCollaborator talks to the scraping service over HTTP.
type HTTPCollaborator struct {
	endpoint  string
	client    *http.Client
	maxBytes  int64
	userAgent string
}

// NewHTTPCollaborator creates a collaborator posting to endpoint.
func NewHTTPCollaborator(endpoint string, opts HTTPOptions) *HTTPCollaborator {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPCollaborator{
		endpoint:  endpoint,
		client:    client,
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
	}
}

// Scrape posts {"url": ...} and reads the whole body as bytes. The declared
// content type is ignored: the body may be an archive or a JSON error.
func (c *HTTPCollaborator) Scrape(ctx context.Context, req *models.ScrapeRequest) (*RawResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/zip, application/json, */*")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if c.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read body: %w", err)
	}

	raw := &RawResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		// Only an archive is refused; an error body is cut and still decoded.
		if raw.OK() {
			return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, c.maxBytes)
		}
		raw.Body = data[:c.maxBytes]
	}
	return raw, nil
}
