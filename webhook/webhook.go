package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	EventSucceeded = "scrape.succeeded"
	EventFailed    = "scrape.failed"
)

// SignatureHeader carries the HMAC-SHA256 of the body as "sha256=<hex>".
const SignatureHeader = "X-Sitegrab-Signature"

// DeliveryHeader carries the event ID; it is the same across retries.
const DeliveryHeader = "X-Sitegrab-Delivery"

// DefaultDelays are the waits before each delivery attempt: one immediate
// try followed by retries after 1s, 5s and 30s.
var DefaultDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

// Event is the payload sent to webhook endpoints.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	Token     uint64 `json:"token"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Succeeded is the Data of a scrape.succeeded event.
type Succeeded struct {
	Filename string `json:"filename"`
	Size     int    `json:"size"`
}

// Failed is the Data of a scrape.failed event.
type Failed struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notifier delivers events to a single endpoint.
type Notifier struct {
	url       string
	secret    string
	userAgent string
	client    *http.Client
	delays    []time.Duration

	wg sync.WaitGroup
}

// New creates a Notifier. The body is signed when secret is non-empty.
func New(url, secret, userAgent string) *Notifier {
	return &Notifier{
		url:       url,
		secret:    secret,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
		delays:    DefaultDelays,
	}
}

// Deliver sends an event synchronously.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}
	if event.ID != "" {
		req.Header.Set(DeliveryHeader, event.ID)
	}
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Notify delivers an event in the background, retrying on failure. The
// outcome is only logged.
func (n *Notifier) Notify(event *Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	if event.ID == "" {
		event.ID = newID()
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for attempt, delay := range n.delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.Deliver(ctx, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", n.url,
					"id", event.ID,
					"event", event.Type,
					"token", event.Token,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", n.url,
				"id", event.ID,
				"event", event.Type,
				"token", event.Token,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", n.url,
			"id", event.ID,
			"event", event.Type,
			"token", event.Token,
		)
	}()
}

// Wait blocks until every pending delivery has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// newID returns a time-ordered event ID.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
