package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/sitegrab/config"
	"github.com/use-agent/sitegrab/history"
	"github.com/use-agent/sitegrab/models"
	"github.com/use-agent/sitegrab/orchestrator"
	"github.com/use-agent/sitegrab/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(serviceURL string) *config.Config {
	return &config.Config{
		Service:   config.ServiceConfig{URL: serviceURL, Timeout: 5 * time.Second},
		Console:   config.ConsoleConfig{Mode: gin.TestMode},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
}

// newConsole wires a console to a fake scraping service. A nil service
// handler means the service is down.
func newConsole(t *testing.T, service http.HandlerFunc, tweak func(*config.Config)) (*gin.Engine, *session.Session) {
	t.Helper()

	var url string
	if service != nil {
		srv := httptest.NewServer(service)
		t.Cleanup(srv.Close)
		url = srv.URL + "/scrape"
	} else {
		srv := httptest.NewServer(http.NotFoundHandler())
		url = srv.URL + "/scrape"
		srv.Close()
	}

	cfg := testConfig(url)
	if tweak != nil {
		tweak(cfg)
	}

	store := history.New(10, time.Hour)
	t.Cleanup(store.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	collab := orchestrator.NewHTTPCollaborator(cfg.Service.URL, orchestrator.HTTPOptions{Timeout: cfg.Service.Timeout})
	sess := &session.Session{
		Orch:    orchestrator.New(collab, orchestrator.WithLogger(logger)),
		History: store,
	}
	return NewRouter(sess, cfg, "test", time.Now()), sess
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func zipService(filename, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		w.Header().Set("Content-Type", "application/zip")
		io.WriteString(w, body)
	}
}

func TestSubmitThenDownload(t *testing.T) {
	r, _ := newConsole(t, zipService("examplecom.zip", "PK\x03\x04payload"), nil)

	w := do(r, http.MethodPost, "/api/v1/submit", `{"url":"https://example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[models.SubmitResponse](t, w)
	if !resp.Success || resp.Filename != "examplecom.zip" || resp.Size != len("PK\x03\x04payload") {
		t.Errorf("submit response = %+v", resp)
	}
	if resp.DownloadURL != "/api/v1/download" || resp.State != models.StateSucceeded {
		t.Errorf("download url %q, state %s", resp.DownloadURL, resp.State)
	}

	state := decode[models.StateResponse](t, do(r, http.MethodGet, "/api/v1/state", ""))
	if state.State != models.StateSucceeded || state.Filename != "examplecom.zip" {
		t.Errorf("state = %+v", state)
	}

	w = do(r, http.MethodGet, "/api/v1/download", "")
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="examplecom.zip"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if w.Body.String() != "PK\x03\x04payload" {
		t.Errorf("download body = %q", w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/download", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second download status = %d, want 404", w.Code)
	}
	if e := decode[models.SubmitResponse](t, w).Error; e == nil || e.Code != models.ErrCodeNoArchive {
		t.Errorf("second download error = %+v", e)
	}
	if w.Header().Get("Content-Disposition") != "" {
		t.Error("404 must not carry attachment headers")
	}

	state = decode[models.StateResponse](t, do(r, http.MethodGet, "/api/v1/state", ""))
	if state.State != models.StateIdle {
		t.Errorf("state after hand-off = %s, want idle", state.State)
	}
}

func TestDownload_HardensFilename(t *testing.T) {
	r, _ := newConsole(t, zipService(`../../etc/pass"wd.zip`, "zip"), nil)

	do(r, http.MethodPost, "/api/v1/submit", `{"url":"https://example.com"}`)
	w := do(r, http.MethodGet, "/api/v1/download", "")
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="passwd.zip"` {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestSubmit_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		service  http.HandlerFunc
		body     string
		want     int
		wantCode string
	}{
		{
			name:     "invalid url",
			service:  zipService("a.zip", "zip"),
			body:     `{"url":"example.com"}`,
			want:     http.StatusBadRequest,
			wantCode: string(models.KindValidation),
		},
		{
			name:     "malformed body",
			service:  zipService("a.zip", "zip"),
			body:     `{"url":`,
			want:     http.StatusBadRequest,
			wantCode: models.ErrCodeInvalidInput,
		},
		{
			name: "server error",
			service: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"detail":"blocked by robots.txt"}`)
			},
			body:     `{"url":"https://example.com"}`,
			want:     http.StatusBadGateway,
			wantCode: string(models.KindServer),
		},
		{
			name: "unreadable server error",
			service: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				io.WriteString(w, "<html>oops</html>")
			},
			body:     `{"url":"https://example.com"}`,
			want:     http.StatusBadGateway,
			wantCode: string(models.KindUnreadableServer),
		},
		{
			name:     "service down",
			service:  nil,
			body:     `{"url":"https://example.com"}`,
			want:     http.StatusServiceUnavailable,
			wantCode: string(models.KindConnection),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newConsole(t, tt.service, nil)

			w := do(r, http.MethodPost, "/api/v1/submit", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			resp := decode[models.SubmitResponse](t, w)
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("response = %+v, want error code %s", resp, tt.wantCode)
			}
		})
	}
}

func TestSubmit_ServerMessageVerbatim(t *testing.T) {
	r, _ := newConsole(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail":"Failed to reach the website: timeout"}`)
	}, nil)

	resp := decode[models.SubmitResponse](t, do(r, http.MethodPost, "/api/v1/submit", `{"url":"https://example.com"}`))
	if resp.Error == nil || resp.Error.Message != "Failed to reach the website: timeout" {
		t.Errorf("error = %+v", resp.Error)
	}
	if resp.State != models.StateFailed {
		t.Errorf("state = %s, want failed", resp.State)
	}
}

func TestSubmit_RateLimited(t *testing.T) {
	r, _ := newConsole(t, zipService("a.zip", "zip"), func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	})

	if w := do(r, http.MethodPost, "/api/v1/submit", `{"url":"https://example.com"}`); w.Code != http.StatusOK {
		t.Fatalf("first submit status = %d", w.Code)
	}
	w := do(r, http.MethodPost, "/api/v1/submit", `{"url":"https://example.com"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second submit status = %d, want 429", w.Code)
	}
	if e := decode[models.SubmitResponse](t, w).Error; e == nil || e.Code != models.ErrCodeRateLimited {
		t.Errorf("error = %+v", e)
	}

	// Reads are never rate limited.
	if w := do(r, http.MethodGet, "/api/v1/state", ""); w.Code != http.StatusOK {
		t.Errorf("state status = %d", w.Code)
	}
}

func TestRevokeArchive(t *testing.T) {
	r, sess := newConsole(t, zipService("a.zip", "zip"), nil)

	do(r, http.MethodPost, "/api/v1/submit", `{"url":"https://example.com"}`)
	if sess.Orch.LiveHandles() != 1 {
		t.Fatalf("live handles = %d, want 1", sess.Orch.LiveHandles())
	}

	for i := 0; i < 2; i++ {
		if w := do(r, http.MethodDelete, "/api/v1/archive", ""); w.Code != http.StatusNoContent {
			t.Errorf("delete #%d status = %d, want 204", i+1, w.Code)
		}
	}
	if sess.Orch.LiveHandles() != 0 {
		t.Errorf("live handles = %d, want 0", sess.Orch.LiveHandles())
	}
	if w := do(r, http.MethodGet, "/api/v1/download", ""); w.Code != http.StatusNotFound {
		t.Errorf("download after revoke = %d, want 404", w.Code)
	}
}

func TestHealthAndHistory(t *testing.T) {
	r, _ := newConsole(t, zipService("a.zip", "zip"), nil)

	health := decode[models.HealthResponse](t, do(r, http.MethodGet, "/api/v1/health", ""))
	if health.Status != "healthy" || health.State != models.StateIdle || health.Version != "test" {
		t.Errorf("health = %+v", health)
	}
	if !strings.HasSuffix(health.ServiceURL, "/scrape") {
		t.Errorf("service url = %q", health.ServiceURL)
	}

	hist := decode[models.HistoryResponse](t, do(r, http.MethodGet, "/api/v1/history", ""))
	if hist.Entries == nil || len(hist.Entries) != 0 {
		t.Errorf("empty history = %+v", hist)
	}

	do(r, http.MethodPost, "/api/v1/submit", `{"url":"https://example.com"}`)
	do(r, http.MethodPost, "/api/v1/submit", `{"url":"nope"}`)

	hist = decode[models.HistoryResponse](t, do(r, http.MethodGet, "/api/v1/history", ""))
	if len(hist.Entries) != 2 {
		t.Fatalf("history has %d entries, want 2", len(hist.Entries))
	}
}
