package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/use-agent/sitegrab/models"
)

func TestClassify_ServerErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind models.Kind
		wantMsg  string
	}{
		{"detail string", 400, `{"detail":"blocked by robots.txt"}`, models.KindServer, "blocked by robots.txt"},
		{"detail verbatim", 500, `{"detail":"An internal error occurred: boom"}`, models.KindServer, "An internal error occurred: boom"},
		{"validation list", 422, `{"detail":[{"loc":["body","url"],"msg":"field required"},{"msg":"str type expected"}]}`, models.KindServer, "field required; str type expected"},
		{"no detail field", 500, `{"error":"nope"}`, models.KindServer, models.MsgGenericServer},
		{"empty detail", 500, `{"detail":""}`, models.KindServer, models.MsgGenericServer},
		{"json scalar", 502, `"oops"`, models.KindServer, models.MsgGenericServer},
		{"html body", 502, `<html>Bad Gateway</html>`, models.KindUnreadableServer, models.MsgUnreadableBody},
		{"empty body", 500, ``, models.KindUnreadableServer, models.MsgUnreadableBody},
		{"invalid utf8", 500, "\xff\xfe\x00", models.KindUnreadableServer, models.MsgUnreadableBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classify(&RawResponse{StatusCode: tt.status, Header: http.Header{}, Body: []byte(tt.body)}, nil)
			if c.failure == nil {
				t.Fatal("expected a failure")
			}
			if c.payload != nil {
				t.Error("a non-success body must never become a payload")
			}
			if c.failure.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", c.failure.Kind, tt.wantKind)
			}
			if c.failure.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", c.failure.Message, tt.wantMsg)
			}
		})
	}
}

func TestClassify_SuccessIgnoresContentType(t *testing.T) {
	body := []byte(`{"detail":"looks like an error but status is 200"}`)
	h := http.Header{}
	h.Set("Content-Type", "application/json")

	c := classify(&RawResponse{StatusCode: http.StatusOK, Header: h, Body: body}, nil)
	if c.failure != nil {
		t.Fatalf("unexpected failure: %v", c.failure)
	}
	if string(c.payload) != string(body) {
		t.Errorf("payload = %q", c.payload)
	}
	if c.filename != DefaultFilename {
		t.Errorf("filename = %q, want default", c.filename)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.Kind
	}{
		{"transport", &TransportError{Err: errors.New("dial tcp: connection refused")}, models.KindConnection},
		{"deadline", fmt.Errorf("read body: %w", context.DeadlineExceeded), models.KindConnection},
		{"net timeout", fmt.Errorf("read body: %w", timeoutErr{}), models.KindConnection},
		{"canceled", &TransportError{Err: context.Canceled}, models.KindUnexpected},
		{"too large", fmt.Errorf("%w (10 bytes)", ErrTooLarge), models.KindUnexpected},
		{"other", errors.New("create request: bad endpoint"), models.KindUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classify(nil, tt.err)
			if c.failure == nil {
				t.Fatal("expected a failure")
			}
			if c.failure.Kind != tt.want {
				t.Errorf("kind = %s, want %s", c.failure.Kind, tt.want)
			}
			if !errors.Is(c.failure, tt.err) {
				t.Error("failure should wrap the original error")
			}
		})
	}
}

func TestClassify_NilResponse(t *testing.T) {
	c := classify(nil, nil)
	if c.failure == nil || c.failure.Kind != models.KindUnexpected {
		t.Fatalf("expected unexpected failure, got %+v", c.failure)
	}
}
