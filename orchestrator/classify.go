package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/sitegrab/models"
)

// classified is the result of inspecting one collaborator reply. Exactly one
// of failure or payload is meaningful.
type classified struct {
	payload  []byte
	filename string
	failure  *models.Failure
}

// classify turns a collaborator reply into either an archive payload or a
// fully classified failure. The decision is keyed on the transport outcome
// and the status code, never on the declared content type.
func classify(raw *RawResponse, err error) classified {
	if err != nil {
		return classified{failure: classifyError(err)}
	}
	if raw == nil {
		return classified{failure: models.NewFailure(models.KindUnexpected, "service returned no response", nil)}
	}
	if !raw.OK() {
		return classified{failure: decodeServerError(raw.StatusCode, raw.Body)}
	}
	return classified{
		payload:  raw.Body,
		filename: FilenameFromHeader(raw.Header),
	}
}

// classifyError maps errors that prevented a reply from being read.
func classifyError(err error) *models.Failure {
	var te *TransportError
	switch {
	case errors.Is(err, context.Canceled):
		return models.NewFailure(models.KindUnexpected, "request was canceled", err)
	case errors.As(err, &te), isTimeout(err):
		return models.NewFailure(models.KindConnection, "scraping service unreachable", err)
	case errors.Is(err, ErrTooLarge):
		return models.NewFailure(models.KindUnexpected, "archive is larger than the configured limit", err)
	default:
		return models.NewFailure(models.KindUnexpected, err.Error(), err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// decodeServerError reads a non-success body as UTF-8 JSON and surfaces its
// detail field verbatim. Bodies that are not valid JSON are unreadable.
func decodeServerError(status int, body []byte) *models.Failure {
	statusErr := fmt.Errorf("service returned status %d", status)

	if !utf8.Valid(body) {
		return models.NewFailure(models.KindUnreadableServer, models.MsgUnreadableBody, statusErr)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.NewFailure(models.KindUnreadableServer, models.MsgUnreadableBody,
			fmt.Errorf("%w: %v", statusErr, err))
	}

	obj, _ := payload.(map[string]any)
	msg := detailMessage(obj["detail"])
	if msg == "" {
		msg = models.MsgGenericServer
	}
	return models.NewFailure(models.KindServer, msg, statusErr)
}

// detailMessage extracts a human-readable message from a detail value.
// A plain string is returned as is; a validation list of {"msg": ...}
// objects is joined.
func detailMessage(detail any) string {
	switch d := detail.(type) {
	case string:
		return d
	case []any:
		var parts []string
		for _, item := range d {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := m["msg"].(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}
