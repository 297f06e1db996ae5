package models

import "fmt"

// Kind classifies why a submission did not produce an archive.
type Kind string

// Failure kinds produced by the orchestrator.
const (
	KindValidation       Kind = "VALIDATION_ERROR"
	KindConnection       Kind = "CONNECTION_FAILURE"
	KindServer           Kind = "SERVER_ERROR"
	KindUnreadableServer Kind = "UNREADABLE_SERVER_ERROR"
	KindUnexpected       Kind = "UNEXPECTED_ERROR"
	KindSuperseded       Kind = "SUPERSEDED"
)

// Error codes used only by the console API.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeNoArchive    = "NO_ARCHIVE"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// Fixed messages for kinds whose text does not come from the server.
const (
	MsgUnreadableBody  = "body could not be decoded"
	MsgGenericServer   = "a server error occurred"
	MsgSuperseded      = "superseded by a newer request"
	msgConnectionHint  = "backend connection failed: is the scraping service running?"
	msgUnexpectedLabel = "an unexpected error occurred"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Failure is a fully classified submission error. It implements the error
// interface and supports error wrapping via Unwrap.
type Failure struct {
	Kind    Kind
	Message string
	Err     error // wrapped original error, never shown verbatim to users
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure creates a new Failure.
func NewFailure(kind Kind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

// UserMessage returns the text to show a person for this failure.
// Server errors are surfaced verbatim; the other kinds get a kind-specific
// prefix so each one reads differently.
func (f *Failure) UserMessage() string {
	switch f.Kind {
	case KindServer:
		return f.Message
	case KindConnection:
		return msgConnectionHint
	case KindUnreadableServer:
		return "an unreadable server error occurred: " + f.Message
	case KindValidation:
		return "invalid URL: " + f.Message
	case KindSuperseded:
		return MsgSuperseded
	default:
		return msgUnexpectedLabel + ": " + f.Message
	}
}

// ToDetail converts a failure to an API-facing ErrorDetail.
func (f *Failure) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: string(f.Kind), Message: f.UserMessage()}
}
