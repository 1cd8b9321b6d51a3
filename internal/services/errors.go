package services

import "errors"

// Failure kinds shared by the AniList and LLM clients. Clients wrap one of
// these so callers can branch with errors.Is; Outcome maps them to the
// label used in metrics and logs.
var (
	ErrTransport        = errors.New("transport failure")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrServiceReported  = errors.New("service reported error")
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrNotFound         = errors.New("not found")
)

func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, ErrServiceReported):
		return "service_error"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	default:
		return "error"
	}
}
