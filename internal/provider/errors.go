package provider

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/api"
)

// ErrMissingCredentials is returned before any network call when no API
// token is configured.
var ErrMissingCredentials = errors.New("provider: missing API credentials")

// Error classifies a provider HTTP failure into the API error taxonomy.
// Snippet holds a truncated piece of the provider's response body for
// server-side logs; it is never surfaced to API callers.
type Error struct {
	Status  int
	Type    api.ErrorType
	Snippet string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: HTTP %d (%s)", e.Status, e.Type)
}

const snippetLimit = 256

// BuildError maps a provider HTTP status to the error type surfaced by the
// API: auth failures stay forbidden, other client errors become validation
// errors, everything else is a server error.
func BuildError(status int, body string) *Error {
	var typ api.ErrorType
	switch {
	case status == 401 || status == 403:
		typ = api.TypeForbidden
	case status >= 400 && status < 500:
		typ = api.TypeValidationError
	default:
		typ = api.TypeServerError
	}

	if len(body) > snippetLimit {
		body = body[:snippetLimit]
	}
	return &Error{Status: status, Type: typ, Snippet: body}
}

// AppError converts a provider failure into the caller-facing error. The
// message stays generic so provider payloads never leak.
func (e *Error) AppError() *api.AppError {
	switch e.Type {
	case api.TypeForbidden:
		return api.NewForbiddenError("enhancement provider rejected the credentials")
	case api.TypeValidationError:
		return api.NewValidationError("enhancement provider rejected the request")
	default:
		return &api.AppError{Code: http.StatusBadGateway, Type: api.TypeServerError, Message: "enhancement provider unavailable"}
	}
}

// AsError unwraps a provider *Error if err carries one.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
