package talk

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every error returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrBadRequest         = errors.New("talk: bad request")
	ErrUnauthorized       = errors.New("talk: unauthorized")
	ErrForbidden          = errors.New("talk: forbidden")
	ErrNotFound           = errors.New("talk: not found")
	ErrConflict           = errors.New("talk: conflict")
	ErrPreconditionFailed = errors.New("talk: precondition failed")
	// ErrService is the kind of any service-reported failure whose status
	// code has no dedicated kind.
	ErrService = errors.New("talk: service error")

	// ErrNotCapable is raised locally, before any remote call, when the
	// server does not advertise a required feature.
	ErrNotCapable = errors.New("talk: server lacks required capability")
	// ErrStructure is raised when a decoded response lacks an expected field.
	ErrStructure = errors.New("talk: unexpected response structure")
	// ErrParse is raised when the response envelope cannot be decoded at all.
	ErrParse = errors.New("talk: malformed response")
	// ErrInvalidArgument is raised by client-side validation.
	ErrInvalidArgument = errors.New("talk: invalid argument")
)

// ServiceError is a failure reported by the remote service in the envelope
// metadata. Use errors.As to inspect it:
//
//	var svcErr *talk.ServiceError
//	if errors.As(err, &svcErr) {
//	    log.Println(svcErr.StatusCode, svcErr.Message)
//	}
type ServiceError struct {
	// HTTPStatus is the transport status of the response.
	HTTPStatus int
	// StatusCode is the numeric status from the envelope metadata.
	StatusCode int
	// Status is the short status label (usually "failure").
	Status string
	// Message is the human-readable explanation, often empty.
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%d] %s: %s", e.StatusCode, e.Status, e.Message)
}

// Unwrap returns the kind sentinel for the status code.
func (e *ServiceError) Unwrap() error {
	return kindForStatus(e.StatusCode)
}

// OCS v1 reports failures with HTTP 200 and these legacy codes.
const (
	ocsV1Unauthorized = 997
	ocsV1NotFound     = 998
)

func kindForStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized, ocsV1Unauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound, ocsV1NotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusPreconditionFailed:
		return ErrPreconditionFailed
	default:
		return ErrService
	}
}

// CapabilityError names the feature that was missing.
type CapabilityError struct {
	Feature string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("talk: server does not support %q", e.Feature)
}

func (e *CapabilityError) Unwrap() error { return ErrNotCapable }

// StructureError names the path of the field that was missing or had the
// wrong shape.
type StructureError struct {
	Path   string
	Reason string
}

func (e *StructureError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("talk: response is missing %s", e.Path)
	}
	return fmt.Sprintf("talk: response field %s: %s", e.Path, e.Reason)
}

func (e *StructureError) Unwrap() error { return ErrStructure }

// ParseError wraps a failure of the structured decoder.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("talk: unable to parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
