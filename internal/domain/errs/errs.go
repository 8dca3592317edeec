// Package errs defines the error taxonomy shared by the pipeline stages.
//
// Every failure carries a kind sentinel. Callers branch with errors.Is on the
// sentinel or with KindOf on the coarse class; nobody matches on messages.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Each one belongs to exactly one Class.
var (
	// Input validation.
	ErrNoText    = errors.New("no text extracted")
	ErrInvalidID = errors.New("invalid plan id")

	// Upstream format.
	ErrNonJSONResponse = errors.New("model response is not JSON")
	ErrResponseParse   = errors.New("model response parse error")

	// Not found.
	ErrNotFound = errors.New("plan not found")

	// Unexpected / transport.
	ErrFetch = errors.New("url fetch failed")
	ErrOCR   = errors.New("text detection failed")
	ErrLLM   = errors.New("chat completion failed")
	ErrStore = errors.New("plan store failure")
)

// Class groups kinds into the four categories callers act on.
type Class int

const (
	// ClassUnexpected covers transport failures and anything unclassified.
	ClassUnexpected Class = iota
	ClassInvalidInput
	ClassUpstreamFormat
	ClassNotFound
)

func (c Class) String() string {
	switch c {
	case ClassInvalidInput:
		return "invalid_input"
	case ClassUpstreamFormat:
		return "upstream_format"
	case ClassNotFound:
		return "not_found"
	default:
		return "unexpected"
	}
}

// Error is a failure tagged with the operation that produced it and its kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return e.Kind.Error()
	}
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool { return e.Kind == target }

func (e *Error) Unwrap() error { return e.Err }

// NewKind returns an error of the given kind with no underlying cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind tags err with op and kind. A nil err still produces a kind error.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf classifies err. Unknown and nil-kind errors are ClassUnexpected.
func KindOf(err error) Class {
	switch {
	case err == nil:
		return ClassUnexpected
	case errors.Is(err, ErrNoText), errors.Is(err, ErrInvalidID):
		return ClassInvalidInput
	case errors.Is(err, ErrNonJSONResponse), errors.Is(err, ErrResponseParse):
		return ClassUpstreamFormat
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	default:
		return ClassUnexpected
	}
}
