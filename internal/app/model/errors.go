package model

import (
	"context"
	"errors"
)

var (
	// ErrValidation signals input rejected before or by the link service.
	ErrValidation = errors.New("validation error")

	// ErrNetwork covers transport failures, timeouts and unexpected statuses.
	ErrNetwork = errors.New("network error")

	// ErrNotFound signals that a short id does not resolve.
	ErrNotFound = errors.New("short link not found")

	// ErrStorage signals that the local link list could not be persisted or read.
	ErrStorage = errors.New("storage error")
)

// ErrorKind is the coarse failure category shown to users.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindValidation ErrorKind = "validation"
	KindNetwork    ErrorKind = "network"
	KindNotFound   ErrorKind = "not_found"
	KindStorage    ErrorKind = "storage"
)

// KindOf classifies err. Unknown errors count as network failures since
// every remote call ends in one of the typed outcomes.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, context.Canceled):
		return KindNone
	default:
		return KindNetwork
	}
}
