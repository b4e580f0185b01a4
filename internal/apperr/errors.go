// Package apperr holds the failure taxonomy shared by the sync engine.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNetworkFailure  = errors.New("network failure")
	ErrServerRejected  = errors.New("server rejected request")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyInFlight = errors.New("already in flight")
	// ErrCacheMiss is internal; read-through always resolves it with a fetch.
	ErrCacheMiss     = errors.New("cache miss")
	ErrInvalidTarget = errors.New("invalid target")
	ErrInvalidInput  = errors.New("invalid input")
)

// Error describes a failed remote call.
type Error struct {
	Kind   error
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is lets errors.Is match the Kind sentinel.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Network(op string, err error) error {
	return &Error{Kind: ErrNetworkFailure, Op: op, Err: err}
}

func Rejected(op string, status int) error {
	return &Error{Kind: ErrServerRejected, Op: op, Status: status}
}

func NotFound(op string) error {
	return &Error{Kind: ErrNotFound, Op: op, Status: 404}
}

// Retryable reports whether a caller should offer a manual retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetworkFailure) || errors.Is(err, ErrServerRejected)
}
