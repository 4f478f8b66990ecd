package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed backend call.
type ErrorKind string

const (
	KindNetwork  ErrorKind = "network"
	KindServer   ErrorKind = "server"
	KindAuth     ErrorKind = "auth"
	KindNotFound ErrorKind = "not_found"
	KindDecode   ErrorKind = "decode"
)

// ErrServerUnreachable is the message shown for every transport failure.
var ErrServerUnreachable = errors.New("could not reach the server, check your connection and try again")

// Error describes a failed request to the backend.
type Error struct {
	Op      string
	Kind    ErrorKind
	Status  int
	Message string // server-provided text, shown verbatim
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "api error"
	}
	switch e.Kind {
	case KindServer, KindAuth, KindNotFound:
		if e.Message != "" {
			return e.Message
		}
	case KindNetwork:
		return ErrServerUnreachable.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is(err, ErrServerUnreachable) match network failures.
func (e *Error) Is(target error) bool {
	return target == ErrServerUnreachable && e != nil && e.Kind == KindNetwork
}

// Retryable reports whether repeating the same request may succeed.
func (e *Error) Retryable() bool {
	return e != nil && (e.Kind == KindNetwork || e.Status >= 500)
}

// KindOf returns the kind of an *Error anywhere in err's chain, or "".
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

func wrapError(op string, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
