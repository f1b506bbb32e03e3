package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the coordinator can surface to its caller.
type ErrorKind string

const (
	KindInvalidArgument  ErrorKind = "invalid_argument"
	KindInvalidState     ErrorKind = "invalid_state"
	KindBusy             ErrorKind = "busy"
	KindUncertain        ErrorKind = "uncertain"
	KindConflict         ErrorKind = "conflict"
	KindProtocol         ErrorKind = "protocol_error"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindTransientFailure ErrorKind = "transient_failure"
	KindRejected         ErrorKind = "rejected"
	KindUnavailable      ErrorKind = "unavailable"
)

// Local reports whether errors of this kind are decided without touching the network.
func (k ErrorKind) Local() bool {
	switch k {
	case KindInvalidArgument, KindInvalidState, KindBusy, KindUncertain, KindUnavailable:
		return true
	}
	return false
}

// Error is the structured, user-displayable failure shape.
type Error struct {
	Kind    ErrorKind      `json:"kind"`
	Op      string         `json:"op,omitempty"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"errors,omitempty"`
	Status  int            `json:"status,omitempty"`
	Err     error          `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindBusy}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind ErrorKind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// WrapError attaches a kind to an underlying error. The message is taken from err.
func WrapError(kind ErrorKind, op string, err error) *Error {
	e := &Error{Kind: kind, Op: op, Err: err}
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

func IsInvalidArgument(err error) bool { return IsKind(err, KindInvalidArgument) }
func IsInvalidState(err error) bool    { return IsKind(err, KindInvalidState) }
func IsBusy(err error) bool            { return IsKind(err, KindBusy) }
func IsUncertain(err error) bool       { return IsKind(err, KindUncertain) }
func IsConflict(err error) bool        { return IsKind(err, KindConflict) }
func IsProtocol(err error) bool        { return IsKind(err, KindProtocol) }
func IsUnauthorized(err error) bool    { return IsKind(err, KindUnauthorized) }
func IsTransient(err error) bool       { return IsKind(err, KindTransientFailure) }
func IsRejected(err error) bool        { return IsKind(err, KindRejected) }
func IsUnavailable(err error) bool     { return IsKind(err, KindUnavailable) }
