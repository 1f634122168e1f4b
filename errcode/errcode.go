package errcode

import (
	"context"
	"errors"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	Unsupported    Code = "unsupported"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	InvalidTopic   Code = "invalid_topic"
	OutOfRange     Code = "out_of_range"
	Timeout        Code = "timeout"

	// Tracker collaborators
	NotConfigured Code = "not_configured"
	NoFix         Code = "no_fix"
	SendFailed    Code = "send_failed"
	ModemNotReady Code = "modem_not_ready"
	NoNetwork     Code = "no_network"
	SensorAbsent  Code = "sensor_absent"
	StorageFailed Code = "storage_failed"
	CorruptState  Code = "corrupt_state"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.Timeout) match a wrapped *E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap builds an *E. A nil cause is allowed.
func Wrap(c Code, op string, err error) *E {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	// The outermost *E wins over a bare Code deeper in the chain.
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}

// MapDriverErr maps low-level driver errors to a Code.
// Codes pass through; anything else becomes Error.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	if c := Of(err); c != Error {
		return c
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Error
}
