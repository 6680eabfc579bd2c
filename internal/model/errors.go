package model

import "fmt"

// ErrorKind classifies a failure the way spec §7 taxonomizes them: by
// how it propagates, not by its Go type.
type ErrorKind string

const (
	// KindProtocol: malformed message, out-of-order state transition, bad
	// channel id. Fatal to the offending transport.
	KindProtocol ErrorKind = "protocol"
	// KindTransport: ICE failure, WS close, peer timeout. Fatal to the
	// participant; a Host disconnect cascades to room close.
	KindTransport ErrorKind = "transport"
	// KindUpstream: cannot reach game host, pairing absent, connection
	// terminated by host. Fatal to the streamer.
	KindUpstream ErrorKind = "upstream"
	// KindCapacity: channel queue full for a non-critical message.
	// Recovered locally via drop_policy; never fatal.
	KindCapacity ErrorKind = "capacity"
	// KindAuthorization: input event from a participant lacking the
	// required permission. Silently ignored; the broker keeps no count
	// of these.
	KindAuthorization ErrorKind = "authorization"
)

// Error is the module-wide error type carrying an ErrorKind so callers
// can decide propagation policy (recover locally vs. surface fatally)
// without type-switching on concrete error values.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether an error of this kind is terminal to its
// owning participant/transport/streamer (protocol, transport, upstream)
// as opposed to recoverable in place (capacity, authorization).
func (e *Error) Fatal() bool {
	switch e.Kind {
	case KindProtocol, KindTransport, KindUpstream:
		return true
	default:
		return false
	}
}

// NewError wraps err with the given kind and operation name.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// DebugLogType enumerates the debug-line severities mirrored to peers
// before a terminal event, so UIs can present a meaningful cause even
// when the underlying error code is opaque.
type DebugLogType string

const (
	DebugFatal            DebugLogType = "fatal"
	DebugFatalDescription DebugLogType = "fatalDescription"
	DebugInformError      DebugLogType = "informError"
	DebugRecover          DebugLogType = "recover"
)
