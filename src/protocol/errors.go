package protocol

import (
	"errors"
	"fmt"
)

// StatusError is a non-OK status reported by the daemon.
type StatusError struct {
	Status  Status
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

// ProtocolError is a frame that could not be decoded.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}

func protocolErrorf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// IsStatusError reports whether err wraps a StatusError and returns it.
func IsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsProtocolError reports whether err wraps a ProtocolError and returns it.
func IsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
