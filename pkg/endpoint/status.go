package endpoint

import (
	"errors"
	"fmt"
)

// Status is the 16-bit result code of an endpoint operation.
type Status uint16

const (
	// StatusOK indicates success.
	StatusOK Status = 0

	// StatusNotSupported indicates an invalid mode or version, or a call
	// made out of order.
	StatusNotSupported Status = 1

	// StatusFail indicates an operational failure: queue full or empty,
	// not connected, negotiation failed.
	StatusFail Status = 2
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotSupported:
		return "NOT_SUPPORTED"
	case StatusFail:
		return "FAIL"
	default:
		return fmt.Sprintf("STATUS(%d)", uint16(s))
	}
}

// Base errors. Every error returned by an Endpoint wraps exactly one of
// them, so StatusOf can classify it.
var (
	ErrNotSupported = errors.New("not supported")
	ErrFail         = errors.New("operation failed")
)

// ErrNotImplemented is returned by operations that have no implementation.
var ErrNotImplemented = fmt.Errorf("%w: not implemented", ErrNotSupported)

// Specific errors.
var (
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported config version", ErrNotSupported)
	ErrInvalidQueueSize   = fmt.Errorf("%w: queue size must be positive", ErrNotSupported)
	ErrInvalidMode        = fmt.Errorf("%w: invalid networking mode", ErrNotSupported)
	ErrWrongMode          = fmt.Errorf("%w: operation not valid in this networking mode", ErrNotSupported)
	ErrInvalidState       = fmt.Errorf("%w: operation not valid in this state", ErrNotSupported)
	ErrInvalidAddress     = fmt.Errorf("%w: invalid address", ErrNotSupported)
	ErrInvalidEvent       = fmt.Errorf("%w: unknown event", ErrNotSupported)

	ErrNotConnected   = fmt.Errorf("%w: not connected", ErrFail)
	ErrInvalidPayload = fmt.Errorf("%w: invalid payload size", ErrFail)
	ErrTxQueueFull    = fmt.Errorf("%w: tx queue full", ErrFail)
	ErrRxQueueEmpty   = fmt.Errorf("%w: rx queue empty", ErrFail)
	ErrBufferTooSmall = fmt.Errorf("%w: buffer too small", ErrFail)
	ErrNoLease        = fmt.Errorf("%w: no active lease", ErrFail)
	ErrRequestPending = fmt.Errorf("%w: address request already pending", ErrFail)
	ErrNoRoute        = fmt.Errorf("%w: no route to destination", ErrFail)
	ErrLink           = fmt.Errorf("%w: link error", ErrFail)
)

// StatusOf maps an error returned by an Endpoint to its status code.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotSupported):
		return StatusNotSupported
	default:
		return StatusFail
	}
}
