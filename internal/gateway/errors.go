package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrSessionClosed is returned when a Session is used after its block ended.
var ErrSessionClosed = errors.New("gateway: session closed")

// Error reports a failed gateway call.
type Error struct {
	Op     Operation
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.Status, e.Body)
	default:
		return fmt.Sprintf("gateway %s: status %d", e.Op, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code classifies the failure for log lines.
func (e *Error) Code() string {
	switch {
	case errors.Is(e.Err, context.DeadlineExceeded):
		return "GATEWAY_TIMEOUT"
	case errors.Is(e.Err, context.Canceled):
		return "GATEWAY_CANCELLED"
	case errors.Is(e.Err, ErrSessionClosed):
		return "GATEWAY_SESSION_CLOSED"
	case e.Status != 0 && e.Err != nil:
		return "GATEWAY_DECODE"
	case e.Status != 0:
		return "GATEWAY_STATUS"
	default:
		return "GATEWAY_UNAVAILABLE"
	}
}

// StatusCode returns the upstream status of a gateway error, or 0.
func StatusCode(err error) int {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Status
	}
	return 0
}
