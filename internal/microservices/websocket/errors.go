package websocket

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthorized      = errors.New("websocket: unauthorized")
	ErrMalformedEnvelope = errors.New("websocket: malformed envelope")
	ErrHeartbeatTimeout  = errors.New("websocket: heartbeat timeout")
	ErrWaitTimeout       = errors.New("websocket: timed out waiting for a response")
	ErrSessionNotFound   = errors.New("websocket: session not found")
	ErrSessionClosed     = errors.New("websocket: session closed before replying")
	ErrHubClosed         = errors.New("websocket: hub closed")
)

// ProtocolError describes an inbound payload the codec could not turn into an
// envelope. It is answered with a corrective reply and never closes the connection.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedEnvelope, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedEnvelope, e.Reason)
}

func (e *ProtocolError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedEnvelope, e.Err}
	}
	return []error{ErrMalformedEnvelope}
}

// WaitTimeoutError is returned by PendingWait.Wait when no inbound message
// matched before the deadline.
type WaitTimeoutError struct {
	Category Category
	Timeout  time.Duration
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("%s (category=%s, timeout=%s)", ErrWaitTimeout, e.Category, e.Timeout)
}

func (e *WaitTimeoutError) Unwrap() error {
	return ErrWaitTimeout
}
