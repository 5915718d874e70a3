package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected     = errors.New("session: not connected")
	ErrSessionClosed    = errors.New("session: closed")
	ErrStreamTerminated = errors.New("session: stream terminated")
	ErrReaderActive     = errors.New("session: read loop already running")
	ErrNoOpener         = errors.New("session: no port opener")
)

// ConnectReason classifies why Connect failed.
type ConnectReason string

const (
	ReasonNoDevice         ConnectReason = "no_device"
	ReasonPermissionDenied ConnectReason = "permission_denied"
	ReasonAlreadyOpen      ConnectReason = "already_open"
	ReasonBusy             ConnectReason = "busy"
	ReasonOpenFailed       ConnectReason = "open_failed"
)

// ConnectionError is returned by Connect. It is never retried by the
// session; the caller decides whether to try again.
type ConnectionError struct {
	Reason ConnectReason
	Port   string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("session: connect %q failed: %s", e.Port, e.Reason)
	}
	return fmt.Sprintf("session: connect %q failed: %s: %v", e.Port, e.Reason, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectReason reports whether err is a ConnectionError with reason.
func IsConnectReason(err error, reason ConnectReason) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) && connErr.Reason == reason
}
