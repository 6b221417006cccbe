package adapter

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by Print when no transport is open. The call
// performs no I/O in that case.
var ErrNotConnected = errors.New("adapter not connected")

// ConnectionError reports a failure to establish or open a transport.
type ConnectionError struct {
	Transport string
	Cause     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Transport, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// IsConnectionError reports whether err is a ConnectionError anywhere in
// its chain.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// PrintError reports that a transport was open but the print operation
// itself failed or was rejected. Attempts is zero when the error comes
// straight from an adapter; the connection manager fills it in on retry
// exhaustion.
type PrintError struct {
	Attempts int
	Cause    error
}

func (e *PrintError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("print failed after %d attempt(s): %v", e.Attempts, e.Cause)
	}
	return fmt.Sprintf("print failed: %v", e.Cause)
}

func (e *PrintError) Unwrap() error { return e.Cause }

// IsPrintError reports whether err is a PrintError anywhere in its chain.
func IsPrintError(err error) bool {
	var pe *PrintError
	return errors.As(err, &pe)
}
