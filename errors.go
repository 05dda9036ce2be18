package gozk

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error codes in the taxonomy. Callers can compare Error.Code
// instead of matching on message text.
const (
	ErrConnReset    = "ECONNRESET"
	ErrConnRefused  = "ECONNREFUSED"
	ErrAddrInUse    = "EADDRINUSE"
	ErrTimedOut     = "ETIMEDOUT"
	ErrInvalid      = "EINVALID"
	ErrUnhandledCmd = "UNHANDLED_CMD"
)

// Specific ETIMEDOUT messages, kept distinct so the caller can tell which
// stage stalled.
const (
	MsgTimeoutOnWriting             = "TIMEOUT_ON_WRITING_MESSAGE"
	MsgTimeoutOnReceivingRequest    = "TIMEOUT_ON_RECEIVING_REQUEST_DATA"
	MsgTimeoutAfterRequestingData   = "TIMEOUT_IN_RECEIVING_RESPONSE_AFTER_REQUESTING_DATA"
	MsgTimeoutWhenReceivingPacket   = "TIMEOUT_WHEN_RECEIVING_PACKET"
	MsgSocketDisconnectedUnexpected = "SOCKET_DISCONNECTED_UNEXPECTEDLY"
)

// Error is the wrapped error type every public operation returns on
// failure: it tags the underlying cause with the taxonomy code plus the
// device address and command that were in flight.
type Error struct {
	Code    string
	Message string
	IP      string
	Command string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (ip=%s command=%s): %v", e.Code, e.Message, e.IP, e.Command, e.cause)
	}
	return fmt.Sprintf("%s: %s (ip=%s command=%s)", e.Code, e.Message, e.IP, e.Command)
}

func (e *Error) Unwrap() error { return e.cause }

// newError builds a tagged Error, wrapping cause (if any) with pkg/errors
// so a stack trace is captured at the point the underlying net/syscall
// error first crossed into the taxonomy.
func newError(code, message, ip, command string, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Code: code, Message: message, IP: ip, Command: command, cause: cause}
}

func wrapConnRefused(ip, command string, cause error) *Error {
	return newError(ErrConnRefused, "no socket, or device rejected connection", ip, command, cause)
}

func wrapTimeout(message, ip, command string) *Error {
	return newError(ErrTimedOut, message, ip, command, nil)
}

func wrapInvalid(message, ip, command string) *Error {
	return newError(ErrInvalid, message, ip, command, nil)
}

func wrapUnhandledCmd(cmd int, ip, command string) *Error {
	return newError(ErrUnhandledCmd, fmt.Sprintf("UNHANDLED_CMD(%s)", commandName(cmd)), ip, command, nil)
}

func wrapSocketClosed(ip, command string) *Error {
	return newError(ErrConnReset, MsgSocketDisconnectedUnexpected, ip, command, nil)
}
