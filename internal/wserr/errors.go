package wserr

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeUnknown is returned by TypeOf for errors outside the taxonomy
	ErrTypeUnknown ErrorType = iota
	// ErrTypeURL indicates a malformed or unsupported ws:// / wss:// URL
	ErrTypeURL
	// ErrTypeConnection indicates a transport failure (refused, reset, EOF)
	ErrTypeConnection
	// ErrTypeHandshake indicates the opening handshake was rejected or malformed
	ErrTypeHandshake
	// ErrTypeFrame indicates a protocol violation in an inbound frame
	ErrTypeFrame
	// ErrTypeCompression indicates permessage-deflate failed
	ErrTypeCompression
	// ErrTypeTLS indicates the TLS handshake or certificate verification failed
	ErrTypeTLS
	// ErrTypeTimeout indicates an operation exceeded its deadline
	ErrTypeTimeout
	// ErrTypeInvalidState indicates an operation was called in the wrong connection state
	ErrTypeInvalidState
	// ErrTypeInvalidParameter indicates a caller supplied an invalid argument
	ErrTypeInvalidParameter
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeURL:
		return "URL Error"
	case ErrTypeConnection:
		return "Connection Error"
	case ErrTypeHandshake:
		return "Handshake Error"
	case ErrTypeFrame:
		return "Frame Error"
	case ErrTypeCompression:
		return "Compression Error"
	case ErrTypeTLS:
		return "TLS Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeInvalidState:
		return "Invalid State"
	case ErrTypeInvalidParameter:
		return "Invalid Parameter"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is the error value returned by every public operation of the client.
type Error struct {
	Type    ErrorType // Category of error
	Message string    // Human-readable error message
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given type.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Newf creates an error of the given type with a formatted message.
func Newf(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given type caused by err.
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// TypeOf returns the category of err, looking through wrapped errors.
// Errors outside the taxonomy report ErrTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrTypeUnknown
}

// Is reports whether err (or anything it wraps) is an *Error of type t.
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

func IsURLError(err error) bool              { return Is(err, ErrTypeURL) }
func IsConnectionError(err error) bool       { return Is(err, ErrTypeConnection) }
func IsHandshakeError(err error) bool        { return Is(err, ErrTypeHandshake) }
func IsFrameError(err error) bool            { return Is(err, ErrTypeFrame) }
func IsCompressionError(err error) bool      { return Is(err, ErrTypeCompression) }
func IsTLSError(err error) bool              { return Is(err, ErrTypeTLS) }
func IsTimeout(err error) bool               { return Is(err, ErrTypeTimeout) }
func IsInvalidStateError(err error) bool     { return Is(err, ErrTypeInvalidState) }
func IsInvalidParameterError(err error) bool { return Is(err, ErrTypeInvalidParameter) }

// ClassifyNetworkError maps a dial/read/write error to the taxonomy.
// Errors that are already classified are returned unchanged.
func ClassifyNetworkError(err error, message string) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	var te interface{ Timeout() bool }
	if (errors.As(err, &te) && te.Timeout()) || errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ErrTypeTimeout, message+": timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(ErrTypeConnection, message+": canceled", err)
	}

	if isTLSFailure(err) {
		return Wrap(ErrTypeTLS, message+": TLS failure", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Wrap(ErrTypeConnection, fmt.Sprintf("%s: DNS resolution failed for %s", message, dnsErr.Name), err)
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return Wrap(ErrTypeConnection, message+": connection refused", err)
	case errors.Is(err, syscall.EHOSTUNREACH):
		return Wrap(ErrTypeConnection, message+": host unreachable", err)
	case errors.Is(err, syscall.ENETUNREACH):
		return Wrap(ErrTypeConnection, message+": network unreachable", err)
	case errors.Is(err, syscall.ECONNRESET):
		return Wrap(ErrTypeConnection, message+": connection reset by peer", err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return Wrap(ErrTypeConnection, message+": connection closed by peer", err)
	case errors.Is(err, net.ErrClosed):
		return Wrap(ErrTypeConnection, message+": connection already closed", err)
	}

	return Wrap(ErrTypeConnection, message, err)
}

func isTLSFailure(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	if errors.As(err, &recordErr) || errors.As(err, &alertErr) || errors.As(err, &certErr) ||
		errors.As(err, &unknownAuth) || errors.As(err, &hostnameErr) || errors.As(err, &invalidErr) {
		return true
	}
	// crypto/tls reports most handshake failures as plain errors prefixed "tls: "
	return strings.HasPrefix(err.Error(), "tls: ")
}

// ShortMessage returns a concise, user-facing description of err.
func ShortMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Hint returns troubleshooting advice for err, or an empty string when
// there is nothing useful to add.
func Hint(err error) string {
	switch TypeOf(err) {
	case ErrTypeURL:
		return "URLs must look like ws://host[:port][/path] or wss://host[:port][/path]."
	case ErrTypeConnection:
		return strings.Join([]string{
			"Could not reach the server.",
			"Troubleshooting:",
			"  • Check the host name and port",
			"  • Verify the server is running and accepting connections",
		}, "\n")
	case ErrTypeHandshake:
		return strings.Join([]string{
			"The server did not accept the WebSocket upgrade.",
			"Troubleshooting:",
			"  • Check the request path",
			"  • Some servers require an Origin or authorization header (--header)",
		}, "\n")
	case ErrTypeTLS:
		return strings.Join([]string{
			"The TLS handshake failed.",
			"Troubleshooting:",
			"  • Use --ca-file for servers with a private CA",
			"  • Use --insecure only for local testing",
		}, "\n")
	case ErrTypeTimeout:
		return "The server did not respond in time. Try increasing --timeout."
	default:
		return ""
	}
}
