// Package wserr defines the error taxonomy shared by the WebSocket client.
//
// Every failure surfaced by the client is an *Error carrying an ErrorType:
//
//	URL, Connection, Handshake, Frame, Compression, TLS, Timeout,
//	InvalidState, InvalidParameter
//
// Callers branch on the category with TypeOf or the IsXxx helpers; the
// original cause stays reachable through errors.Unwrap.
package wserr
