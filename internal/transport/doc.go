// Package transport provides the byte-stream layer under the WebSocket
// client: TCP via net.Dialer and, for wss:// endpoints, a TLS client
// handshake with crypto/tls.
//
// The client only depends on the Transport and Dialer interfaces, so tests
// can substitute in-memory connections (see NewConn).
//
// Dialed transports share a reference-counted, process-wide TLS session
// cache. It is created by the first Dial and dropped when the last
// transport closes.
package transport
