// Package handshake implements the client side of the WebSocket opening
// handshake (RFC 6455 section 4).
//
// Build renders the HTTP/1.1 upgrade request and returns a Context holding
// the random Sec-WebSocket-Key together with the Sec-WebSocket-Accept value
// the server must echo:
//
//	accept = base64(SHA-1(key + "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))
//
// Validate parses the response header block and rejects anything other than
// a 101 with matching Upgrade, Connection and Sec-WebSocket-Accept headers.
// Negotiate then reports which offered extensions the server accepted.
package handshake
