// Package testpeer provides a scriptable WebSocket server for tests.
//
// Unlike a conforming server library it can be told to misbehave: answer
// the upgrade with a wrong accept value, leave out headers, append frame
// bytes to the handshake response, send masked or malformed frames, or
// never respond at all. Tests drive each accepted Conn frame by frame.
package testpeer
