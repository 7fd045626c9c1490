package client

import "github.com/muurk/wsclient/internal/protocol"

// Direction tells OnFrame whether a frame was received or sent.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// Handlers are the application callbacks. Every field is optional.
//
// OnOpen runs on the goroutine that called Connect. OnText, OnBinary and
// OnError run on the connection's reader goroutine, one at a time and in
// wire order; they must not call Disconnect synchronously (use
// DisconnectAsync). OnClose runs on the reader goroutine when the peer or
// an error ended the connection, and on the caller of Disconnect otherwise.
type Handlers struct {
	OnOpen   func()
	OnText   func(text string)
	OnBinary func(data []byte)
	OnError  func(err error)
	OnClose  func()

	// OnStateChange runs on whichever goroutine changed the state.
	OnStateChange func(from, to State)
	// OnFrame observes every frame on the wire, payload unmasked and, for
	// outbound frames, before compression.
	OnFrame func(dir Direction, f *protocol.Frame)
}

func (h Handlers) open() {
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

func (h Handlers) text(s string) {
	if h.OnText != nil {
		h.OnText(s)
	}
}

func (h Handlers) binary(b []byte) {
	if h.OnBinary != nil {
		h.OnBinary(b)
	}
}

func (h Handlers) error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

func (h Handlers) close() {
	if h.OnClose != nil {
		h.OnClose()
	}
}

func (h Handlers) frame(dir Direction, f *protocol.Frame) {
	if h.OnFrame != nil {
		h.OnFrame(dir, f)
	}
}
