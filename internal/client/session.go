package client

import (
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/muurk/wsclient/internal/compress"
	"github.com/muurk/wsclient/internal/logging"
	"github.com/muurk/wsclient/internal/protocol"
	"github.com/muurk/wsclient/internal/transport"
	"github.com/muurk/wsclient/internal/urls"
	"github.com/muurk/wsclient/internal/wserr"
)

// errStopped ends the reader when Disconnect asked it to.
var errStopped = errors.New("reader stopped")

// errPeerClosed ends the reader after the peer's close frame was handled.
var errPeerClosed = errors.New("closed by peer")

// closeError is a fatal protocol error that should be reported to the peer
// with a specific close code before the connection is torn down.
type closeError struct {
	code int
	err  error
}

func (e *closeError) Error() string { return e.err.Error() }
func (e *closeError) Unwrap() error { return e.err }

func failWith(code int, err error) error {
	return &closeError{code: code, err: err}
}

// session is one open connection. Everything below sendMu belongs to the
// reader goroutine.
type session struct {
	c      *Client
	url    string
	tr     transport.Transport
	h      Handlers
	codec  compress.Codec
	params compress.Params

	ready    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	teardownOnce sync.Once

	sendMu    sync.Mutex
	closeSent bool

	rbuf       []byte
	msg        []byte
	msgOpcode  byte
	msgDeflate bool
	inMessage  bool
	lastPing   time.Time
	pingSentAt time.Time
}

func newSession(c *Client, u urls.URL, tr transport.Transport, h Handlers) *session {
	return &session{
		c:        c,
		url:      u.String(),
		tr:       tr,
		h:        h,
		ready:    make(chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		lastPing: time.Now(),
	}
}

func (s *session) signalStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// run is the reader goroutine. It does not start reading until Connect has
// finished OnOpen.
func (s *session) run() {
	defer close(s.done)

	select {
	case <-s.ready:
	case <-s.stop:
		return
	}

	err := s.loop()
	switch {
	case errors.Is(err, errStopped):
		// Disconnect owns the teardown.
		return
	case errors.Is(err, errPeerClosed):
		s.c.teardown(s, nil)
	default:
		var ce *closeError
		if errors.As(err, &ce) {
			if serr := s.sendClose(ce.code, ""); serr != nil {
				logging.Debug("Close frame not sent", zap.String("url", s.url), zap.Error(serr))
			}
			err = ce.err
		}
		s.c.teardown(s, err)
	}
}

func (s *session) loop() error {
	// Frames that arrived with the handshake response are already buffered.
	if err := s.drain(); err != nil {
		return err
	}

	buf := make([]byte, s.c.readSize)
	for {
		select {
		case <-s.stop:
			return errStopped
		default:
		}

		if err := s.keepalive(time.Now()); err != nil {
			return err
		}

		n, err := s.tr.RecvSome(buf, s.c.poll)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		s.rbuf = append(s.rbuf, buf[:n]...)

		if err := s.drain(); err != nil {
			return err
		}
	}
}

// keepalive sends periodic pings and fails the connection when a ping has
// gone unanswered for longer than PongTimeout.
func (s *session) keepalive(now time.Time) error {
	cfg := &s.c.cfg
	if cfg.PongTimeout > 0 && !s.pingSentAt.IsZero() && now.Sub(s.pingSentAt) > cfg.PongTimeout {
		return failWith(protocol.CloseGoingAway,
			wserr.Newf(wserr.ErrTypeTimeout, "no pong within %s", cfg.PongTimeout))
	}
	if cfg.PingInterval <= 0 || now.Sub(s.lastPing) < cfg.PingInterval {
		return nil
	}

	s.lastPing = now
	if err := s.writeMessage(protocol.OpcodePing, nil); err != nil {
		if wserr.IsInvalidStateError(err) {
			return nil
		}
		return err
	}
	if s.pingSentAt.IsZero() {
		s.pingSentAt = now
	}
	return nil
}

// drain dispatches every complete frame in the receive buffer. Frames
// already buffered when the connection is stopping are not delivered.
func (s *session) drain() error {
	off := 0
	defer func() {
		if off > 0 {
			s.rbuf = append(s.rbuf[:0], s.rbuf[off:]...)
		}
	}()

	for off < len(s.rbuf) {
		select {
		case <-s.stop:
			return errStopped
		default:
		}

		f, n, err := protocol.Parse(s.rbuf[off:], s.c.cfg.MaxFrameSize)
		if errors.Is(err, protocol.ErrIncomplete) {
			return nil
		}
		if err != nil {
			code := protocol.CloseProtocolError
			if errors.Is(err, protocol.ErrTooLarge) {
				code = protocol.CloseMessageTooBig
			}
			return failWith(code, err)
		}
		off += n

		if err := s.dispatch(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) dispatch(f *protocol.Frame) error {
	s.h.frame(Inbound, f)
	logging.LogWebSocketMessage(s.url, "received", f.Opcode, f.Payload)

	if f.Masked {
		return failWith(protocol.CloseProtocolError,
			wserr.New(wserr.ErrTypeFrame, "server sent a masked frame"))
	}
	if f.RSV1 && (s.codec == nil || !protocol.IsData(f.Opcode)) {
		return failWith(protocol.CloseProtocolError,
			wserr.Newf(wserr.ErrTypeFrame, "RSV1 set on %s frame without negotiated compression", f.OpcodeString()))
	}

	switch f.Opcode {
	case protocol.OpcodeText, protocol.OpcodeBinary:
		if s.inMessage {
			return failWith(protocol.CloseProtocolError,
				wserr.New(wserr.ErrTypeFrame, "new data frame while a fragmented message is in progress"))
		}
		s.inMessage = true
		s.msgOpcode = f.Opcode
		s.msgDeflate = f.RSV1
		s.msg = s.msg[:0]
		return s.appendFragment(f)

	case protocol.OpcodeContinuation:
		if !s.inMessage {
			return failWith(protocol.CloseProtocolError,
				wserr.New(wserr.ErrTypeFrame, "continuation frame without a message in progress"))
		}
		if f.RSV1 {
			return failWith(protocol.CloseProtocolError,
				wserr.New(wserr.ErrTypeFrame, "RSV1 set on a continuation frame"))
		}
		return s.appendFragment(f)

	case protocol.OpcodePing:
		if err := s.writeMessage(protocol.OpcodePong, f.Payload); err != nil && !wserr.IsInvalidStateError(err) {
			return err
		}
		return nil

	case protocol.OpcodePong:
		s.pingSentAt = time.Time{}
		return nil

	case protocol.OpcodeClose:
		return s.handleClose(f)
	}

	return failWith(protocol.CloseProtocolError,
		wserr.Newf(wserr.ErrTypeFrame, "unexpected opcode 0x%X", f.Opcode))
}

func (s *session) appendFragment(f *protocol.Frame) error {
	limit := s.c.cfg.MaxFrameSize
	if int64(len(s.msg))+int64(len(f.Payload)) > limit {
		return failWith(protocol.CloseMessageTooBig,
			wserr.Newf(wserr.ErrTypeFrame, "message exceeds %d bytes", limit))
	}
	s.msg = append(s.msg, f.Payload...)
	if !f.FIN {
		return nil
	}

	s.inMessage = false
	payload := s.msg
	if s.msgDeflate {
		out, err := s.codec.Decompress(payload, limit)
		if err != nil {
			return failWith(protocol.CloseProtocolError, err)
		}
		payload = out
	}

	if s.msgOpcode == protocol.OpcodeText {
		if !utf8.Valid(payload) {
			return failWith(protocol.CloseInvalidPayload,
				wserr.New(wserr.ErrTypeFrame, "text message is not valid UTF-8"))
		}
		s.h.text(string(payload))
		return nil
	}

	s.h.binary(append([]byte(nil), payload...))
	return nil
}

// handleClose answers the peer's close frame, at most once, and ends the
// reader.
func (s *session) handleClose(f *protocol.Frame) error {
	code, reason, err := protocol.ParseClosePayload(f.Payload)
	if err != nil {
		return failWith(protocol.CloseProtocolError, err)
	}
	logging.Info("Close frame received",
		zap.String("url", s.url),
		zap.Int("code", code),
		zap.String("reason", reason),
	)

	s.c.state.transition(StateOpen, StateClosing)

	echo := code
	if code == protocol.CloseNoStatus {
		echo = 0
	}
	if err := s.sendClose(echo, ""); err != nil {
		logging.Debug("Close echo not sent", zap.String("url", s.url), zap.Error(err))
	}
	return errPeerClosed
}

// sendClose writes a close frame unless one has already been sent.
// Code 0 sends an empty body.
func (s *session) sendClose(code int, reason string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closeSent {
		return nil
	}
	s.closeSent = true

	payload := protocol.BuildClosePayload(code, reason)
	return s.writeLocked(protocol.OpcodeClose, false, payload, payload)
}

// writeMessage sends one unfragmented message, compressing data frames
// when permessage-deflate was negotiated.
func (s *session) writeMessage(opcode byte, payload []byte) error {
	wire := payload
	compressed := false
	if s.codec != nil && protocol.IsData(opcode) {
		out, err := s.codec.Compress(payload, s.c.cfg.CompressionLevel)
		if err != nil {
			return err
		}
		wire, compressed = out, true
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closeSent {
		return wserr.Newf(wserr.ErrTypeInvalidState, "cannot send %s after close", protocol.OpcodeName(opcode))
	}
	return s.writeLocked(opcode, compressed, wire, payload)
}

// writeLocked masks and writes a frame; sendMu must be held. traced is the
// payload reported to OnFrame and the log.
func (s *session) writeLocked(opcode byte, rsv1 bool, wire, traced []byte) error {
	key, err := protocol.NewMaskKey()
	if err != nil {
		return wserr.Wrap(wserr.ErrTypeConnection, "mask key", err)
	}

	f := &protocol.Frame{FIN: true, RSV1: rsv1, Opcode: opcode, Masked: true, MaskKey: key, Payload: wire}
	if err := s.tr.SendAll(protocol.AppendFrame(nil, f)); err != nil {
		return wserr.ClassifyNetworkError(err, "send "+protocol.OpcodeName(opcode))
	}

	logging.LogWebSocketMessage(s.url, "sent", opcode, traced)
	if s.h.OnFrame != nil {
		s.h.frame(Outbound, &protocol.Frame{
			FIN:     true,
			RSV1:    rsv1,
			Opcode:  opcode,
			Masked:  true,
			Length:  uint64(len(wire)),
			MaskKey: key,
			Payload: traced,
		})
	}
	return nil
}
