package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/muurk/wsclient/internal/compress"
	"github.com/muurk/wsclient/internal/config"
	"github.com/muurk/wsclient/internal/handshake"
	"github.com/muurk/wsclient/internal/logging"
	"github.com/muurk/wsclient/internal/protocol"
	"github.com/muurk/wsclient/internal/transport"
	"github.com/muurk/wsclient/internal/urls"
	"github.com/muurk/wsclient/internal/wserr"
)

const (
	// DefaultPollInterval bounds how long the reader blocks per read, and so
	// how quickly it notices Disconnect and keepalive deadlines.
	DefaultPollInterval = 200 * time.Millisecond
	// DefaultReadBufferSize is the size of each transport read.
	DefaultReadBufferSize = 4096

	// handshakeReadSlice bounds each read while waiting for the handshake response
	handshakeReadSlice = 500 * time.Millisecond
)

// Client is a single WebSocket connection to a server. It may be connected
// again after it has closed.
type Client struct {
	cfg      config.Config
	dialer   transport.Dialer
	newCodec func(compress.Params) compress.Codec
	poll     time.Duration
	readSize int

	state stateMachine

	hmu      sync.RWMutex
	handlers Handlers

	sess atomic.Pointer[session]

	mu            sync.Mutex
	url           string
	cancelConnect context.CancelFunc
	connectDone   chan struct{} // closed when the running Connect returns
}

// Option customizes a Client.
type Option func(*Client)

// WithDialer replaces the TCP/TLS dialer.
func WithDialer(d transport.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithCodecFactory replaces the permessage-deflate codec. The factory is
// called once per connection that negotiated compression.
func WithCodecFactory(f func(compress.Params) compress.Codec) Option {
	return func(c *Client) { c.newCodec = f }
}

// WithPollInterval sets the reader's read timeout.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.poll = d }
}

// WithReadBufferSize sets the size of each transport read.
func WithReadBufferSize(n int) Option {
	return func(c *Client) { c.readSize = n }
}

// WithHandlers installs all callbacks at once.
func WithHandlers(h Handlers) Option {
	return func(c *Client) { c.handlers = h }
}

// New validates cfg and creates a client in the CLOSED state.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg.Clone(),
		poll:     DefaultPollInterval,
		readSize: DefaultReadBufferSize,
		newCodec: func(p compress.Params) compress.Codec { return compress.NewDeflate(p) },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = transport.NewDialer(transport.Options{TLS: c.cfg.TLS})
	}
	if c.poll <= 0 {
		return nil, wserr.Newf(wserr.ErrTypeInvalidParameter, "poll interval must be positive, got %s", c.poll)
	}
	if c.readSize <= 0 {
		return nil, wserr.Newf(wserr.ErrTypeInvalidParameter, "read buffer size must be positive, got %d", c.readSize)
	}
	c.state.notify = c.stateChanged

	return c, nil
}

// SetHandlers replaces all callbacks. Changes apply from the next Connect.
func (c *Client) SetHandlers(h Handlers) {
	c.hmu.Lock()
	c.handlers = h
	c.hmu.Unlock()
}

// SetOnOpen sets the callback run once the connection is OPEN.
func (c *Client) SetOnOpen(f func()) {
	c.hmu.Lock()
	c.handlers.OnOpen = f
	c.hmu.Unlock()
}

// SetOnText sets the callback for complete text messages.
func (c *Client) SetOnText(f func(string)) {
	c.hmu.Lock()
	c.handlers.OnText = f
	c.hmu.Unlock()
}

// SetOnBinary sets the callback for complete binary messages.
func (c *Client) SetOnBinary(f func([]byte)) {
	c.hmu.Lock()
	c.handlers.OnBinary = f
	c.hmu.Unlock()
}

// SetOnError sets the callback for connect and connection failures.
func (c *Client) SetOnError(f func(error)) {
	c.hmu.Lock()
	c.handlers.OnError = f
	c.hmu.Unlock()
}

// SetOnClose sets the callback run once when a connection closes.
func (c *Client) SetOnClose(f func()) {
	c.hmu.Lock()
	c.handlers.OnClose = f
	c.hmu.Unlock()
}

// SetOnStateChange sets the callback for every state transition.
func (c *Client) SetOnStateChange(f func(from, to State)) {
	c.hmu.Lock()
	c.handlers.OnStateChange = f
	c.hmu.Unlock()
}

func (c *Client) currentHandlers() Handlers {
	c.hmu.RLock()
	defer c.hmu.RUnlock()
	return c.handlers
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.state.Load()
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() config.Config {
	return c.cfg.Clone()
}

// URL returns the URL passed to the most recent Connect.
func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Negotiated reports the permessage-deflate parameters of the open
// connection, if compression was negotiated.
func (c *Client) Negotiated() (compress.Params, bool) {
	s := c.sess.Load()
	if s == nil || s.codec == nil {
		return compress.Params{}, false
	}
	return s.params, true
}

func (c *Client) stateChanged(from, to State) {
	logging.LogStateChange(c.URL(), from.String(), to.String())
	if f := c.currentHandlers().OnStateChange; f != nil {
		f(from, to)
	}
}

// Connect dials rawURL, performs the opening handshake and starts the
// reader. It returns once the connection is OPEN or has failed; failures
// are also reported to OnError.
func (c *Client) Connect(ctx context.Context, rawURL string) error {
	if st := c.state.Load(); st != StateClosed {
		return wserr.Newf(wserr.ErrTypeInvalidState, "connect called while %s", st)
	}

	u, err := urls.Parse(rawURL)
	if err != nil {
		return err
	}

	if !c.state.transition(StateClosed, StateConnecting) {
		return wserr.Newf(wserr.ErrTypeInvalidState, "connect called while %s", c.state.Load())
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.mu.Lock()
	c.url = u.String()
	c.cancelConnect = cancel
	c.connectDone = done
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancelConnect = nil
		c.connectDone = nil
		c.mu.Unlock()
		cancel()
		close(done)
	}()

	h := c.currentHandlers()
	logging.LogConnection(u.String(), "connecting")

	s, err := c.open(ctx, u, h)
	if err != nil {
		c.state.set(StateClosed)
		logging.Warn("Connect failed", zap.String("url", u.String()), zap.Error(err))
		h.error(err)
		return err
	}

	c.sess.Store(s)
	c.state.transition(StateConnecting, StateOpen)
	logging.LogConnection(u.String(), "open")

	go s.run()
	h.open()
	close(s.ready)

	return nil
}

// open dials, sends the upgrade request and validates the response.
// Timeout bounds the whole exchange, dial included.
func (c *Client) open(ctx context.Context, u urls.URL, h Handlers) (*session, error) {
	deadline := time.Now().Add(c.cfg.Timeout)

	tr, err := c.dialer.Dial(ctx, u.Host, u.Port, u.Secure(), c.cfg.Timeout)
	if err != nil {
		return nil, err
	}

	s, err := c.handshake(ctx, u, tr, h, deadline)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	return s, nil
}

func (c *Client) handshake(ctx context.Context, u urls.URL, tr transport.Transport, h Handlers, deadline time.Time) (*session, error) {
	req, hctx, err := handshake.Build(u, c.cfg)
	if err != nil {
		return nil, err
	}
	logging.LogRawBytes("Handshake request", req)

	if err := tr.SendAll(req); err != nil {
		return nil, err
	}

	block, leftover, err := c.readHandshake(ctx, tr, deadline)
	if err != nil {
		return nil, err
	}
	logging.LogRawBytes("Handshake response", block)

	resp, err := handshake.Validate(block, hctx)
	if err != nil {
		return nil, err
	}

	params, deflate, err := handshake.Negotiate(resp, hctx)
	if err != nil {
		return nil, err
	}

	// The connect may have been canceled while the response was in flight.
	if err := ctx.Err(); err != nil {
		return nil, wserr.ClassifyNetworkError(err, "connect to "+u.String())
	}

	s := newSession(c, u, tr, h)
	if deflate {
		s.codec = c.newCodec(params)
		s.params = params
		logging.Info("Compression negotiated",
			zap.String("url", u.String()),
			zap.Bool("server_no_context_takeover", params.ServerNoContextTakeover),
		)
	}
	s.rbuf = append(s.rbuf, leftover...)
	return s, nil
}

// readHandshake reads until the end of the response header block. Bytes
// after the block already belong to the frame stream.
func (c *Client) readHandshake(ctx context.Context, tr transport.Transport, deadline time.Time) ([]byte, []byte, error) {
	buf := make([]byte, 0, c.readSize)
	chunk := make([]byte, c.readSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, wserr.ClassifyNetworkError(err, "handshake")
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil, wserr.Newf(wserr.ErrTypeTimeout, "no handshake response within %s", c.cfg.Timeout)
		}

		n, err := tr.RecvSome(chunk, min(remaining, handshakeReadSlice))
		if err != nil {
			return nil, nil, err
		}
		buf = append(buf, chunk[:n]...)

		if header, rest, ok := handshake.SplitHeaderBlock(buf); ok {
			if len(header) > handshake.MaxResponseSize {
				break
			}
			return header, rest, nil
		}
		if len(buf) > handshake.MaxResponseSize {
			break
		}
	}
	return nil, nil, wserr.Newf(wserr.ErrTypeHandshake, "handshake response exceeds %d bytes", handshake.MaxResponseSize)
}

// Disconnect performs an orderly close with status 1000. It is a no-op on a
// closed client. An in-progress Connect is canceled and Disconnect waits
// for it to return; if the handshake completed first, the new connection
// is closed too. Otherwise it returns after the reader has stopped and
// OnClose has run.
func (c *Client) Disconnect() error {
	return c.DisconnectWithStatus(protocol.CloseNormal, "")
}

// DisconnectWithStatus is Disconnect with a specific close code and reason.
func (c *Client) DisconnectWithStatus(code int, reason string) error {
	if !protocol.ValidCloseCode(code) {
		return wserr.Newf(wserr.ErrTypeInvalidParameter, "close code %d cannot be sent", code)
	}

	if c.state.Load() == StateConnecting {
		c.mu.Lock()
		cancel, done := c.cancelConnect, c.connectDone
		c.mu.Unlock()
		if cancel == nil {
			// Connect has not published its cancel func yet.
			return nil
		}
		cancel()
		<-done
		// the handshake may have won the race
	}
	if c.state.Load() == StateClosed {
		return nil
	}

	s := c.sess.Load()
	if s == nil {
		return nil
	}

	if c.state.transition(StateOpen, StateClosing) {
		if err := s.sendClose(code, reason); err != nil {
			logging.Debug("Close frame not sent", zap.String("url", s.url), zap.Error(err))
		}
	}

	s.signalStop()
	<-s.done
	c.teardown(s, nil)
	return nil
}

// DisconnectAsync starts Disconnect on a new goroutine; the returned channel
// closes when it has finished. Safe to call from handlers.
func (c *Client) DisconnectAsync() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Disconnect()
	}()
	return done
}

// teardown closes the transport and fires OnClose, once per connection.
func (c *Client) teardown(s *session, cause error) {
	s.teardownOnce.Do(func() {
		c.state.transition(StateOpen, StateClosing)
		_ = s.tr.Close()

		if cause != nil {
			logging.Warn("Connection failed", zap.String("url", s.url), zap.Error(cause))
			s.h.error(cause)
		}

		c.state.set(StateClosed)
		logging.LogConnection(s.url, "closed")
		s.h.close()
	})
}

// Send sends a text message.
func (c *Client) Send(text string) error {
	if !utf8.ValidString(text) {
		return wserr.New(wserr.ErrTypeInvalidParameter, "text message is not valid UTF-8")
	}
	return c.send(protocol.OpcodeText, []byte(text))
}

// SendBinary sends a binary message.
func (c *Client) SendBinary(data []byte) error {
	return c.send(protocol.OpcodeBinary, data)
}

// Ping sends a ping with an optional payload of at most 125 bytes.
func (c *Client) Ping(payload []byte) error {
	if len(payload) > protocol.MaxControlPayload {
		return wserr.Newf(wserr.ErrTypeInvalidParameter, "ping payload of %d bytes exceeds %d", len(payload), protocol.MaxControlPayload)
	}
	return c.send(protocol.OpcodePing, payload)
}

func (c *Client) send(opcode byte, payload []byte) error {
	if st := c.state.Load(); st != StateOpen {
		return wserr.Newf(wserr.ErrTypeInvalidState, "cannot send %s while %s", protocol.OpcodeName(opcode), st)
	}
	s := c.sess.Load()
	if s == nil {
		return wserr.New(wserr.ErrTypeInvalidState, "no open connection")
	}
	return s.writeMessage(opcode, payload)
}
