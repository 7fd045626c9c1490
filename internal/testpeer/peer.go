package testpeer

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wsclient/internal/handshake"
	"github.com/muurk/wsclient/internal/logging"
	"github.com/muurk/wsclient/internal/protocol"
)

// Response controls how the peer answers the upgrade request.
type Response struct {
	Status         int    // 0 means 101
	BadAccept      bool   // send an Accept value that does not match the key
	OmitUpgrade    bool   // leave out "Upgrade: websocket"
	OmitConnection bool   // leave out "Connection: Upgrade"
	Extensions     string // Sec-WebSocket-Extensions value, if any
	Extra          []byte // bytes written directly after the header block
	Silent         bool   // read the request but never answer
	Raw            []byte // replaces the whole response when non-nil
}

// Options configures a Server.
type Options struct {
	TLS      *tls.Config // nil listens in plain text
	Path     string      // request path used by URL, default "/"
	Response Response
}

// Server is a scriptable WebSocket peer. Each accepted connection is
// upgraded and handed to the test through Accept.
type Server struct {
	opts     Options
	listener net.Listener
	conns    chan *Conn

	wg     sync.WaitGroup
	mu     sync.Mutex
	active map[string]net.Conn
	closed bool
}

// Start listens on a random loopback port.
func Start(opts Options) (*Server, error) {
	var (
		l   net.Listener
		err error
	)
	if opts.TLS != nil {
		l, err = tls.Listen("tcp", "127.0.0.1:0", opts.TLS)
	} else {
		l, err = net.Listen("tcp", "127.0.0.1:0")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	if opts.Path == "" {
		opts.Path = "/"
	}

	s := &Server{
		opts:     opts,
		listener: l,
		conns:    make(chan *Conn, 16),
		active:   make(map[string]net.Conn),
	}
	s.wg.Add(1)
	go s.acceptConnections()
	return s, nil
}

// URL returns the ws:// or wss:// URL of the server.
func (s *Server) URL() string {
	scheme := "ws"
	if s.opts.TLS != nil {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s", scheme, s.listener.Addr().String(), s.opts.Path)
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Accept waits for the next upgraded connection.
func (s *Server) Accept(timeout time.Duration) (*Conn, error) {
	select {
	case c, ok := <-s.conns:
		if !ok {
			return nil, net.ErrClosed
		}
		return c, nil
	case <-time.After(timeout):
		return nil, errors.New("no connection accepted")
	}
}

// Close stops listening and closes every connection.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.listener.Close()
	for _, c := range s.active {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()
	defer close(s.conns)

	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logging.Error("Failed to accept connection", zap.Error(err))
			}
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = nc.Close()
			return
		}
		s.active[nc.RemoteAddr().String()] = nc
		s.mu.Unlock()

		c, err := s.upgrade(nc)
		if err != nil {
			logging.Debug("Upgrade failed", zap.String("remote_addr", nc.RemoteAddr().String()), zap.Error(err))
			_ = nc.Close()
			continue
		}
		if c != nil {
			s.conns <- c
		}
	}
}

func (s *Server) upgrade(nc net.Conn) (*Conn, error) {
	_ = nc.SetReadDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(nc)
	req, err := http.ReadRequest(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read HTTP request: %w", err)
	}
	_ = nc.SetReadDeadline(time.Time{})

	if err := ValidateUpgradeRequest(req); err != nil {
		return nil, err
	}

	c := &Conn{Conn: nc, Request: req, r: r}
	resp := s.opts.Response
	if resp.Silent {
		return c, nil
	}

	if _, err := nc.Write(BuildResponse(req, resp)); err != nil {
		return nil, fmt.Errorf("failed to write upgrade response: %w", err)
	}
	return c, nil
}

// ValidateUpgradeRequest checks that req is a well-formed client upgrade.
func ValidateUpgradeRequest(req *http.Request) error {
	if req.Method != http.MethodGet {
		return fmt.Errorf("invalid method: %s (expected GET)", req.Method)
	}
	if !strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
		return fmt.Errorf("invalid Upgrade header: %q", req.Header.Get("Upgrade"))
	}
	if !strings.Contains(strings.ToLower(req.Header.Get("Connection")), "upgrade") {
		return fmt.Errorf("invalid Connection header: %q", req.Header.Get("Connection"))
	}
	if v := req.Header.Get("Sec-WebSocket-Version"); v != handshake.Version {
		return fmt.Errorf("invalid Sec-WebSocket-Version: %q", v)
	}
	if req.Header.Get("Sec-WebSocket-Key") == "" {
		return errors.New("missing Sec-WebSocket-Key header")
	}
	return nil
}

// BuildResponse renders the upgrade response for req.
func BuildResponse(req *http.Request, resp Response) []byte {
	if resp.Raw != nil {
		return append([]byte(nil), resp.Raw...)
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusSwitchingProtocols
	}
	accept := handshake.AcceptKey(req.Header.Get("Sec-WebSocket-Key"))
	if resp.BadAccept {
		accept = handshake.AcceptKey("not the key")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	if !resp.OmitUpgrade {
		b.WriteString("Upgrade: websocket\r\n")
	}
	if !resp.OmitConnection {
		b.WriteString("Connection: Upgrade\r\n")
	}
	fmt.Fprintf(&b, "Sec-WebSocket-Accept: %s\r\n", accept)
	if resp.Extensions != "" {
		fmt.Fprintf(&b, "Sec-WebSocket-Extensions: %s\r\n", resp.Extensions)
	}
	b.WriteString("\r\n")

	return append([]byte(b.String()), resp.Extra...)
}

// Conn is the server side of one upgraded connection. Frames written by
// the peer are never masked.
type Conn struct {
	net.Conn
	Request *http.Request

	r  *bufio.Reader
	wm sync.Mutex
}

// ReadFrame reads the next client frame, which must be masked. The payload
// is returned unmasked.
func (c *Conn) ReadFrame(timeout time.Duration) (*protocol.Frame, error) {
	_ = c.SetReadDeadline(time.Now().Add(timeout))
	f, err := protocol.ReadFrame(c.r, 0)
	if err != nil {
		return nil, err
	}
	if !f.Masked {
		return nil, errors.New("client frame is not masked")
	}
	return f, nil
}

// WriteFrame writes a single unmasked frame.
func (c *Conn) WriteFrame(opcode byte, fin bool, payload []byte) error {
	return c.WriteRaw(protocol.AppendFrame(nil, &protocol.Frame{FIN: fin, Opcode: opcode, Payload: payload}))
}

// WriteClose writes a close frame with the given code; code 0 sends an
// empty body.
func (c *Conn) WriteClose(code int, reason string) error {
	return c.WriteFrame(protocol.OpcodeClose, true, protocol.BuildClosePayload(code, reason))
}

// WriteRaw writes b unchanged, for malformed-frame tests.
func (c *Conn) WriteRaw(b []byte) error {
	c.wm.Lock()
	defer c.wm.Unlock()
	_, err := c.Write(b)
	return err
}
