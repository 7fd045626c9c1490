package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wsclient/internal/config"
	"github.com/muurk/wsclient/internal/logging"
	"github.com/muurk/wsclient/internal/wserr"
)

// DefaultKeepAlive is the TCP keepalive period for dialed connections.
const DefaultKeepAlive = 30 * time.Second

// Transport is a connected, reliable byte stream.
type Transport interface {
	// SendAll writes all of p or fails.
	SendAll(p []byte) error
	// RecvSome reads up to len(p) bytes, waiting at most timeout.
	// It returns (0, nil) when the timeout expires with nothing to read.
	// Any error means the transport is no longer usable.
	RecvSome(p []byte, timeout time.Duration) (int, error)
	// Close releases the connection. It is safe to call more than once.
	Close() error
	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, host string, port int, useTLS bool, timeout time.Duration) (Transport, error)
}

// Options configures a NetDialer.
type Options struct {
	TLS          config.TLSConfig
	KeepAlive    time.Duration // 0 uses DefaultKeepAlive
	WriteTimeout time.Duration // 0 means writes may block indefinitely
}

// NetDialer dials TCP, adding a TLS client handshake for secure endpoints.
type NetDialer struct {
	opts Options
}

// NewDialer creates a dialer for the given options.
func NewDialer(opts Options) *NetDialer {
	if opts.KeepAlive == 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	return &NetDialer{opts: opts}
}

// Dial connects to host:port within timeout. Failures are classified as
// Timeout, TLS or Connection errors.
func (d *NetDialer) Dial(ctx context.Context, host string, port int, useTLS bool, timeout time.Duration) (Transport, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Shared process state is held for the lifetime of the transport.
	cache := acquire()

	nd := net.Dialer{KeepAlive: d.opts.KeepAlive}
	c, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		release()
		return nil, wserr.ClassifyNetworkError(err, "dial "+addr)
	}

	if useTLS {
		tlsConfig, err := NewTLSConfig(host, d.opts.TLS, cache)
		if err != nil {
			_ = c.Close()
			release()
			return nil, err
		}

		tlsConn := tls.Client(c, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = c.Close()
			release()
			if e := wserr.ClassifyNetworkError(err, "TLS handshake with "+addr); e.Type == wserr.ErrTypeTimeout {
				return nil, e
			}
			return nil, wserr.Wrap(wserr.ErrTypeTLS, "TLS handshake with "+addr+" failed", err)
		}
		c = tlsConn
	}

	logging.Debug("Transport connected",
		zap.String("addr", addr),
		zap.Bool("tls", useTLS),
	)

	return newConn(c, d.opts.WriteTimeout, release), nil
}

// conn adapts a net.Conn to Transport.
type conn struct {
	c            net.Conn
	addr         string
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
	onClose   func()
}

// NewConn wraps an already connected net.Conn, e.g. one end of net.Pipe.
func NewConn(c net.Conn) Transport {
	return newConn(c, 0, nil)
}

func newConn(c net.Conn, writeTimeout time.Duration, onClose func()) *conn {
	addr := ""
	if ra := c.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &conn{c: c, addr: addr, writeTimeout: writeTimeout, onClose: onClose}
}

func (c *conn) SendAll(p []byte) error {
	if c.writeTimeout > 0 {
		_ = c.c.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	for len(p) > 0 {
		n, err := c.c.Write(p)
		if err != nil {
			return wserr.ClassifyNetworkError(err, "send to "+c.addr)
		}
		p = p[n:]
	}
	return nil
}

func (c *conn) RecvSome(p []byte, timeout time.Duration) (int, error) {
	if err := c.c.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, wserr.ClassifyNetworkError(err, "receive from "+c.addr)
	}
	n, err := c.c.Read(p)
	if n > 0 {
		return n, nil
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, nil
		}
		return 0, wserr.ClassifyNetworkError(err, "receive from "+c.addr)
	}
	return 0, nil
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.c.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
	return c.closeErr
}

func (c *conn) RemoteAddr() string {
	return c.addr
}
