package config

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/muurk/wsclient/internal/wserr"
)

const (
	// DefaultTimeout bounds connect plus the opening handshake
	DefaultTimeout = 5 * time.Second
	// DefaultMaxFrameSize is the largest inbound frame (and message) payload accepted
	DefaultMaxFrameSize = 1 << 20
	// DefaultCompressionLevel is the deflate level used when compression is negotiated
	DefaultCompressionLevel = 6
	// DefaultPingInterval is how often an unsolicited ping is sent
	DefaultPingInterval = 30 * time.Second
	// DefaultPongTimeout is how long a ping may stay unanswered
	DefaultPongTimeout = 10 * time.Second
)

// Config holds the tunables of one client. It is copied into the client at
// construction and never changes afterwards.
type Config struct {
	Timeout          time.Duration     `yaml:"timeout"`              // Connect + handshake deadline
	MaxFrameSize     int64             `yaml:"max_frame_size"`       // Inbound payload limit in bytes
	Compression      bool              `yaml:"compression"`          // Offer permessage-deflate
	CompressionLevel int               `yaml:"compression_level"`    // 0-9
	PingInterval     time.Duration     `yaml:"ping_interval"`        // 0 disables keepalive pings
	PongTimeout      time.Duration     `yaml:"pong_timeout"`         // 0 disables the pong deadline
	Headers          map[string]string `yaml:"headers,omitempty"`    // Extra handshake headers
	Extensions       map[string]string `yaml:"extensions,omitempty"` // Extension name -> parameters
	TLS              TLSConfig         `yaml:"tls,omitempty"`        // wss:// settings
}

// TLSConfig controls certificate verification for wss:// connections.
type TLSConfig struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"` // Testing only
	CAFile             string `yaml:"ca_file,omitempty"`              // PEM bundle added to the trust roots
	ServerName         string `yaml:"server_name,omitempty"`          // SNI override
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Timeout:          DefaultTimeout,
		MaxFrameSize:     DefaultMaxFrameSize,
		Compression:      false,
		CompressionLevel: DefaultCompressionLevel,
		PingInterval:     DefaultPingInterval,
		PongTimeout:      DefaultPongTimeout,
	}
}

// WithDefaults fills the fields that have no meaningful zero value.
func (c Config) WithDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = DefaultMaxFrameSize
	}
	return c
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	c.Headers = maps.Clone(c.Headers)
	c.Extensions = maps.Clone(c.Extensions)
	return c
}

// reservedHeaders are produced by the handshake itself and cannot be overridden.
var reservedHeaders = map[string]bool{
	"host":                     true,
	"upgrade":                  true,
	"connection":               true,
	"sec-websocket-key":        true,
	"sec-websocket-version":    true,
	"sec-websocket-extensions": true,
	"sec-websocket-accept":     true,
}

// Validate reports the first invalid field as an InvalidParameter error.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return invalid("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxFrameSize <= 0 {
		return invalid("max_frame_size must be positive, got %d", c.MaxFrameSize)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return invalid("compression_level must be between 0 and 9, got %d", c.CompressionLevel)
	}
	if c.PingInterval < 0 {
		return invalid("ping_interval must not be negative, got %s", c.PingInterval)
	}
	if c.PongTimeout < 0 {
		return invalid("pong_timeout must not be negative, got %s", c.PongTimeout)
	}

	for name, value := range c.Headers {
		if !isToken(name) {
			return invalid("header name %q is not a valid token", name)
		}
		if reservedHeaders[strings.ToLower(name)] {
			return invalid("header %q is set by the handshake and cannot be overridden", name)
		}
		if strings.ContainsAny(value, "\r\n") {
			return invalid("header %q value contains a line break", name)
		}
	}

	for name, params := range c.Extensions {
		if !isToken(name) {
			return invalid("extension name %q is not a valid token", name)
		}
		if strings.ContainsAny(params, "\r\n,") {
			return invalid("extension %q parameters contain an invalid character", name)
		}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return wserr.New(wserr.ErrTypeInvalidParameter, fmt.Sprintf(format, args...))
}

// isToken reports whether s is an RFC 7230 token.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}
