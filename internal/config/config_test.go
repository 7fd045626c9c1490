package config

import (
	"testing"
	"time"

	"github.com/muurk/wsclient/internal/wserr"
)

func TestDefault(t *testing.T) {
	c := Default()

	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", c.Timeout)
	}
	if c.MaxFrameSize != 1024*1024 {
		t.Errorf("MaxFrameSize = %d, want 1048576", c.MaxFrameSize)
	}
	if c.Compression {
		t.Error("Compression should be off by default")
	}
	if c.CompressionLevel != 6 {
		t.Errorf("CompressionLevel = %d, want 6", c.CompressionLevel)
	}
	if c.PingInterval != 30*time.Second {
		t.Errorf("PingInterval = %v, want 30s", c.PingInterval)
	}
	if c.PongTimeout != 10*time.Second {
		t.Errorf("PongTimeout = %v, want 10s", c.PongTimeout)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: true},
		{name: "negative frame size", mutate: func(c *Config) { c.MaxFrameSize = -1 }, wantErr: true},
		{name: "level 0", mutate: func(c *Config) { c.CompressionLevel = 0 }},
		{name: "level 9", mutate: func(c *Config) { c.CompressionLevel = 9 }},
		{name: "level 10", mutate: func(c *Config) { c.CompressionLevel = 10 }, wantErr: true},
		{name: "level -1", mutate: func(c *Config) { c.CompressionLevel = -1 }, wantErr: true},
		{name: "ping disabled", mutate: func(c *Config) { c.PingInterval = 0; c.PongTimeout = 0 }},
		{name: "negative ping", mutate: func(c *Config) { c.PingInterval = -time.Second }, wantErr: true},
		{name: "negative pong", mutate: func(c *Config) { c.PongTimeout = -time.Second }, wantErr: true},
		{name: "custom header", mutate: func(c *Config) { c.Headers = map[string]string{"Origin": "https://x"} }},
		{name: "reserved header", mutate: func(c *Config) { c.Headers = map[string]string{"sec-websocket-key": "x"} }, wantErr: true},
		{name: "header injection", mutate: func(c *Config) { c.Headers = map[string]string{"X-A": "a\r\nX-B: b"} }, wantErr: true},
		{name: "header bad name", mutate: func(c *Config) { c.Headers = map[string]string{"Bad Name": "x"} }, wantErr: true},
		{name: "extension", mutate: func(c *Config) { c.Extensions = map[string]string{"x-ext": "a=1"} }},
		{name: "extension with comma", mutate: func(c *Config) { c.Extensions = map[string]string{"x-ext": "a, b"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !wserr.IsInvalidParameterError(err) {
				t.Errorf("Validate() error type = %v, want %v", wserr.TypeOf(err), wserr.ErrTypeInvalidParameter)
			}
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	c := Default()
	c.Headers = map[string]string{"Origin": "a"}
	c.Extensions = map[string]string{"x": ""}

	cp := c.Clone()
	cp.Headers["Origin"] = "b"
	cp.Extensions["y"] = ""

	if c.Headers["Origin"] != "a" {
		t.Error("Clone shares the headers map")
	}
	if _, ok := c.Extensions["y"]; ok {
		t.Error("Clone shares the extensions map")
	}
}

func TestWithDefaults(t *testing.T) {
	c := Config{PingInterval: 0, CompressionLevel: 3}.WithDefaults()
	if c.Timeout != DefaultTimeout || c.MaxFrameSize != DefaultMaxFrameSize {
		t.Errorf("WithDefaults() = %+v", c)
	}
	if c.PingInterval != 0 || c.CompressionLevel != 3 {
		t.Error("WithDefaults() changed fields with a meaningful zero value")
	}
}
