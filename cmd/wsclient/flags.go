package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/muurk/wsclient/internal/capture"
	"github.com/muurk/wsclient/internal/config"
	"github.com/muurk/wsclient/internal/version"
)

// connFlags are the client settings shared by every command that opens a
// connection. Only flags the user actually set override the profile.
type connFlags struct {
	profile string

	timeout          time.Duration
	maxFrameSize     int64
	compression      bool
	compressionLevel int
	pingInterval     time.Duration
	pongTimeout      time.Duration
	headers          []string
	extensions       []string
	insecure         bool
	caFile           string
	serverName       string

	captureDir string
	captureDB  string
}

func (f *connFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.profile, "profile", "p", "", "Use a saved connection profile")
	f.registerConfig(fs)
	fs.StringVar(&f.captureDir, "capture-dir", "", "Write every frame to a JSON Lines file in this directory")
	fs.StringVar(&f.captureDB, "capture-db", "", "Write every frame to this SQLite database")
}

// registerConfig adds one flag per client setting.
func (f *connFlags) registerConfig(fs *pflag.FlagSet) {
	def := config.Default()

	fs.DurationVar(&f.timeout, "timeout", def.Timeout, "Connect and handshake deadline")
	fs.Int64Var(&f.maxFrameSize, "max-frame-size", def.MaxFrameSize, "Largest inbound frame or message payload in bytes")
	fs.BoolVar(&f.compression, "compress", def.Compression, "Offer permessage-deflate")
	fs.IntVar(&f.compressionLevel, "compression-level", def.CompressionLevel, "Deflate level 0-9")
	fs.DurationVar(&f.pingInterval, "ping-interval", def.PingInterval, "Keepalive ping interval (0 disables)")
	fs.DurationVar(&f.pongTimeout, "pong-timeout", def.PongTimeout, "Close the connection when a ping stays unanswered this long (0 disables)")
	fs.StringArrayVarP(&f.headers, "header", "H", nil, "Extra handshake header as 'Name: value' (repeatable)")
	fs.StringArrayVar(&f.extensions, "extension", nil, "Offer an extension as 'name' or 'name; params' (repeatable)")
	fs.BoolVarP(&f.insecure, "insecure", "k", false, "Skip TLS certificate verification (testing only)")
	fs.StringVar(&f.caFile, "ca-file", "", "PEM bundle of additional trusted CAs")
	fs.StringVar(&f.serverName, "server-name", "", "Override the TLS server name (SNI)")
}

// resolve returns the URL and config for a command. A URL argument wins
// over the profile's URL; set flags win over the profile's config.
func (f *connFlags) resolve(cmd *cobra.Command, args []string) (string, config.Config, error) {
	cfg := config.Default()
	url := ""
	if len(args) > 0 {
		url = args[0]
	}

	name := f.profile
	var reg *config.Registry
	if name != "" || url == "" {
		var err error
		reg, err = config.LoadRegistry()
		if err != nil {
			return "", cfg, err
		}
		if name == "" && reg.Preferences != nil {
			name = reg.Preferences.DefaultProfile
		}
	}

	if name != "" {
		p := reg.GetProfile(name)
		if p == nil {
			return "", cfg, fmt.Errorf("profile %q not found (see 'wsclient profile list')", name)
		}
		cfg = p.Config
		if url == "" {
			url = p.URL
		}
		reg.TouchProfile(name)
		if err := reg.Save(); err != nil {
			return "", cfg, err
		}
	}

	if f.captureDir == "" && reg != nil && reg.Preferences != nil {
		f.captureDir = reg.Preferences.CaptureDir
	}

	if err := f.apply(cmd.Flags(), &cfg); err != nil {
		return "", cfg, err
	}
	return url, cfg, nil
}

// apply copies every changed flag into cfg.
func (f *connFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if fs.Changed("max-frame-size") {
		cfg.MaxFrameSize = f.maxFrameSize
	}
	if fs.Changed("compress") {
		cfg.Compression = f.compression
	}
	if fs.Changed("compression-level") {
		cfg.CompressionLevel = f.compressionLevel
	}
	if fs.Changed("ping-interval") {
		cfg.PingInterval = f.pingInterval
	}
	if fs.Changed("pong-timeout") {
		cfg.PongTimeout = f.pongTimeout
	}
	if fs.Changed("insecure") {
		cfg.TLS.InsecureSkipVerify = f.insecure
	}
	if fs.Changed("ca-file") {
		cfg.TLS.CAFile = f.caFile
	}
	if fs.Changed("server-name") {
		cfg.TLS.ServerName = f.serverName
	}

	for _, h := range f.headers {
		name, value, err := parseHeader(h)
		if err != nil {
			return err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		cfg.Headers[name] = value
	}

	for _, e := range f.extensions {
		name, params, _ := strings.Cut(e, ";")
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("invalid --extension %q", e)
		}
		if cfg.Extensions == nil {
			cfg.Extensions = make(map[string]string)
		}
		cfg.Extensions[name] = strings.TrimSpace(params)
	}

	return cfg.Validate()
}

// parseHeader accepts "Name: value" or "Name=value".
func parseHeader(s string) (string, string, error) {
	i := strings.IndexAny(s, ":=")
	if i <= 0 {
		return "", "", fmt.Errorf("invalid --header %q (want 'Name: value')", s)
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), nil
}

// withUserAgent adds the wsclient User-Agent unless one was configured.
func withUserAgent(cfg config.Config) config.Config {
	for name := range cfg.Headers {
		if strings.EqualFold(name, "User-Agent") {
			return cfg
		}
	}
	cfg = cfg.Clone()
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	cfg.Headers["User-Agent"] = version.UserAgent()
	return cfg
}

// openCapture builds a recorder for url from --capture-dir/--capture-db.
// It returns nil when capture is off.
func (f *connFlags) openCapture(url string) (*capture.Recorder, []string, error) {
	var (
		sinks []capture.Sink
		paths []string
	)

	if f.captureDir != "" {
		s, err := capture.OpenJSONL(f.captureDir, time.Now())
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, s)
		paths = append(paths, s.Path())
	}

	if f.captureDB != "" {
		s, err := capture.OpenSQLite(f.captureDB)
		if err != nil {
			for _, open := range sinks {
				_ = open.Close()
			}
			return nil, nil, err
		}
		sinks = append(sinks, s)
		paths = append(paths, f.captureDB)
	}

	if len(sinks) == 0 {
		return nil, nil, nil
	}
	return capture.NewRecorder(url, sinks...), paths, nil
}
