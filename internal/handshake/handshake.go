package handshake

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/muurk/wsclient/internal/compress"
	"github.com/muurk/wsclient/internal/config"
	"github.com/muurk/wsclient/internal/urls"
	"github.com/muurk/wsclient/internal/wserr"
)

const (
	// GUID is appended to the client key when deriving Sec-WebSocket-Accept
	GUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	// Version is the only protocol version RFC 6455 defines
	Version = "13"
	// MaxResponseSize caps the server's handshake response
	MaxResponseSize = 32 << 10

	deflateOffer = "client_no_context_takeover"
)

var headerTerminator = []byte("\r\n\r\n")

// Context is the per-connection handshake state.
type Context struct {
	Key            string   // Sec-WebSocket-Key sent to the server
	ExpectedAccept string   // Sec-WebSocket-Accept the server must return
	Offered        []string // Extension names offered, in request order
}

// NewContext generates a fresh 16-byte nonce and its expected accept value.
func NewContext() (*Context, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, wserr.Wrap(wserr.ErrTypeHandshake, "failed to generate handshake key", err)
	}
	key := base64.StdEncoding.EncodeToString(nonce)
	return &Context{Key: key, ExpectedAccept: AcceptKey(key)}, nil
}

// AcceptKey derives Sec-WebSocket-Accept from a Sec-WebSocket-Key.
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(GUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Build produces the upgrade request for u with a new handshake context.
func Build(u urls.URL, cfg config.Config) ([]byte, *Context, error) {
	ctx, err := NewContext()
	if err != nil {
		return nil, nil, err
	}
	return BuildWithContext(u, cfg, ctx), ctx, nil
}

// BuildWithContext renders the upgrade request using ctx.Key and records the
// offered extensions in ctx. Custom headers and extensions are emitted in
// name order so the request is deterministic.
func BuildWithContext(u urls.URL, cfg config.Config, ctx *Context) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", u.RequestURI())
	fmt.Fprintf(&b, "Host: %s\r\n", u.HostHeader())
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "Sec-WebSocket-Key: %s\r\n", ctx.Key)
	fmt.Fprintf(&b, "Sec-WebSocket-Version: %s\r\n", Version)

	for _, name := range sortedKeys(cfg.Headers) {
		fmt.Fprintf(&b, "%s: %s\r\n", name, cfg.Headers[name])
	}

	extensions := cfg.Extensions
	if cfg.Compression {
		if _, ok := extensions[compress.ExtensionName]; !ok {
			extensions = make(map[string]string, len(cfg.Extensions)+1)
			for k, v := range cfg.Extensions {
				extensions[k] = v
			}
			extensions[compress.ExtensionName] = deflateOffer
		}
	}

	ctx.Offered = ctx.Offered[:0]
	if len(extensions) > 0 {
		parts := make([]string, 0, len(extensions))
		for _, name := range sortedKeys(extensions) {
			ctx.Offered = append(ctx.Offered, name)
			if params := extensions[name]; params != "" {
				parts = append(parts, name+"; "+params)
			} else {
				parts = append(parts, name)
			}
		}
		fmt.Fprintf(&b, "Sec-WebSocket-Extensions: %s\r\n", strings.Join(parts, ", "))
	}

	b.WriteString("\r\n")
	return b.Bytes()
}

// SplitHeaderBlock finds the end of an HTTP header block. header includes
// the terminating blank line; rest is whatever followed it.
func SplitHeaderBlock(buf []byte) (header, rest []byte, ok bool) {
	i := bytes.Index(buf, headerTerminator)
	if i < 0 {
		return nil, nil, false
	}
	end := i + len(headerTerminator)
	return buf[:end], buf[end:], true
}

// Response is a parsed handshake response.
type Response struct {
	StatusLine string
	StatusCode int
	Header     map[string]string // lower-case names, repeated headers joined with ", "
}

// Get returns the value of the named header (case-insensitive).
func (r *Response) Get(name string) string {
	return r.Header[strings.ToLower(name)]
}

// ParseResponse reads the status line and headers up to the first blank line.
func ParseResponse(block []byte) (*Response, error) {
	lines := strings.Split(string(block), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, wserr.New(wserr.ErrTypeHandshake, "empty handshake response")
	}

	resp := &Response{
		StatusLine: strings.TrimSpace(lines[0]),
		Header:     make(map[string]string),
	}

	fields := strings.Fields(resp.StatusLine)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return nil, wserr.Newf(wserr.ErrTypeHandshake, "malformed status line %q", resp.StatusLine)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, wserr.Newf(wserr.ErrTypeHandshake, "malformed status code in %q", resp.StatusLine)
	}
	resp.StatusCode = code

	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if prev, seen := resp.Header[name]; seen && prev != "" {
			value = prev + ", " + value
		}
		resp.Header[name] = value
	}

	return resp, nil
}

// Validate checks the server's response against ctx: status 101, an Upgrade
// header containing "websocket", a Connection header containing "upgrade"
// and the exact expected Sec-WebSocket-Accept.
func Validate(block []byte, ctx *Context) (*Response, error) {
	resp, err := ParseResponse(block)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != 101 {
		return nil, wserr.Newf(wserr.ErrTypeHandshake, "server refused upgrade: %s", resp.StatusLine)
	}
	if !containsFold(resp.Get("Upgrade"), "websocket") {
		return nil, wserr.Newf(wserr.ErrTypeHandshake, "missing or invalid Upgrade header %q", resp.Get("Upgrade"))
	}
	if !containsFold(resp.Get("Connection"), "upgrade") {
		return nil, wserr.Newf(wserr.ErrTypeHandshake, "missing or invalid Connection header %q", resp.Get("Connection"))
	}
	accept := resp.Get("Sec-WebSocket-Accept")
	if accept != ctx.ExpectedAccept {
		return nil, wserr.Newf(wserr.ErrTypeHandshake, "Sec-WebSocket-Accept mismatch: got %q, want %q", accept, ctx.ExpectedAccept)
	}

	return resp, nil
}

// Extension is one entry of a Sec-WebSocket-Extensions header.
type Extension struct {
	Name   string
	Params map[string]string // valueless parameters map to ""
}

// ParseExtensions splits a Sec-WebSocket-Extensions value.
func ParseExtensions(value string) ([]Extension, error) {
	var exts []Extension
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ";")
		ext := Extension{Name: strings.TrimSpace(parts[0]), Params: make(map[string]string)}
		if ext.Name == "" {
			return nil, wserr.Newf(wserr.ErrTypeHandshake, "malformed extension %q", item)
		}
		for _, p := range parts[1:] {
			k, v, _ := strings.Cut(p, "=")
			k = strings.TrimSpace(k)
			if k == "" {
				return nil, wserr.Newf(wserr.ErrTypeHandshake, "malformed extension parameter in %q", item)
			}
			ext.Params[k] = strings.Trim(strings.TrimSpace(v), `"`)
		}
		exts = append(exts, ext)
	}
	return exts, nil
}

// Negotiate inspects the extensions the server accepted. It returns the
// permessage-deflate parameters and whether deflate is active. Accepting an
// extension that was never offered is a handshake error.
func Negotiate(resp *Response, ctx *Context) (compress.Params, bool, error) {
	exts, err := ParseExtensions(resp.Get("Sec-WebSocket-Extensions"))
	if err != nil {
		return compress.Params{}, false, err
	}

	var (
		params  compress.Params
		deflate bool
	)
	for _, ext := range exts {
		if !offered(ctx, ext.Name) {
			return compress.Params{}, false, wserr.Newf(wserr.ErrTypeHandshake, "server accepted extension %q that was not offered", ext.Name)
		}
		if ext.Name != compress.ExtensionName {
			continue
		}
		if deflate {
			return compress.Params{}, false, wserr.New(wserr.ErrTypeHandshake, "server accepted permessage-deflate twice")
		}
		p, err := compress.ParseParams(ext.Params)
		if err != nil {
			return compress.Params{}, false, wserr.Wrap(wserr.ErrTypeHandshake, "invalid permessage-deflate response", err)
		}
		if p.ClientMaxWindowBits != 0 && p.ClientMaxWindowBits < 15 {
			return compress.Params{}, false, wserr.Newf(wserr.ErrTypeHandshake, "client_max_window_bits=%d is not supported", p.ClientMaxWindowBits)
		}
		params, deflate = p, true
	}
	return params, deflate, nil
}

func offered(ctx *Context, name string) bool {
	for _, o := range ctx.Offered {
		if strings.EqualFold(o, name) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
