package urls

import (
	"net"
	"strconv"
	"strings"

	"github.com/muurk/wsclient/internal/wserr"
)

const (
	// SchemeWS is the plaintext WebSocket scheme
	SchemeWS = "ws"
	// SchemeWSS is the TLS WebSocket scheme
	SchemeWSS = "wss"

	// DefaultPortWS is used when a ws:// URL carries no port
	DefaultPortWS = 80
	// DefaultPortWSS is used when a wss:// URL carries no port
	DefaultPortWSS = 443
)

// URL is a parsed ws:// or wss:// endpoint.
type URL struct {
	Scheme string // "ws" or "wss", lower case
	Host   string // host name or IP literal, without IPv6 brackets
	Port   int    // 1..65535, scheme default when absent
	Path   string // always starts with "/"
	Query  string // raw query without the leading "?"
}

// Parse splits raw into a URL, or fails with a URL error.
func Parse(raw string) (URL, error) {
	var u URL

	schemeEnd := strings.Index(raw, "://")
	if schemeEnd < 0 {
		return u, wserr.Newf(wserr.ErrTypeURL, "missing scheme in %q", raw)
	}

	u.Scheme = strings.ToLower(raw[:schemeEnd])
	switch u.Scheme {
	case SchemeWS:
		u.Port = DefaultPortWS
	case SchemeWSS:
		u.Port = DefaultPortWSS
	default:
		return URL{}, wserr.Newf(wserr.ErrTypeURL, "unsupported scheme %q (want ws or wss)", raw[:schemeEnd])
	}

	rest := raw[schemeEnd+3:]
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}

	authority := rest
	remainder := ""
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		authority = rest[:i]
		remainder = rest[i:]
	}

	host, port, err := splitAuthority(authority)
	if err != nil {
		return URL{}, err
	}
	u.Host = host
	if port != 0 {
		u.Port = port
	}

	u.Path = "/"
	if remainder != "" {
		path := remainder
		if i := strings.IndexByte(remainder, '?'); i >= 0 {
			path = remainder[:i]
			u.Query = remainder[i+1:]
		}
		if path != "" {
			u.Path = path
		}
	}

	return u, nil
}

// splitAuthority returns the host and explicit port (0 when absent).
func splitAuthority(authority string) (string, int, error) {
	// userinfo is not meaningful for a WebSocket handshake
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		authority = authority[i+1:]
	}

	var host, portStr string
	hasPort := false

	if strings.HasPrefix(authority, "[") {
		end := strings.IndexByte(authority, ']')
		if end < 0 {
			return "", 0, wserr.Newf(wserr.ErrTypeURL, "unterminated IPv6 literal in %q", authority)
		}
		host = authority[1:end]
		after := authority[end+1:]
		if after != "" {
			if after[0] != ':' {
				return "", 0, wserr.Newf(wserr.ErrTypeURL, "unexpected %q after IPv6 literal", after)
			}
			portStr, hasPort = after[1:], true
		}
	} else if i := strings.LastIndexByte(authority, ':'); i >= 0 {
		host, portStr, hasPort = authority[:i], authority[i+1:], true
	} else {
		host = authority
	}

	if host == "" {
		return "", 0, wserr.New(wserr.ErrTypeURL, "empty host")
	}

	if !hasPort {
		return host, 0, nil
	}
	if portStr == "" {
		return "", 0, wserr.New(wserr.ErrTypeURL, "empty port")
	}
	for i := 0; i < len(portStr); i++ {
		if portStr[i] < '0' || portStr[i] > '9' {
			return "", 0, wserr.New(wserr.ErrTypeURL, "port is not a number: "+portStr)
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, wserr.Wrap(wserr.ErrTypeURL, "port is not a number: "+portStr, err)
	}
	if port < 1 || port > 65535 {
		return "", 0, wserr.Newf(wserr.ErrTypeURL, "port %d out of range 1-65535", port)
	}
	return host, port, nil
}

// Secure reports whether the URL requires TLS.
func (u URL) Secure() bool {
	return u.Scheme == SchemeWSS
}

// DefaultPort returns the scheme's default port.
func (u URL) DefaultPort() int {
	if u.Secure() {
		return DefaultPortWSS
	}
	return DefaultPortWS
}

// HostHeader returns the value of the Host request header: the port is
// omitted when it is the scheme default.
func (u URL) HostHeader() string {
	host := u.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if u.Port == u.DefaultPort() {
		return host
	}
	return host + ":" + strconv.Itoa(u.Port)
}

// RequestURI returns the request target for the GET line.
func (u URL) RequestURI() string {
	if u.Query == "" {
		return u.Path
	}
	return u.Path + "?" + u.Query
}

// Address returns host:port suitable for net.Dial.
func (u URL) Address() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// String reassembles the URL in canonical form.
func (u URL) String() string {
	return u.Scheme + "://" + u.HostHeader() + u.RequestURI()
}
