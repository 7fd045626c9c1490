package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Endpoint is a WebSocket server found on the local network.
type Endpoint struct {
	// Instance is the advertised service instance name (e.g., "Echo Server")
	Instance string

	// Hostname is the mDNS hostname (e.g., "echo.local.")
	Hostname string

	// IP is the resolved address, IPv4 preferred
	IP string

	// Port is the advertised port
	Port int

	// Secure is true for _wss._tcp services
	Secure bool

	// Metadata contains the TXT record key/value pairs.
	// Well-known keys: "path" (request path), "protocol" (subprotocol)
	Metadata map[string]string

	// DiscoveredAt is when the endpoint was seen
	DiscoveredAt time.Time
}

// String returns a human-readable description
func (e *Endpoint) String() string {
	return fmt.Sprintf("%s (%s) at %s", e.Instance, e.Hostname, e.URL())
}

// URL returns the ws:// or wss:// URL for the endpoint. The TXT "path"
// entry is used as the request path when present.
func (e *Endpoint) URL() string {
	scheme := "ws"
	if e.Secure {
		scheme = "wss"
	}

	path := e.GetMetadata("path")
	if path == "" {
		path = "/"
	} else if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return scheme + "://" + net.JoinHostPort(e.IP, strconv.Itoa(e.Port)) + path
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (e *Endpoint) GetMetadata(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}
