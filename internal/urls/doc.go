// Package urls parses WebSocket endpoint URLs.
//
// Only the two RFC 6455 schemes are accepted:
//
//	ws://host[:port][/path][?query]    (default port 80)
//	wss://host[:port][/path][?query]   (default port 443, TLS)
//
// Parsing is pure: no name resolution or other I/O happens here.
//
// Usage:
//
//	import "github.com/muurk/wsclient/internal/urls"
//
//	u, err := urls.Parse("wss://example.com/chat?room=1")
//	if err != nil {
//		return err
//	}
//	fmt.Println(u.Host, u.Port, u.RequestURI()) // example.com 443 /chat?room=1
package urls
