// Package discovery finds WebSocket servers on the local network with
// multicast DNS service discovery.
//
// Servers are expected to advertise "_ws._tcp" (plain) or "_wss._tcp"
// (TLS) services. The TXT record key "path" gives the request path; other
// keys are kept as metadata.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	scanner.Timeout = 3 * time.Second
//	endpoints, err := scanner.Scan(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, ep := range endpoints {
//	    fmt.Println(ep.Instance, ep.URL())
//	}
package discovery
