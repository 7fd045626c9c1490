package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wsclient/internal/logging"
)

const (
	// ServiceWS is the DNS-SD service type for plain WebSocket servers
	ServiceWS = "_ws._tcp"

	// ServiceWSS is the DNS-SD service type for WebSocket servers over TLS
	ServiceWSS = "_wss._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for endpoint discovery
	DefaultScanTimeout = 5 * time.Second
)

// Browser is the part of zeroconf.Resolver the scanner uses.
type Browser interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// Scanner handles mDNS endpoint discovery
type Scanner struct {
	// Timeout is the maximum time to wait for advertisements
	Timeout time.Duration

	// newBrowser is replaced in tests
	newBrowser func() (Browser, error)
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		newBrowser: func() (Browser, error) {
			return zeroconf.NewResolver(nil)
		},
	}
}

// Scan discovers ws and wss endpoints until the timeout expires. Results
// are de-duplicated and sorted by instance name.
func (s *Scanner) Scan(ctx context.Context) ([]*Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	type result struct {
		endpoints []*Endpoint
		err       error
	}
	results := make(chan result, 2)

	for _, service := range []string{ServiceWS, ServiceWSS} {
		go func(service string) {
			eps, err := s.browse(ctx, service, nil)
			results <- result{eps, err}
		}(service)
	}

	seen := make(map[string]*Endpoint)
	var firstErr error
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		for _, ep := range r.endpoints {
			seen[ep.URL()] = ep
		}
	}
	if firstErr != nil && len(seen) == 0 {
		return nil, firstErr
	}

	endpoints := make([]*Endpoint, 0, len(seen))
	for _, ep := range seen {
		endpoints = append(endpoints, ep)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Instance != endpoints[j].Instance {
			return endpoints[i].Instance < endpoints[j].Instance
		}
		return endpoints[i].URL() < endpoints[j].URL()
	})
	return endpoints, nil
}

// WaitFor returns the first endpoint whose instance name matches name
// (case-insensitive).
func (s *Scanner) WaitFor(ctx context.Context, name string) (*Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Endpoint, 2)
	match := func(ep *Endpoint) bool {
		if strings.EqualFold(ep.Instance, name) {
			select {
			case found <- ep:
			default:
			}
			cancel()
			return true
		}
		return false
	}

	errs := make(chan error, 2)
	for _, service := range []string{ServiceWS, ServiceWSS} {
		go func(service string) {
			_, err := s.browse(ctx, service, match)
			errs <- err
		}(service)
	}

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			select {
			case ep := <-found:
				return ep, nil
			default:
			}
			return nil, err
		}
	}

	select {
	case ep := <-found:
		return ep, nil
	default:
		return nil, fmt.Errorf("endpoint %q not found within %s", name, s.Timeout)
	}
}

// browse collects endpoints for one service type until ctx is done. stop,
// if set, ends collection early when it returns true.
func (s *Scanner) browse(ctx context.Context, service string, stop func(*Endpoint) bool) ([]*Endpoint, error) {
	resolver, err := s.newBrowser()
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	collected := make(chan []*Endpoint, 1)

	go func() {
		var eps []*Endpoint
		for entry := range entries {
			ep := parseServiceEntry(entry, service == ServiceWSS)
			if ep == nil {
				continue
			}
			logging.Debug("Endpoint discovered",
				zap.String("instance", ep.Instance),
				zap.String("url", ep.URL()),
			)
			eps = append(eps, ep)
			if stop != nil && stop(ep) {
				break
			}
		}
		// the resolver closes entries once ctx is done
		for range entries {
		}
		collected <- eps
	}()

	if err := resolver.Browse(ctx, service, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for %s services: %w", service, err)
	}

	<-ctx.Done()
	return <-collected, nil
}

// parseServiceEntry converts a zeroconf service entry to an Endpoint.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry, secure bool) *Endpoint {
	if entry == nil || entry.Port == 0 {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	// Parse TXT records into metadata
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		if key == "" {
			continue
		}
		metadata[strings.ToLower(key)] = value
	}

	instance := entry.Instance
	if instance == "" {
		instance = strings.TrimSuffix(entry.HostName, ".")
	}

	return &Endpoint{
		Instance:     instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Secure:       secure,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
