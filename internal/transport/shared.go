package transport

import (
	"crypto/tls"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/wsclient/internal/logging"
)

// sessionCacheSize bounds the number of resumable TLS sessions kept.
const sessionCacheSize = 64

// Process-wide transport state. It is created when the first transport
// opens and torn down when the last one closes.
var shared struct {
	mu    sync.Mutex
	refs  int
	cache tls.ClientSessionCache
}

func acquire() tls.ClientSessionCache {
	shared.mu.Lock()
	defer shared.mu.Unlock()

	if shared.refs == 0 {
		shared.cache = tls.NewLRUClientSessionCache(sessionCacheSize)
		logging.Debug("Transport state initialized", zap.Int("session_cache_size", sessionCacheSize))
	}
	shared.refs++
	return shared.cache
}

func release() {
	shared.mu.Lock()
	defer shared.mu.Unlock()

	if shared.refs == 0 {
		logging.Warn("Transport state released more often than acquired")
		return
	}
	shared.refs--
	if shared.refs == 0 {
		shared.cache = nil
		logging.Debug("Transport state released")
	}
}

// ActiveTransports returns the number of open dialed transports.
func ActiveTransports() int {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	return shared.refs
}
