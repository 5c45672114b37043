package fetcher

import (
	"log/slog"
	"math/rand/v2"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/NewsLens/internal/config"
)

// ProxyManager rotates outbound requests over a fixed proxy list. A proxy
// that fails with a retryable network error is taken out of rotation until
// it serves a request successfully again; when every proxy is out, requests
// go direct.
type ProxyManager struct {
	proxies  []*proxyEntry
	rotation string
	index    atomic.Int64
	mu       sync.RWMutex
	logger   *slog.Logger
}

type proxyEntry struct {
	URL     *url.URL
	Healthy bool
	LastErr error
	LastUse time.Time
}

// NewProxyManager creates a new ProxyManager from configuration.
func NewProxyManager(cfg *config.ProxyConfig, logger *slog.Logger) *ProxyManager {
	pm := &ProxyManager{
		proxies:  make([]*proxyEntry, 0, len(cfg.URLs)),
		rotation: cfg.Rotation,
		logger:   logger.With("component", "proxy_manager"),
	}

	for _, rawURL := range cfg.URLs {
		u, err := url.Parse(rawURL)
		if err != nil {
			pm.logger.Warn("invalid proxy URL", "url", rawURL, "error", err)
			continue
		}
		pm.proxies = append(pm.proxies, &proxyEntry{URL: u, Healthy: true})
	}

	pm.logger.Info("proxy manager initialized", "count", len(pm.proxies), "rotation", cfg.Rotation)
	return pm
}

// Next returns the next proxy URL, or nil for a direct connection.
func (pm *ProxyManager) Next() *url.URL {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	healthy := pm.healthyProxies()
	if len(healthy) == 0 {
		return nil
	}

	var entry *proxyEntry
	switch pm.rotation {
	case "random":
		entry = healthy[rand.IntN(len(healthy))]
	default: // round_robin
		entry = healthy[pm.index.Add(1)%int64(len(healthy))]
	}
	entry.LastUse = time.Now()
	return entry.URL
}

// MarkFailed takes a proxy out of rotation.
func (pm *ProxyManager) MarkFailed(proxyURL *url.URL, err error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if p := pm.find(proxyURL); p != nil {
		p.Healthy = false
		p.LastErr = err
		pm.logger.Warn("proxy marked unhealthy", "proxy", proxyURL.Host, "error", err)
	}
}

// MarkHealthy puts a proxy back into rotation.
func (pm *ProxyManager) MarkHealthy(proxyURL *url.URL) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if p := pm.find(proxyURL); p != nil {
		p.Healthy = true
		p.LastErr = nil
	}
}

// Count returns the total number of proxies.
func (pm *ProxyManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.proxies)
}

// HealthyCount returns the number of proxies in rotation.
func (pm *ProxyManager) HealthyCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.healthyProxies())
}

func (pm *ProxyManager) find(u *url.URL) *proxyEntry {
	for _, p := range pm.proxies {
		if p.URL.String() == u.String() {
			return p
		}
	}
	return nil
}

func (pm *ProxyManager) healthyProxies() []*proxyEntry {
	healthy := make([]*proxyEntry, 0, len(pm.proxies))
	for _, p := range pm.proxies {
		if p.Healthy {
			healthy = append(healthy, p)
		}
	}
	return healthy
}
