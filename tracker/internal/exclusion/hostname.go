package exclusion

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// LookupFunc resolves a hostname to its addresses. Matches the signature of
// net.DefaultResolver.LookupHost so the real resolver drops straight in.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// HostCache resolves a configured list of excluded hostnames to IPs and
// answers containment queries against the resolved set. Reads are
// lock-cheap and may serve entries up to the TTL stale; refresh happens
// out-of-band via StartReloader or lazily on first use.
type HostCache struct {
	hosts  []string
	lookup LookupFunc
	ttl    time.Duration
	logger *slog.Logger

	mu        sync.RWMutex
	ips       map[string]struct{}
	refreshed time.Time
}

// NewHostCache creates a cache over hosts. A nil lookup uses the system
// resolver. A zero ttl defaults to one hour.
func NewHostCache(hosts []string, lookup LookupFunc, ttl time.Duration, logger *slog.Logger) *HostCache {
	if lookup == nil {
		lookup = net.DefaultResolver.LookupHost
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HostCache{
		hosts:  hosts,
		lookup: lookup,
		ttl:    ttl,
		logger: logger,
		ips:    make(map[string]struct{}),
	}
}

// Contains reports whether ip is one of the excluded hosts' addresses.
// Triggers a synchronous refresh when the cache has expired.
func (h *HostCache) Contains(ctx context.Context, ip string) bool {
	if len(h.hosts) == 0 {
		return false
	}
	h.mu.RLock()
	expired := time.Since(h.refreshed) > h.ttl
	_, ok := h.ips[ip]
	h.mu.RUnlock()
	if !expired {
		return ok
	}
	h.Refresh(ctx)
	h.mu.RLock()
	_, ok = h.ips[ip]
	h.mu.RUnlock()
	return ok
}

// Refresh re-resolves every configured host. Hosts that fail to resolve
// keep their previous addresses out of the set; resolution failure must
// never block or fail the hit path.
func (h *HostCache) Refresh(ctx context.Context) {
	ips := make(map[string]struct{})
	for _, host := range h.hosts {
		addrs, err := h.lookup(ctx, host)
		if err != nil {
			h.logger.Debug("hostname exclusion lookup failed", "host", host, "error", err)
			continue
		}
		for _, a := range addrs {
			ips[a] = struct{}{}
		}
	}
	h.mu.Lock()
	h.ips = ips
	h.refreshed = time.Now()
	h.mu.Unlock()
}

// StartReloader refreshes the cache every TTL until done is closed.
func (h *HostCache) StartReloader(done <-chan struct{}) {
	tick := time.NewTicker(h.ttl)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				h.Refresh(context.Background())
			}
		}
	}()
}
