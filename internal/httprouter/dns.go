package httprouter

import (
	"net"
	"sync"
	"time"
)

// dnsCache is the Router's shared DNS cache (TTL 300s default), per
// spec.md §4.A: "sessions... share a DNS cache". A miss or expired entry
// falls back to the hostname itself, letting the stdlib resolver handle it
// rather than failing the dial.
type dnsCache struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]dnsEntry
}

type dnsEntry struct {
	ip        string
	expiresAt time.Time
}

func newDNSCache(ttl time.Duration) *dnsCache {
	return &dnsCache{ttl: ttl, entries: make(map[string]dnsEntry)}
}

func (c *dnsCache) resolve(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}

	c.mu.Lock()
	if e, ok := c.entries[host]; ok && time.Now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.ip
	}
	c.mu.Unlock()

	ips, err := net.LookupHost(host)
	if err != nil || len(ips) == 0 {
		return host
	}

	c.mu.Lock()
	c.entries[host] = dnsEntry{ip: ips[0], expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return ips[0]
}
