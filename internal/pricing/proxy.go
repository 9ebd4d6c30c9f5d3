package pricing

import (
	"strings"
	"sync/atomic"
)

// ProxyPool hands out configured egress proxies in round-robin order.
// The cursor is a single atomic counter so concurrent scrape invocations
// can share one pool without corrupting the cycle.
type ProxyPool struct {
	endpoints []ProxyEndpoint
	cursor    atomic.Uint64
}

// NewProxyPool builds a pool over the given endpoints. The slice is copied;
// the pool is meant to live for the process configuration lifetime.
func NewProxyPool(endpoints []ProxyEndpoint) *ProxyPool {
	return &ProxyPool{
		endpoints: append([]ProxyEndpoint(nil), endpoints...),
	}
}

// NewProxyPoolFromString builds a pool from a comma-separated list of proxy
// server addresses, e.g. "http://p1:8080,http://p2:8080".
func NewProxyPoolFromString(raw string) *ProxyPool {
	var endpoints []ProxyEndpoint
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		endpoints = append(endpoints, ProxyEndpoint{Server: token})
	}
	return NewProxyPool(endpoints)
}

// Next returns the next endpoint in cyclic order. An empty pool returns
// (zero, false) rather than an error so callers can choose to proceed with
// a direct connection.
func (p *ProxyPool) Next() (ProxyEndpoint, bool) {
	if p == nil || len(p.endpoints) == 0 {
		return ProxyEndpoint{}, false
	}
	idx := (p.cursor.Add(1) - 1) % uint64(len(p.endpoints))
	return p.endpoints[idx], true
}

// Size returns the number of configured endpoints.
func (p *ProxyPool) Size() int {
	if p == nil {
		return 0
	}
	return len(p.endpoints)
}
