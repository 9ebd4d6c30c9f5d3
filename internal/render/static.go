package render

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/rategrid/compintel/internal/pricing"
)

// StaticConfig controls the plain-HTTP render sessions.
type StaticConfig struct {
	UserAgent string
}

// StaticFactory opens colly-backed sessions for platforms that render
// server-side, and for environments without a Chrome binary. It satisfies
// the same capability as the chromedp factory.
type StaticFactory struct {
	cfg StaticConfig
}

// NewStaticFactory builds a StaticFactory.
func NewStaticFactory(cfg StaticConfig) *StaticFactory {
	return &StaticFactory{cfg: cfg}
}

// Open builds a collector, optionally routed through proxy.
func (f *StaticFactory) Open(proxy *pricing.ProxyEndpoint) (pricing.Renderer, error) {
	// colly v2.1.0's Async option ignores its argument and always enables
	// async mode; the collector must stay synchronous, which is the default.
	c := colly.NewCollector()
	if f.cfg.UserAgent != "" {
		c.UserAgent = f.cfg.UserAgent
	}
	// The orchestrator owns the robots decision; double-checking here
	// would fetch robots.txt twice per invocation.
	c.IgnoreRobotsTxt = true
	if proxy != nil && proxy.Server != "" {
		proxyURL, err := proxyURLString(proxy)
		if err != nil {
			return nil, err
		}
		if err := c.SetProxy(proxyURL); err != nil {
			return nil, fmt.Errorf("set collector proxy: %w", err)
		}
	}
	return &staticSession{collector: c}, nil
}

type staticSession struct {
	mu        sync.Mutex
	collector *colly.Collector
	closed    bool
}

// Navigate fetches url with a bounded request timeout and returns the body.
func (s *staticSession) Navigate(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	collector := s.collector.Clone()
	s.mu.Unlock()

	collector.SetRequestTimeout(timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("static fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("static visit failed: %w", err)
		}
		if fetchErr != nil {
			return "", fmt.Errorf("static response failed: %w", fetchErr)
		}
		return string(body), nil
	}
}

// Close releases the collector. A second Close is a no-op.
func (s *staticSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.collector = nil
	s.closed = true
	return nil
}

// Initialized reports whether the session is still usable.
func (s *staticSession) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.collector != nil
}

func proxyURLString(proxy *pricing.ProxyEndpoint) (string, error) {
	raw := proxy.Server
	// Bare host:port would otherwise parse the host as a URL scheme.
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse proxy server %q: %w", proxy.Server, err)
	}
	if proxy.Username != "" {
		parsed.User = url.UserPassword(proxy.Username, proxy.Password)
	}
	return parsed.String(), nil
}
