package render

import (
	"context"
	"sync"
	"time"

	"github.com/rategrid/compintel/internal/pricing"
)

// NoopFactory hands out sessions that return canned HTML. Useful in tests
// and dry runs where no network or browser is available.
type NoopFactory struct {
	HTML string
	Err  error
}

// Open returns a canned session, or Err when configured.
func (f *NoopFactory) Open(_ *pricing.ProxyEndpoint) (pricing.Renderer, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &noopSession{html: f.HTML}, nil
}

type noopSession struct {
	mu     sync.Mutex
	html   string
	closed bool
}

func (s *noopSession) Navigate(_ context.Context, _ string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	return s.html, nil
}

func (s *noopSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *noopSession) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}
