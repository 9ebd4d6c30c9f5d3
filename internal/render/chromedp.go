// Package render provides render session implementations behind the
// pricing.Renderer capability.
package render

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rategrid/compintel/internal/pricing"
)

// ErrSessionClosed indicates Navigate was called on a closed session.
var ErrSessionClosed = errors.New("render session is not initialized")

// ChromedpConfig controls the headless Chrome sessions.
type ChromedpConfig struct {
	UserAgent string
	// DomainQPS caps navigations per host across all sessions opened by
	// one factory; zero disables the limit.
	DomainQPS float64
}

// ChromedpFactory opens chromedp-backed sessions. The per-domain rate
// limiters are shared across sessions so concurrent scrapes against the
// same host stay polite.
type ChromedpFactory struct {
	cfg            ChromedpConfig
	logger         *zap.Logger
	domainLimiters sync.Map
}

// NewChromedpFactory creates a factory using the provided configuration.
func NewChromedpFactory(cfg ChromedpConfig, logger *zap.Logger) *ChromedpFactory {
	return &ChromedpFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// Open starts a fresh headless browser, optionally routed through proxy.
// A failed warmup releases the partially-opened allocator before returning.
func (f *ChromedpFactory) Open(proxy *pricing.ProxyEndpoint) (pricing.Renderer, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if f.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.cfg.UserAgent))
	}
	if proxy != nil && proxy.Server != "" {
		opts = append(opts, chromedp.ProxyServer(proxy.Server))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &chromedpSession{
		factory:       f,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		proxy:         proxy,
	}, nil
}

// chromedpSession owns one browser instance for the duration of one scrape.
type chromedpSession struct {
	factory       *ChromedpFactory
	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	proxy         *pricing.ProxyEndpoint
	closed        bool
}

// Navigate loads url in a fresh tab and returns the rendered DOM. The
// timeout bounds the whole navigation; on expiry the underlying error
// unwraps to context.DeadlineExceeded, while a cancellation forwarded
// from ctx unwraps to context.Canceled.
func (s *chromedpSession) Navigate(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	browserCtx := s.browserCtx
	s.mu.Unlock()

	if err := s.factory.waitDomainBudget(ctx, rawURL); err != nil {
		return "", fmt.Errorf("render rate limit: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var html string
	tasks := chromedp.Tasks{network.Enable()}
	if ua := s.factory.cfg.UserAgent; ua != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(ua))
	}
	tasks = append(tasks,
		s.proxyAuthAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return "", navigateError(taskCtx.Err(), err)
	}
	return html, nil
}

// navigateError keeps the task context error's identity when the context
// ended, so a timeout stays retryable and a forwarded cancellation does not
// masquerade as one.
func navigateError(ctxErr, runErr error) error {
	if ctxErr != nil {
		return fmt.Errorf("chromedp navigate: %w", ctxErr)
	}
	return fmt.Errorf("chromedp navigate: %w", runErr)
}

// proxyAuthAction injects Proxy-Authorization when the endpoint carries
// credentials; otherwise it is a no-op.
func (s *chromedpSession) proxyAuthAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if s.proxy == nil || s.proxy.Username == "" {
			return nil
		}
		headers := network.Headers{
			"Proxy-Authorization": basicAuth(s.proxy.Username, s.proxy.Password),
		}
		if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
			return fmt.Errorf("set proxy auth header: %w", err)
		}
		return nil
	})
}

// Close tears down the browser and allocator. A second Close is a no-op.
func (s *chromedpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.browserCancel()
	s.allocCancel()
	s.browserCtx = nil
	s.browserCancel = nil
	s.allocCancel = nil
	s.closed = true
	return nil
}

// Initialized reports whether the session still holds live browser handles.
func (s *chromedpSession) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.browserCtx != nil
}

func (f *ChromedpFactory) waitDomainBudget(ctx context.Context, rawURL string) error {
	if f.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := f.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(f.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}
