package pricing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/rategrid/compintel/internal/metrics"
)

// ScraperConfig controls one Scraper's behavior across invocations.
type ScraperConfig struct {
	// NavTimeout bounds every page navigation; it is the sole
	// cancellation mechanism for a render.
	NavTimeout time.Duration
	// RequireProxy fails the invocation when the pool is empty instead of
	// proceeding with a direct connection.
	RequireProxy bool
	// RespectRobots toggles the robots.txt policy check.
	RespectRobots bool
}

// Scraper composes policy checking, proxy rotation, rendering, extraction,
// and aggregation into single scrape invocations. It is safe for concurrent
// use: every invocation owns an independent render session, and the proxy
// cursor is the only shared state.
type Scraper struct {
	policy    *PolicyChecker
	proxies   *ProxyPool
	sessions  RendererFactory
	extractor Extractor
	cfg       ScraperConfig
	logger    *zap.Logger
}

// NewScraper constructs a Scraper.
func NewScraper(
	policy *PolicyChecker,
	proxies *ProxyPool,
	sessions RendererFactory,
	extractor Extractor,
	cfg ScraperConfig,
	logger *zap.Logger,
) *Scraper {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	return &Scraper{
		policy:    policy,
		proxies:   proxies,
		sessions:  sessions,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
	}
}

// Scrape runs one invocation end to end: build the platform URL, check the
// robots policy, acquire a proxy, render, extract, aggregate. All failures
// are converted to a typed result; nothing escapes this boundary, and the
// Scraper never retries internally.
func (s *Scraper) Scrape(ctx context.Context, params SearchParams) (result ScrapeResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scrape panicked", zap.Any("panic", r))
			result = s.failure(params, FailureInternal, fmt.Sprintf("panic: %v", r), start)
		}
	}()

	targetURL, err := BuildSearchURL(params.Platform, params)
	if err != nil {
		return s.failure(params, FailureInternal, err.Error(), start)
	}

	if s.cfg.RespectRobots && !s.policy.Allowed(ctx, targetURL) {
		metrics.ObserveRobotsBlock(string(params.Platform))
		return s.failure(params, FailurePolicyViolation,
			fmt.Sprintf("robots.txt disallows %s", targetURL), start)
	}

	proxied, html, err := s.render(ctx, targetURL)
	if err != nil {
		var scrapeErr *ScrapeError
		if errors.As(err, &scrapeErr) {
			return s.failure(params, scrapeErr.Kind, scrapeErr.Message, start)
		}
		return s.failure(params, FailureInternal, err.Error(), start)
	}
	if proxied {
		metrics.ObserveProxyRotation()
	}

	listings := s.extractor.Extract(params.Platform, html)
	prices := make([]float64, 0, len(listings))
	for _, l := range listings {
		prices = append(prices, l.Price)
	}
	summary := Summarize(prices)

	elapsed := time.Since(start)
	metrics.ObserveScrape(string(params.Platform), "success", elapsed)
	metrics.ObserveListings(string(params.Platform), len(listings))
	s.logger.Info("scrape succeeded",
		zap.String("platform", string(params.Platform)),
		zap.String("url", targetURL),
		zap.Int("listings", len(listings)),
		zap.Duration("elapsed", elapsed),
	)

	return ScrapeResult{
		Success:   true,
		Listings:  listings,
		Summary:   summary,
		Elapsed:   elapsed,
		TargetURL: targetURL,
		HTML:      html,
	}
}

// render acquires a proxy and a session, navigates, and guarantees the
// session is closed on every exit path.
func (s *Scraper) render(ctx context.Context, targetURL string) (bool, string, error) {
	var proxy *ProxyEndpoint
	if ep, ok := s.proxies.Next(); ok {
		proxy = &ep
	} else if s.cfg.RequireProxy {
		return false, "", &ScrapeError{Kind: FailureProxyExhausted, Message: "proxy pool is empty"}
	}

	session, err := s.sessions.Open(proxy)
	if err != nil {
		return proxy != nil, "", &ScrapeError{
			Kind:    FailureSessionInit,
			Message: fmt.Sprintf("open render session: %v", err),
		}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.logger.Warn("render session close failed", zap.Error(cerr))
		}
	}()

	html, err := session.Navigate(ctx, targetURL, s.cfg.NavTimeout)
	if err != nil {
		if isTimeout(err) {
			return proxy != nil, "", &ScrapeError{
				Kind:    FailureNetworkTimeout,
				Message: fmt.Sprintf("navigate %s: %v", targetURL, err),
			}
		}
		return proxy != nil, "", fmt.Errorf("navigate %s: %w", targetURL, err)
	}
	return proxy != nil, html, nil
}

func (s *Scraper) failure(params SearchParams, kind FailureKind, msg string, start time.Time) ScrapeResult {
	elapsed := time.Since(start)
	metrics.ObserveScrape(string(params.Platform), string(kind), elapsed)
	s.logger.Warn("scrape failed",
		zap.String("platform", string(params.Platform)),
		zap.String("kind", string(kind)),
		zap.String("reason", msg),
		zap.Duration("elapsed", elapsed),
	)
	return ScrapeResult{
		Success: false,
		Err:     &ScrapeError{Kind: kind, Message: msg},
		Elapsed: elapsed,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
