package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// robotsRule is one parsed Allow/Disallow line.
type robotsRule struct {
	prefix string
	allow  bool
}

// RobotsRuleSet holds the path-prefix rules that apply to wildcard agents.
type RobotsRuleSet struct {
	rules []robotsRule
}

// ParseRobots extracts the Allow/Disallow rules under `User-agent: *` groups.
// Lines that are blank, comments, or directives for other agents are ignored.
func ParseRobots(document string) RobotsRuleSet {
	var (
		set      RobotsRuleSet
		matching bool
		inHeader bool
	)
	for _, line := range strings.Split(document, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "user-agent":
			// Consecutive user-agent lines open a group header; the first
			// non-agent directive closes it.
			if inHeader {
				matching = matching || value == "*"
			} else {
				matching = value == "*"
				inHeader = true
			}
		case "allow", "disallow":
			inHeader = false
			if !matching || value == "" {
				continue
			}
			set.rules = append(set.rules, robotsRule{prefix: value, allow: key == "allow"})
		default:
			inHeader = false
		}
	}
	return set
}

// Allowed reports whether p may be fetched. The longest matching prefix
// decides; an allow rule wins a tie with a disallow rule of equal length.
// No matching rule means allowed.
func (s RobotsRuleSet) Allowed(p string) bool {
	bestLen := -1
	bestAllow := true
	for _, r := range s.rules {
		if !strings.HasPrefix(p, r.prefix) {
			continue
		}
		switch {
		case len(r.prefix) > bestLen:
			bestLen = len(r.prefix)
			bestAllow = r.allow
		case len(r.prefix) == bestLen && r.allow:
			bestAllow = true
		}
	}
	return bestAllow
}

// IsAllowed parses document and answers whether path may be fetched.
// An empty document always allows.
func IsAllowed(document, path string) bool {
	return ParseRobots(document).Allowed(path)
}

// HTTPRobotsFetcher retrieves robots.txt documents over HTTP.
type HTTPRobotsFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPRobotsFetcher builds a fetcher with a bounded client timeout.
func NewHTTPRobotsFetcher(userAgent string) *HTTPRobotsFetcher {
	return &HTTPRobotsFetcher{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		userAgent: userAgent,
	}
}

// FetchRobots implements RobotsFetcher.
func (f *HTTPRobotsFetcher) FetchRobots(ctx context.Context, robotsURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return "", fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch robots: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read robots body: %w", err)
	}
	return string(body), nil
}

// PolicyChecker answers robots.txt questions per target host, caching the
// parsed rule set. A missing, empty, or unfetchable document defaults to
// allowed: an unreadable policy must never permanently disable scraping.
type PolicyChecker struct {
	fetcher RobotsFetcher
	cache   sync.Map
	logger  *zap.Logger
}

// NewPolicyChecker builds a PolicyChecker around the given fetch capability.
func NewPolicyChecker(fetcher RobotsFetcher, logger *zap.Logger) *PolicyChecker {
	return &PolicyChecker{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Allowed reports whether rawURL may be fetched under the target host's
// robots.txt policy.
func (c *PolicyChecker) Allowed(ctx context.Context, rawURL string) bool {
	if c == nil || c.fetcher == nil {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	set, err := c.load(ctx, parsed)
	if err != nil {
		c.logger.Warn("robots fetch failed; allowing access",
			zap.String("host", parsed.Host), zap.Error(err))
		return true
	}
	return set.Allowed(parsed.Path)
}

func (c *PolicyChecker) load(ctx context.Context, parsed *url.URL) (RobotsRuleSet, error) {
	hostKey := strings.ToLower(parsed.Host)
	if cached, ok := c.cache.Load(hostKey); ok {
		set, assertOK := cached.(RobotsRuleSet)
		if !assertOK {
			return RobotsRuleSet{}, fmt.Errorf("robots cache type mismatch: %T", cached)
		}
		return set, nil
	}

	robotsURL := *parsed
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""
	doc, err := c.fetcher.FetchRobots(ctx, robotsURL.String())
	if err != nil {
		return RobotsRuleSet{}, err
	}
	set := ParseRobots(doc)
	c.cache.Store(hostKey, set)
	return set, nil
}
