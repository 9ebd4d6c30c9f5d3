package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func TestParseRobotsWildcardGroups(t *testing.T) {
	t.Parallel()

	doc := `# search engines welcome
User-agent: Googlebot
Disallow: /google-only

User-agent: *
Disallow: /searchresults
Allow: /searchresults/public

User-agent: BadBot
User-agent: *
Disallow: /private
`
	set := ParseRobots(doc)

	cases := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/google-only", true},
		{"/searchresults", false},
		{"/searchresults.html", false},
		{"/searchresults/public/page", true},
		{"/private", false},
		{"/private/x", false},
	}
	for _, tc := range cases {
		if got := set.Allowed(tc.path); got != tc.want {
			t.Errorf("Allowed(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestRobotsLongestPrefixWins(t *testing.T) {
	t.Parallel()

	doc := `User-agent: *
Disallow: /search
Allow: /search/hotels
`
	if IsAllowed(doc, "/search/flights") {
		t.Error("shorter disallow should govern /search/flights")
	}
	if !IsAllowed(doc, "/search/hotels/rome") {
		t.Error("longer allow should govern /search/hotels/rome")
	}
}

func TestRobotsAllowWinsEqualLengthTie(t *testing.T) {
	t.Parallel()

	doc := `User-agent: *
Disallow: /deals
Allow: /deals
`
	if !IsAllowed(doc, "/deals") {
		t.Error("allow should win a tie of equal prefix length")
	}
}

func TestRobotsEmptyDocumentAllows(t *testing.T) {
	t.Parallel()

	if !IsAllowed("", "/anything") {
		t.Error("empty document should allow")
	}
}

func TestRobotsOtherAgentsIgnored(t *testing.T) {
	t.Parallel()

	doc := `User-agent: Bingbot
Disallow: /
`
	if !IsAllowed(doc, "/searchresults") {
		t.Error("rules for other agents should not apply")
	}
}

func TestPolicyCheckerCachesPerHost(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fetches.Add(1)
		fmt.Fprintln(w, "User-agent: *\nDisallow: /blocked")
	}))
	defer srv.Close()

	checker := NewPolicyChecker(NewHTTPRobotsFetcher("test-agent"), zap.NewNop())
	ctx := context.Background()

	if !checker.Allowed(ctx, srv.URL+"/open") {
		t.Fatal("expected open path to pass")
	}
	if checker.Allowed(ctx, srv.URL+"/blocked") {
		t.Fatal("expected blocked path to be denied")
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("expected one robots fetch, got %d", got)
	}
}

func TestPolicyCheckerAllowsOnFetchFailure(t *testing.T) {
	t.Parallel()

	checker := NewPolicyChecker(failingFetcher{}, zap.NewNop())
	if !checker.Allowed(context.Background(), "https://example.com/searchresults") {
		t.Fatal("unfetchable robots.txt should default to allowed")
	}
}

func TestPolicyCheckerAllowsOnStatus404ViaHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	checker := NewPolicyChecker(NewHTTPRobotsFetcher("test-agent"), zap.NewNop())
	if !checker.Allowed(context.Background(), srv.URL+"/anything") {
		t.Fatal("404 robots.txt should default to allowed")
	}
}

type failingFetcher struct{}

func (failingFetcher) FetchRobots(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}
