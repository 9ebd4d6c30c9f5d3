package pricing

import (
	"net/url"
	"strings"
	"testing"
)

var queryParams = SearchParams{
	Platform:  PlatformBooking,
	Latitude:  41.9028,
	Longitude: 12.4964,
	CheckIn:   "2026-09-12",
	CheckOut:  "2026-09-14",
	Guests:    2,
	RoomType:  "double",
	RadiusKM:  5,
}

func TestBuildSearchURLBooking(t *testing.T) {
	t.Parallel()

	raw, err := BuildSearchURL(PlatformBooking, queryParams)
	if err != nil {
		t.Fatalf("BuildSearchURL: %v", err)
	}
	if !strings.HasPrefix(raw, "https://www.booking.com/searchresults.html?") {
		t.Fatalf("unexpected URL %s", raw)
	}
	q := mustParseQuery(t, raw)
	assertParam(t, q, "latitude", "41.9028")
	assertParam(t, q, "longitude", "12.4964")
	assertParam(t, q, "checkin", "2026-09-12")
	assertParam(t, q, "checkout", "2026-09-14")
	assertParam(t, q, "group_adults", "2")
	assertParam(t, q, "room_type", "double")
	assertParam(t, q, "radius", "5")
}

func TestBuildSearchURLAirbnb(t *testing.T) {
	t.Parallel()

	raw, err := BuildSearchURL(PlatformAirbnb, queryParams)
	if err != nil {
		t.Fatalf("BuildSearchURL: %v", err)
	}
	if !strings.HasPrefix(raw, "https://www.airbnb.com/s/homes?") {
		t.Fatalf("unexpected URL %s", raw)
	}
	q := mustParseQuery(t, raw)
	assertParam(t, q, "lat", "41.9028")
	assertParam(t, q, "lng", "12.4964")
	assertParam(t, q, "adults", "2")
	assertParam(t, q, "room_types[]", "double")
	assertParam(t, q, "search_radius", "5")
}

func TestBuildSearchURLExpedia(t *testing.T) {
	t.Parallel()

	raw, err := BuildSearchURL(PlatformExpedia, queryParams)
	if err != nil {
		t.Fatalf("BuildSearchURL: %v", err)
	}
	if !strings.HasPrefix(raw, "https://www.expedia.com/Hotel-Search?") {
		t.Fatalf("unexpected URL %s", raw)
	}
	q := mustParseQuery(t, raw)
	assertParam(t, q, "latLong", "41.9028,12.4964")
	assertParam(t, q, "startDate", "2026-09-12")
	assertParam(t, q, "endDate", "2026-09-14")
	assertParam(t, q, "adults", "2")
}

func TestBuildSearchURLOptionalParamsOmitted(t *testing.T) {
	t.Parallel()

	params := queryParams
	params.RoomType = ""
	params.RadiusKM = 0
	raw, err := BuildSearchURL(PlatformBooking, params)
	if err != nil {
		t.Fatalf("BuildSearchURL: %v", err)
	}
	q := mustParseQuery(t, raw)
	if q.Has("room_type") || q.Has("radius") {
		t.Fatalf("optional params should be omitted: %s", raw)
	}
}

func TestBuildSearchURLUnsupportedPlatform(t *testing.T) {
	t.Parallel()

	if _, err := BuildSearchURL(Platform("tripadvisor"), queryParams); err == nil {
		t.Fatal("expected error for unsupported platform")
	}
	if SupportedPlatform(Platform("tripadvisor")) {
		t.Fatal("tripadvisor should not be supported")
	}
	if !SupportedPlatform(PlatformExpedia) {
		t.Fatal("expedia should be supported")
	}
}

func mustParseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return u.Query()
}

func assertParam(t *testing.T, q url.Values, key, want string) {
	t.Helper()
	if got := q.Get(key); got != want {
		t.Errorf("param %s = %q, want %q", key, got, want)
	}
}
