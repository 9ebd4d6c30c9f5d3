package pricing

import (
	"fmt"
	"net/url"
	"strconv"
)

// queryBuilder produces a platform-specific search URL. Adding a platform
// means registering a new builder, never editing an existing one.
type queryBuilder func(SearchParams) string

var queryBuilders = map[Platform]queryBuilder{
	PlatformBooking: bookingSearchURL,
	PlatformAirbnb:  airbnbSearchURL,
	PlatformExpedia: expediaSearchURL,
}

// BuildSearchURL returns the search-results URL for params on the given
// platform. Every SearchParams field is carried as a query parameter.
func BuildSearchURL(platform Platform, params SearchParams) (string, error) {
	builder, ok := queryBuilders[platform]
	if !ok {
		return "", fmt.Errorf("unsupported platform %q", platform)
	}
	return builder(params), nil
}

// SupportedPlatform reports whether a builder is registered for platform.
func SupportedPlatform(platform Platform) bool {
	_, ok := queryBuilders[platform]
	return ok
}

func bookingSearchURL(p SearchParams) string {
	q := url.Values{}
	q.Set("latitude", formatFloat(p.Latitude))
	q.Set("longitude", formatFloat(p.Longitude))
	q.Set("checkin", p.CheckIn)
	q.Set("checkout", p.CheckOut)
	q.Set("group_adults", strconv.Itoa(p.Guests))
	if p.RoomType != "" {
		q.Set("room_type", p.RoomType)
	}
	if p.RadiusKM > 0 {
		q.Set("radius", formatFloat(p.RadiusKM))
	}
	return "https://www.booking.com/searchresults.html?" + q.Encode()
}

func airbnbSearchURL(p SearchParams) string {
	q := url.Values{}
	q.Set("lat", formatFloat(p.Latitude))
	q.Set("lng", formatFloat(p.Longitude))
	q.Set("checkin", p.CheckIn)
	q.Set("checkout", p.CheckOut)
	q.Set("adults", strconv.Itoa(p.Guests))
	if p.RoomType != "" {
		q.Set("room_types[]", p.RoomType)
	}
	if p.RadiusKM > 0 {
		q.Set("search_radius", formatFloat(p.RadiusKM))
	}
	return "https://www.airbnb.com/s/homes?" + q.Encode()
}

func expediaSearchURL(p SearchParams) string {
	q := url.Values{}
	q.Set("latLong", formatFloat(p.Latitude)+","+formatFloat(p.Longitude))
	q.Set("startDate", p.CheckIn)
	q.Set("endDate", p.CheckOut)
	q.Set("adults", strconv.Itoa(p.Guests))
	if p.RoomType != "" {
		q.Set("lodging", p.RoomType)
	}
	if p.RadiusKM > 0 {
		q.Set("radius", formatFloat(p.RadiusKM))
	}
	return "https://www.expedia.com/Hotel-Search?" + q.Encode()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
