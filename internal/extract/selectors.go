package extract

import "github.com/rategrid/compintel/internal/pricing"

// selectorSet holds the CSS selectors used to pull listing fields out of
// one platform's search-results markup. Centralizing them keeps markup
// drift fixes in one place.
type selectorSet struct {
	Card     string
	Name     string
	Price    string
	Link     string
	Rating   string
	Distance string
}

var platformSelectors = map[pricing.Platform]selectorSet{
	pricing.PlatformBooking: {
		Card:     `[data-testid="property-card"]`,
		Name:     `[data-testid="title"]`,
		Price:    `[data-testid="price-and-discounted-price"]`,
		Link:     `a[data-testid="title-link"]`,
		Rating:   `[data-testid="review-score"]`,
		Distance: `[data-testid="distance"]`,
	},
	pricing.PlatformAirbnb: {
		Card:     `[data-testid="card-container"], [itemprop="itemListElement"]`,
		Name:     `[data-testid="listing-card-title"]`,
		Price:    `[data-testid="price-availability-row"] span, span._tyxjp1`,
		Link:     `a[href*="/rooms/"]`,
		Rating:   `[aria-label*="rating"], .r1dxllyb`,
		Distance: `[data-testid="listing-card-subtitle"]`,
	},
	pricing.PlatformExpedia: {
		Card:     `[data-stid="lodging-card-responsive"]`,
		Name:     `h3`,
		Price:    `[data-test-id="price-summary"] span, .uitk-price-a11y`,
		Link:     `a[data-stid="open-hotel-information"], a[href*="/Hotel"]`,
		Rating:   `[data-stid="review-score"], .uitk-badge-base-text`,
		Distance: `[data-stid="content-distance"]`,
	},
}
