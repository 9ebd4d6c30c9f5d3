// Package extract parses rendered booking-platform pages into competitor
// listing records.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/rategrid/compintel/internal/pricing"
)

var (
	priceRe    = regexp.MustCompile(`(?i)([$€£]|USD|EUR|GBP|CHF)?\s*([\d][\d.,]*)`)
	ratingRe   = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)
	distanceRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*km`)
)

var currencyCodes = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

// Extractor turns rendered HTML into CompetitorListing records using the
// per-platform selector sets. A page whose structure matches nothing yields
// an empty slice, never an error: markup drift on a third-party site is an
// expected condition, not a defect.
type Extractor struct {
	logger *zap.Logger
}

// New builds an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract implements pricing.Extractor.
func (e *Extractor) Extract(platform pricing.Platform, html string) []pricing.CompetitorListing {
	selectors, ok := platformSelectors[platform]
	if !ok {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Debug("unparsable document; treating as degraded page", zap.Error(err))
		return nil
	}

	var listings []pricing.CompetitorListing
	doc.Find(selectors.Card).Each(func(_ int, card *goquery.Selection) {
		name := strings.TrimSpace(card.Find(selectors.Name).First().Text())
		if name == "" {
			return
		}
		price, currency, ok := parsePrice(card.Find(selectors.Price).First().Text())
		if !ok {
			// Without a usable price the record would poison the
			// percentile computation.
			return
		}
		listing := pricing.CompetitorListing{
			Name:     name,
			Price:    price,
			Currency: currency,
			URL:      firstHref(card, selectors.Link),
		}
		if rating, ok := parseRating(card.Find(selectors.Rating).First().Text()); ok {
			listing.Rating = &rating
		}
		if dist, ok := parseDistance(card.Find(selectors.Distance).First().Text()); ok {
			listing.DistanceKM = &dist
		}
		listings = append(listings, listing)
	})
	return listings
}

func firstHref(card *goquery.Selection, selector string) string {
	href, _ := card.Find(selector).First().Attr("href")
	return href
}

// parsePrice pulls an amount and currency out of free-form price text.
// Unparsable values are rejected rather than defaulted to zero.
func parsePrice(text string) (float64, string, bool) {
	m := priceRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, "", false
	}
	value, err := parseAmount(m[2])
	if err != nil || value <= 0 {
		return 0, "", false
	}
	// No marker means no currency; an empty code beats a fabricated one.
	currency := strings.ToUpper(m[1])
	if code, ok := currencyCodes[m[1]]; ok {
		currency = code
	}
	return value, currency, true
}

// parseAmount tolerates both "1,234.56" and "1.234,56" groupings.
func parseAmount(raw string) (float64, error) {
	lastComma := strings.LastIndex(raw, ",")
	lastDot := strings.LastIndex(raw, ".")
	switch {
	case lastComma > lastDot:
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.Replace(raw, ",", ".", 1)
	default:
		raw = strings.ReplaceAll(raw, ",", "")
	}
	return strconv.ParseFloat(raw, 64)
}

func parseRating(text string) (float64, bool) {
	m := ratingRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

func parseDistance(text string) (float64, bool) {
	m := distanceRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}
