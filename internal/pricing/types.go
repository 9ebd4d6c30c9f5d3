// Package pricing defines core types shared across the price
// intelligence subsystems.
package pricing

import "time"

// Platform identifies a supported booking platform.
type Platform string

// Supported platforms.
const (
	PlatformBooking Platform = "booking"
	PlatformAirbnb  Platform = "airbnb"
	PlatformExpedia Platform = "expedia"
)

// SearchParams is the immutable input to one scrape invocation.
type SearchParams struct {
	Platform  Platform `json:"platform"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	CheckIn   string   `json:"check_in"`
	CheckOut  string   `json:"check_out"`
	Guests    int      `json:"guests"`
	RoomType  string   `json:"room_type,omitempty"`
	RadiusKM  float64  `json:"radius_km,omitempty"`
}

// ProxyEndpoint describes one egress proxy.
type ProxyEndpoint struct {
	Server   string `json:"server" mapstructure:"server"`
	Username string `json:"username,omitempty" mapstructure:"username"`
	Password string `json:"password,omitempty" mapstructure:"password"`
}

// CompetitorListing is a single extracted competitor offer.
// Rating and DistanceKM are nil when the page did not expose them or the
// values were unparsable.
type CompetitorListing struct {
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	Currency   string   `json:"currency"`
	URL        string   `json:"url"`
	Rating     *float64 `json:"rating,omitempty"`
	DistanceKM *float64 `json:"distance_km,omitempty"`
}

// PercentileSummary condenses listing prices into low/median/high bands.
// For any non-empty input P10 <= P50 <= P90; all zero when Count is 0.
type PercentileSummary struct {
	P10   float64 `json:"p10"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	Count int     `json:"count"`
}

// FailureKind classifies why a scrape invocation failed.
type FailureKind string

// Failure kinds surfaced in ScrapeResult.Err.
const (
	FailurePolicyViolation FailureKind = "policy_violation"
	FailureNetworkTimeout  FailureKind = "network_timeout"
	FailureSessionInit     FailureKind = "session_init"
	FailureProxyExhausted  FailureKind = "proxy_exhausted"
	FailureInternal        FailureKind = "internal"
)

// ScrapeError is the typed error descriptor carried by a failed result.
type ScrapeError struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Error implements the error interface.
func (e *ScrapeError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Retryable reports whether the external job queue may usefully resubmit.
func (e *ScrapeError) Retryable() bool {
	return e.Kind == FailureNetworkTimeout
}

// ScrapeResult is produced exactly once per orchestrator invocation.
// Either Success is true with zero or more listings and a summary, or
// Success is false with no listings and a populated Err.
type ScrapeResult struct {
	Success  bool                `json:"success"`
	Listings []CompetitorListing `json:"listings"`
	Summary  PercentileSummary   `json:"summary"`
	Err      *ScrapeError        `json:"error,omitempty"`
	Elapsed  time.Duration       `json:"elapsed"`

	// TargetURL and HTML feed snapshot archival; they are not part of the
	// serialized result.
	TargetURL string `json:"-"`
	HTML      string `json:"-"`
}

// JobStatus represents the lifecycle state of a scrape job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Job represents the metadata persisted for each submitted scrape request.
type Job struct {
	ID        string       `json:"id"`
	Status    JobStatus    `json:"status"`
	Submitted time.Time    `json:"submitted_at"`
	Started   *time.Time   `json:"started_at,omitempty"`
	Finished  *time.Time   `json:"finished_at,omitempty"`
	ErrorText string       `json:"error_text,omitempty"`
	Params    SearchParams `json:"params"`
}

// SummaryRecord is the persisted outcome of a completed scrape job.
type SummaryRecord struct {
	JobID       string            `json:"job_id"`
	Platform    Platform          `json:"platform"`
	TargetURL   string            `json:"target_url"`
	Summary     PercentileSummary `json:"summary"`
	Listings    int               `json:"listings"`
	SnapshotURI string            `json:"snapshot_uri,omitempty"`
	ScrapedAt   time.Time         `json:"scraped_at"`
	DurationMs  int64             `json:"duration_ms"`
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	Params    SearchParams
	Attempt   int
	Submitted int64
}
