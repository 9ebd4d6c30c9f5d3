package pricing

import (
	"context"
	"time"
)

// Renderer owns one browser/page automation handle. Navigate returns the
// rendered HTML for url, bounded by timeout. Close releases the underlying
// resources; implementations guarantee a second Close is a no-op, after
// which Initialized reports false.
type Renderer interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) (string, error)
	Close() error
	Initialized() bool
}

// RendererFactory opens a fresh render session, optionally routed through a
// proxy. Each orchestrator invocation owns exactly one session so concurrent
// scrapes never share browser state.
type RendererFactory interface {
	Open(proxy *ProxyEndpoint) (Renderer, error)
}

// RobotsFetcher retrieves the raw robots.txt document for a host.
type RobotsFetcher interface {
	FetchRobots(ctx context.Context, robotsURL string) (string, error)
}

// Extractor parses rendered page content into competitor listings.
type Extractor interface {
	Extract(platform Platform, html string) []CompetitorListing
}

// JobStore persists job metadata and scrape outcomes.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	RecordSummary(ctx context.Context, rec SummaryRecord) error
	GetSummary(ctx context.Context, jobID string) (SummaryRecord, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for scrape jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher computes digests for snapshot integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
