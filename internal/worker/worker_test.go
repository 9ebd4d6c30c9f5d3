package worker

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rategrid/compintel/internal/metrics"
	"github.com/rategrid/compintel/internal/pricing"
	"github.com/rategrid/compintel/internal/render"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

const workerPage = `<html><body>
<div data-testid="property-card">
	<div data-testid="title">Hotel Roma</div>
	<span data-testid="price-and-discounted-price">€150</span>
</div>
</body></html>`

func TestWorkerProcessJobSuccessFlow(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := &fakeQueue{items: []pricing.QueueItem{{
		JobID:  "job-success",
		Params: searchParams(),
	}}}
	jobStore := newFakeJobStore()
	blobStore := newFakeBlobStore()
	publisher := newFakePublisher()
	hasher := &fakeHasher{hash: "abc123"}
	clock := &fakeClock{now: time.Unix(100, 0).UTC()}
	archive := &fakeArchive{}

	w := New(
		queue,
		jobStore,
		blobStore,
		publisher,
		hasher,
		clock,
		newTestScraper(&fixedExtractor{listings: []pricing.CompetitorListing{
			{Name: "Hotel Roma", Price: 150, Currency: "EUR"},
		}}),
		archive,
		Config{
			ContentType: "text/html",
			BlobPrefix:  "snapshots",
			Topic:       "summaries",
		},
		zap.NewNop(),
	)

	go w.Run(ctx)

	require.Eventually(t, func() bool {
		return jobStore.lastStatus() == pricing.JobStatusSucceeded
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, "snapshots/job-success/abc123.html", blobStore.lastPath())

	rec := jobStore.summary()
	require.Equal(t, "job-success", rec.JobID)
	require.Equal(t, pricing.PlatformBooking, rec.Platform)
	require.Equal(t, 1, rec.Listings)
	require.Equal(t, 1, rec.Summary.Count)
	require.NotEmpty(t, rec.SnapshotURI)
	require.Equal(t, clock.now, rec.ScrapedAt)

	require.Len(t, publisher.all(), 1)
	require.Equal(t, rec, archive.last())
	cancel()
}

func TestWorkerProcessJobScrapeFailure(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	params := searchParams()
	params.Platform = pricing.Platform("kayak")
	queue := &fakeQueue{items: []pricing.QueueItem{{JobID: "job-fail", Params: params}}}
	jobStore := newFakeJobStore()

	w := New(
		queue,
		jobStore,
		newFakeBlobStore(),
		newFakePublisher(),
		&fakeHasher{hash: "x"},
		&fakeClock{now: time.Unix(100, 0)},
		newTestScraper(&fixedExtractor{}),
		nil,
		Config{},
		zap.NewNop(),
	)

	go w.Run(ctx)

	require.Eventually(t, func() bool {
		return jobStore.lastStatus() == pricing.JobStatusFailed
	}, time.Second, 10*time.Millisecond)
	require.Contains(t, jobStore.lastError(), "internal")
	cancel()
}

func TestWorkerPublishFailureMarksJobFailed(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := &fakeQueue{items: []pricing.QueueItem{{JobID: "job-pub", Params: searchParams()}}}
	jobStore := newFakeJobStore()
	publisher := newFakePublisher()
	publisher.err = errors.New("topic unavailable")

	w := New(
		queue,
		jobStore,
		newFakeBlobStore(),
		publisher,
		&fakeHasher{hash: "x"},
		&fakeClock{now: time.Unix(100, 0)},
		newTestScraper(&fixedExtractor{}),
		nil,
		Config{Topic: "summaries"},
		zap.NewNop(),
	)

	go w.Run(ctx)

	require.Eventually(t, func() bool {
		return jobStore.lastStatus() == pricing.JobStatusFailed
	}, time.Second, 10*time.Millisecond)
	cancel()
}

func TestWorkerArchiveFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := &fakeQueue{items: []pricing.QueueItem{{JobID: "job-archive", Params: searchParams()}}}
	jobStore := newFakeJobStore()
	archive := &fakeArchive{err: errors.New("database offline")}

	w := New(
		queue,
		jobStore,
		newFakeBlobStore(),
		newFakePublisher(),
		&fakeHasher{hash: "x"},
		&fakeClock{now: time.Unix(100, 0)},
		newTestScraper(&fixedExtractor{}),
		archive,
		Config{},
		zap.NewNop(),
	)

	go w.Run(ctx)

	require.Eventually(t, func() bool {
		return jobStore.lastStatus() == pricing.JobStatusSucceeded
	}, time.Second, 10*time.Millisecond)
	cancel()
}

func newTestScraper(extractor pricing.Extractor) *pricing.Scraper {
	return pricing.NewScraper(
		nil,
		pricing.NewProxyPool(nil),
		&render.NoopFactory{HTML: workerPage},
		extractor,
		pricing.ScraperConfig{},
		zap.NewNop(),
	)
}

func searchParams() pricing.SearchParams {
	return pricing.SearchParams{
		Platform:  pricing.PlatformBooking,
		Latitude:  41.9,
		Longitude: 12.5,
		CheckIn:   "2026-09-12",
		CheckOut:  "2026-09-14",
		Guests:    2,
	}
}

type fakeQueue struct {
	mu    sync.Mutex
	items []pricing.QueueItem
}

func (q *fakeQueue) Enqueue(_ context.Context, item pricing.QueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (pricing.QueueItem, error) {
	q.mu.Lock()
	if len(q.items) > 0 {
		item := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		return item, nil
	}
	q.mu.Unlock()
	<-ctx.Done()
	return pricing.QueueItem{}, ctx.Err()
}

type fakeJobStore struct {
	mu       sync.Mutex
	statuses []pricing.JobStatus
	errTexts []string
	rec      pricing.SummaryRecord
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{}
}

func (s *fakeJobStore) CreateJob(context.Context, pricing.Job) error { return nil }

func (s *fakeJobStore) UpdateJobStatus(_ context.Context, _ string, status pricing.JobStatus, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	s.errTexts = append(s.errTexts, errText)
	return nil
}

func (s *fakeJobStore) GetJob(context.Context, string) (pricing.Job, error) {
	return pricing.Job{}, errors.New("not implemented")
}

func (s *fakeJobStore) RecordSummary(_ context.Context, rec pricing.SummaryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = rec
	return nil
}

func (s *fakeJobStore) GetSummary(context.Context, string) (pricing.SummaryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec, nil
}

func (s *fakeJobStore) lastStatus() pricing.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

func (s *fakeJobStore) lastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errTexts) == 0 {
		return ""
	}
	return s.errTexts[len(s.errTexts)-1]
}

func (s *fakeJobStore) summary() pricing.SummaryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

type fakeBlobStore struct {
	mu   sync.Mutex
	path string
}

func newFakeBlobStore() *fakeBlobStore { return &fakeBlobStore{} }

func (s *fakeBlobStore) PutObject(_ context.Context, path, _ string, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	return "mem://" + path, nil
}

func (s *fakeBlobStore) lastPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	messages []any
}

func newFakePublisher() *fakePublisher { return &fakePublisher{} }

func (p *fakePublisher) Publish(_ context.Context, _ string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, payload)
	return "id", nil
}

func (p *fakePublisher) all() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.messages...)
}

type fakeHasher struct {
	hash string
}

func (h *fakeHasher) Hash([]byte) (string, error) { return h.hash, nil }

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeArchive struct {
	mu  sync.Mutex
	err error
	rec pricing.SummaryRecord
}

func (a *fakeArchive) StoreSummary(_ context.Context, rec pricing.SummaryRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.rec = rec
	return nil
}

func (a *fakeArchive) last() pricing.SummaryRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rec
}

type fixedExtractor struct {
	listings []pricing.CompetitorListing
}

func (e *fixedExtractor) Extract(pricing.Platform, string) []pricing.CompetitorListing {
	return e.listings
}
