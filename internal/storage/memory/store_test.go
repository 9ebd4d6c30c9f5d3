package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rategrid/compintel/internal/pricing"
)

func TestJobStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewJobStore()

	job := pricing.Job{
		ID:        "job-1",
		Status:    pricing.JobStatusQueued,
		Submitted: time.Unix(100, 0).UTC(),
		Params:    pricing.SearchParams{Platform: pricing.PlatformBooking},
	}
	require.NoError(t, store.CreateJob(ctx, job))
	require.Error(t, store.CreateJob(ctx, job), "duplicate job must be rejected")

	require.NoError(t, store.UpdateJobStatus(ctx, "job-1", pricing.JobStatusRunning, ""))
	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, pricing.JobStatusRunning, got.Status)
	require.NotNil(t, got.Started)
	require.Nil(t, got.Finished)

	require.NoError(t, store.UpdateJobStatus(ctx, "job-1", pricing.JobStatusSucceeded, ""))
	got, err = store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, pricing.JobStatusSucceeded, got.Status)
	require.NotNil(t, got.Finished)
}

func TestJobStoreFailureRecordsError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewJobStore()
	require.NoError(t, store.CreateJob(ctx, pricing.Job{ID: "job-2"}))

	require.NoError(t, store.UpdateJobStatus(ctx, "job-2", pricing.JobStatusFailed, "network_timeout: navigate"))
	got, err := store.GetJob(ctx, "job-2")
	require.NoError(t, err)
	require.Equal(t, "network_timeout: navigate", got.ErrorText)
	require.NotNil(t, got.Finished)
}

func TestJobStoreMissingJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewJobStore()

	_, err := store.GetJob(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.UpdateJobStatus(ctx, "nope", pricing.JobStatusRunning, ""), ErrNotFound)
	_, err = store.GetSummary(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJobStoreSummaryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewJobStore()

	rec := pricing.SummaryRecord{
		JobID:    "job-3",
		Platform: pricing.PlatformAirbnb,
		Summary:  pricing.PercentileSummary{P10: 100, P50: 150, P90: 300, Count: 12},
		Listings: 12,
	}
	require.NoError(t, store.RecordSummary(ctx, rec))

	got, err := store.GetSummary(ctx, "job-3")
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestBlobStorePutAndGet(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "snapshots/job/abc.html", "text/html", []byte("<html></html>"))
	require.NoError(t, err)
	require.Equal(t, "mem://snapshots/job/abc.html", uri)

	data, ok := store.GetObject("snapshots/job/abc.html")
	require.True(t, ok)
	require.Equal(t, []byte("<html></html>"), data)
}
