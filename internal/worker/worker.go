// Package worker implements the scrape job execution loop.
package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rategrid/compintel/internal/metrics"
	"github.com/rategrid/compintel/internal/pricing"
)

// Config controls Worker behavior.
type Config struct {
	ContentType string
	BlobPrefix  string
	Topic       string
}

// SummaryArchiver persists summaries to durable storage in addition to the
// job store. Optional.
type SummaryArchiver interface {
	StoreSummary(ctx context.Context, rec pricing.SummaryRecord) error
}

// Worker consumes queue items and executes scrape jobs.
type Worker struct {
	queue     pricing.Queue
	jobStore  pricing.JobStore
	blobStore pricing.BlobStore
	publisher pricing.Publisher
	hasher    pricing.Hasher
	clock     pricing.Clock
	scraper   *pricing.Scraper
	archive   SummaryArchiver
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. archive may be nil.
func New(
	queue pricing.Queue,
	jobStore pricing.JobStore,
	blobStore pricing.BlobStore,
	publisher pricing.Publisher,
	hasher pricing.Hasher,
	clock pricing.Clock,
	scraper *pricing.Scraper,
	archive SummaryArchiver,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	return &Worker{
		queue:     queue,
		jobStore:  jobStore,
		blobStore: blobStore,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		scraper:   scraper,
		archive:   archive,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item pricing.QueueItem) {
	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, pricing.JobStatusRunning, ""); err != nil {
		w.logger.Error("update job status failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}

	result := w.scraper.Scrape(ctx, item.Params)

	status := pricing.JobStatusSucceeded
	errText := ""
	if !result.Success {
		status = pricing.JobStatusFailed
		if result.Err != nil {
			errText = result.Err.Error()
		}
		if ctx.Err() != nil {
			status = pricing.JobStatusCanceled
		}
	} else if err := w.persistResult(ctx, item, result); err != nil {
		status = pricing.JobStatusFailed
		errText = err.Error()
		w.logger.Error("persist result failed", zap.String("job_id", item.JobID), zap.Error(err))
	}

	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, status, errText); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", item.JobID), zap.Error(err))
	}
	metrics.ObserveJob(string(status))
}

func (w *Worker) persistResult(ctx context.Context, item pricing.QueueItem, result pricing.ScrapeResult) error {
	snapshotURI := ""
	if len(result.HTML) > 0 && w.blobStore != nil && w.hasher != nil {
		uri, err := w.archiveSnapshot(ctx, item.JobID, result.HTML)
		if err != nil {
			// The summary is still worth keeping when archival fails.
			w.logger.Warn("snapshot archival failed", zap.String("job_id", item.JobID), zap.Error(err))
		} else {
			snapshotURI = uri
		}
	}

	rec := pricing.SummaryRecord{
		JobID:       item.JobID,
		Platform:    item.Params.Platform,
		TargetURL:   result.TargetURL,
		Summary:     result.Summary,
		Listings:    len(result.Listings),
		SnapshotURI: snapshotURI,
		ScrapedAt:   w.clock.Now(),
		DurationMs:  result.Elapsed.Milliseconds(),
	}
	if err := w.jobStore.RecordSummary(ctx, rec); err != nil {
		return fmt.Errorf("record summary: %w", err)
	}
	if w.archive != nil {
		if err := w.archive.StoreSummary(ctx, rec); err != nil {
			// Durable archival is best effort; the job store copy stands.
			w.logger.Warn("summary archival failed", zap.String("job_id", item.JobID), zap.Error(err))
		}
	}

	if err := w.publishResult(ctx, item.JobID, rec); err != nil {
		return err
	}
	return nil
}

func (w *Worker) archiveSnapshot(ctx context.Context, jobID, html string) (string, error) {
	hash, err := w.hasher.Hash([]byte(html))
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	uri, err := w.blobStore.PutObject(ctx, w.buildBlobPath(jobID, hash), w.cfg.ContentType, []byte(html))
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return uri, nil
}

func (w *Worker) buildBlobPath(jobID, hash string) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", jobID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, jobID, hash)
}

func (w *Worker) publishResult(ctx context.Context, jobID string, rec pricing.SummaryRecord) error {
	if w.cfg.Topic == "" || w.publisher == nil {
		return nil
	}
	payload := map[string]any{
		"job_id":       jobID,
		"platform":     string(rec.Platform),
		"p10":          rec.Summary.P10,
		"p50":          rec.Summary.P50,
		"p90":          rec.Summary.P90,
		"count":        rec.Summary.Count,
		"snapshot_uri": rec.SnapshotURI,
		"timestamp":    rec.ScrapedAt.Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, payload); err != nil {
		return fmt.Errorf("publish payload: %w", err)
	}
	w.logger.Info("summary published",
		zap.String("job_id", jobID),
		zap.String("platform", string(rec.Platform)),
		zap.Int("listings", rec.Listings),
		zap.String("snapshot_uri", rec.SnapshotURI),
	)
	return nil
}
