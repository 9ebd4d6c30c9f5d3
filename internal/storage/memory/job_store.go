// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rategrid/compintel/internal/pricing"
)

// ErrNotFound is returned when a job or summary does not exist.
var ErrNotFound = errors.New("not found")

// JobStore keeps jobs and their summaries in process memory.
type JobStore struct {
	mu        sync.RWMutex
	jobs      map[string]pricing.Job
	summaries map[string]pricing.SummaryRecord
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:      make(map[string]pricing.Job),
		summaries: make(map[string]pricing.SummaryRecord),
	}
}

// CreateJob stores a new job in queued status.
func (s *JobStore) CreateJob(_ context.Context, job pricing.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates the status for a job and stamps transitions.
func (s *JobStore) UpdateJobStatus(_ context.Context, jobID string, status pricing.JobStatus, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = status
	job.ErrorText = errText
	now := time.Now().UTC()
	if status == pricing.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if isTerminal(status) {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (pricing.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pricing.Job{}, ErrNotFound
	}
	return job, nil
}

// RecordSummary stores the scrape outcome for a job.
func (s *JobStore) RecordSummary(_ context.Context, rec pricing.SummaryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[rec.JobID] = rec
	return nil
}

// GetSummary returns the recorded summary for a job.
func (s *JobStore) GetSummary(_ context.Context, jobID string) (pricing.SummaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.summaries[jobID]
	if !ok {
		return pricing.SummaryRecord{}, ErrNotFound
	}
	return rec, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status pricing.JobStatus) bool {
	switch status {
	case pricing.JobStatusSucceeded, pricing.JobStatusFailed, pricing.JobStatusCanceled:
		return true
	default:
		return false
	}
}
