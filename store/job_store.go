package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nlpservice/broker"
	"nlpservice/models"
)

const (
	jobKeyPrefix = "nlp:job:"
	statusTTL    = time.Hour
)

// StatusRecord is the persisted view of a job's lifecycle, stored under a
// TTL'd key and returned verbatim by the status API.
type StatusRecord struct {
	Status    models.JobStatus `json:"status"`
	Progress  float64          `json:"progress"`
	UpdatedAt time.Time        `json:"updated_at"`
	Error     string           `json:"error,omitempty"`
}

// JobStore persists job status records in the broker. It is the single
// source of truth for job state; a record expires one hour after its last
// update and is never deleted otherwise.
type JobStore struct {
	broker *broker.Client
}

// New creates a JobStore on top of the broker client.
func New(b *broker.Client) *JobStore {
	return &JobStore{broker: b}
}

// UpdateStatus writes the status record for a job, refreshing its TTL.
func (s *JobStore) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus, progress float64, errMsg string) error {
	rec := StatusRecord{
		Status:    status,
		Progress:  progress,
		UpdatedAt: time.Now().UTC(),
		Error:     errMsg,
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode status record: %w", err)
	}

	if err := s.broker.SetEx(ctx, jobKey(jobID), raw, statusTTL); err != nil {
		return fmt.Errorf("persist status for job %s: %w", jobID, err)
	}
	return nil
}

// GetStatus returns the stored record for a job, or nil when the id is
// unknown or the record has expired.
func (s *JobStore) GetStatus(ctx context.Context, jobID string) (*StatusRecord, error) {
	raw, err := s.broker.Get(ctx, jobKey(jobID))
	if err != nil {
		return nil, fmt.Errorf("load status for job %s: %w", jobID, err)
	}
	if raw == nil {
		return nil, nil
	}

	var rec StatusRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode status for job %s: %w", jobID, err)
	}
	return &rec, nil
}

func jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}
