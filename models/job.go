package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a job in the system
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	// StatusCancelled is modeled but never set by the worker loop; reserved.
	StatusCancelled JobStatus = "cancelled"
)

// ErrNoDocument reports a queued job whose metadata carries no document.
var ErrNoDocument = errors.New("no document data in job")

// ProcessingJob is a unit of asynchronous work wrapping one document plus
// lifecycle metadata. Status moves forward only:
// pending -> processing -> completed | failed.
type ProcessingJob struct {
	ID           string                     `json:"id"`
	DocumentID   string                     `json:"document_id"`
	Status       JobStatus                  `json:"status"`
	CreatedAt    time.Time                  `json:"created_at"`
	StartedAt    *time.Time                 `json:"started_at,omitempty"`
	CompletedAt  *time.Time                 `json:"completed_at,omitempty"`
	ErrorMessage string                     `json:"error_message,omitempty"`
	Progress     float64                    `json:"progress"`
	Metadata     map[string]json.RawMessage `json:"metadata,omitempty"`
}

// NewProcessingJob creates a pending job with the document embedded in its
// metadata under the "document" key.
func NewProcessingJob(doc Document) (*ProcessingJob, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("embed document: %w", err)
	}

	return &ProcessingJob{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
		Metadata:   map[string]json.RawMessage{"document": raw},
	}, nil
}

// Document extracts the embedded document from the job metadata.
func (j *ProcessingJob) Document() (Document, error) {
	raw, ok := j.Metadata["document"]
	if !ok || len(raw) == 0 {
		return Document{}, ErrNoDocument
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode embedded document: %w", err)
	}
	return doc, nil
}

// StartProcessing marks the job as claimed by a worker.
func (j *ProcessingJob) StartProcessing() {
	now := time.Now().UTC()
	j.Status = StatusProcessing
	j.StartedAt = &now
	j.Progress = 0
}

// CompleteProcessing marks the job as successfully finished.
func (j *ProcessingJob) CompleteProcessing() {
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.CompletedAt = &now
	j.Progress = 100
}

// FailProcessing marks the job as failed with the given message.
func (j *ProcessingJob) FailProcessing(message string) {
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.CompletedAt = &now
	j.ErrorMessage = message
}

// JobUpdate is a lightweight notification emitted on every status change,
// consumed by the WebSocket feed.
type JobUpdate struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
