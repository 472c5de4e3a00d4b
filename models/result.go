package models

import "time"

// JobResult is the outcome payload for one job, published to the results
// channel and archived downstream.
type JobResult struct {
	JobID             string             `json:"job_id"`
	DocumentID        string             `json:"document_id"`
	ProcessedDocument *ProcessedDocument `json:"processed_document,omitempty"`
	Status            JobStatus          `json:"status"`
	Error             string             `json:"error,omitempty"`
	ProcessedAt       time.Time          `json:"processed_at"`
}

// ResultEnvelope wraps a JobResult for the results channel. Delivery is
// fire-and-forget: nothing tracks whether a consumer ever drains it.
type ResultEnvelope struct {
	JobID     string    `json:"job_id"`
	Result    JobResult `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}
