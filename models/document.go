package models

import (
	"errors"
	"strings"
	"time"
)

// Document is a unit of text submitted for analysis. It is immutable once
// created and travels by value inside a job's payload.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Validate checks the required fields before a document enters the pipeline.
func (d Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("document id is required")
	}
	if strings.TrimSpace(d.Content) == "" {
		return errors.New("document content is required")
	}
	return nil
}
