package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument() Document {
	return Document{
		ID:        "doc-1",
		Content:   "Apple Inc. was founded by Steve Jobs in 1976.",
		Metadata:  map[string]any{"source": "test"},
		CreatedAt: time.Now().UTC(),
	}
}

func TestNewProcessingJob(t *testing.T) {
	doc := testDocument()

	job, err := NewProcessingJob(doc)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, doc.ID, job.DocumentID)
	assert.Equal(t, StatusPending, job.Status)
	assert.Zero(t, job.Progress)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)

	got, err := job.Document()
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.Content, got.Content)
}

func TestProcessingJobDocumentMissing(t *testing.T) {
	job := &ProcessingJob{ID: "job-1", Metadata: map[string]json.RawMessage{}}

	_, err := job.Document()
	require.ErrorIs(t, err, ErrNoDocument)

	job.Metadata = nil
	_, err = job.Document()
	require.ErrorIs(t, err, ErrNoDocument)
}

func TestProcessingJobDocumentMalformed(t *testing.T) {
	job := &ProcessingJob{
		ID:       "job-1",
		Metadata: map[string]json.RawMessage{"document": json.RawMessage(`{"id":`)},
	}

	_, err := job.Document()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoDocument)
}

func TestProcessingJobLifecycle(t *testing.T) {
	job, err := NewProcessingJob(testDocument())
	require.NoError(t, err)

	job.StartProcessing()
	assert.Equal(t, StatusProcessing, job.Status)
	require.NotNil(t, job.StartedAt)
	assert.Zero(t, job.Progress)

	job.CompleteProcessing()
	assert.Equal(t, StatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, float64(100), job.Progress)
	assert.Empty(t, job.ErrorMessage)
}

func TestProcessingJobFailure(t *testing.T) {
	job, err := NewProcessingJob(testDocument())
	require.NoError(t, err)

	job.StartProcessing()
	job.FailProcessing("failed to process document: boom")

	assert.Equal(t, StatusFailed, job.Status)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, "failed to process document: boom", job.ErrorMessage)
	assert.Zero(t, job.Progress)
}

func TestProcessingJobRoundTrip(t *testing.T) {
	job, err := NewProcessingJob(testDocument())
	require.NoError(t, err)

	raw, err := json.Marshal(job)
	require.NoError(t, err)

	var decoded ProcessingJob
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, job.ID, decoded.ID)
	assert.Equal(t, job.Status, decoded.Status)

	doc, err := decoded.Document()
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
}

func TestDocumentValidate(t *testing.T) {
	require.NoError(t, testDocument().Validate())

	err := Document{Content: "text"}.Validate()
	require.EqualError(t, err, "document id is required")

	err = Document{ID: "doc-1", Content: "   "}.Validate()
	require.EqualError(t, err, "document content is required")
}

func TestNewAnalysisSerializesEmptyCollections(t *testing.T) {
	raw, err := json.Marshal(NewAnalysis())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, []any{}, decoded["entities"])
	assert.Equal(t, []any{}, decoded["classifications"])
	assert.Equal(t, []any{}, decoded["key_phrases"])
	assert.NotContains(t, decoded, "sentiment")
	assert.NotContains(t, decoded, "language")
}
