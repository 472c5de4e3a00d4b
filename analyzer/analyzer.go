package analyzer

import (
	"context"

	"nlpservice/models"
)

// Analyzer computes a structured analysis for a document. Implementations
// may call out to external model servers; callers treat failures as
// job-level errors, never fatal ones.
type Analyzer interface {
	Analyze(ctx context.Context, doc models.Document) (models.Analysis, error)
	HealthCheck(ctx context.Context) Health
}

// Features toggles the individual enrichment stages.
type Features struct {
	NER               bool `json:"ner"`
	Classification    bool `json:"classification"`
	KeyPhrases        bool `json:"key_phrases"`
	Embeddings        bool `json:"embeddings"`
	LanguageDetection bool `json:"language_detection"`
}

// Health reports whether an analyzer can serve requests.
type Health struct {
	Status           string    `json:"status"`
	Model            string    `json:"model,omitempty"`
	TestProcessingMs float64   `json:"test_processing_time_ms,omitempty"`
	Features         *Features `json:"features,omitempty"`
	Error            string    `json:"error,omitempty"`
}
