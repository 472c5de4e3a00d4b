package models

import "time"

// Entity is a named entity found in a document.
type Entity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Classification assigns a document category with a confidence score.
type Classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// KeyPhrase is a ranked phrase extracted from a document.
type KeyPhrase struct {
	Phrase string  `json:"phrase"`
	Score  float64 `json:"score"`
}

// Sentiment is the aggregate sentiment distribution of a document.
type Sentiment struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// Analysis is the full result of analyzing one document.
type Analysis struct {
	Entities           []Entity         `json:"entities"`
	Classifications    []Classification `json:"classifications"`
	KeyPhrases         []KeyPhrase      `json:"key_phrases"`
	Language           string           `json:"language,omitempty"`
	LanguageConfidence float64          `json:"language_confidence,omitempty"`
	Embedding          []float64        `json:"embedding,omitempty"`
	Sentiment          *Sentiment       `json:"sentiment,omitempty"`
	WordCount          int              `json:"word_count"`
	SentenceCount      int              `json:"sentence_count"`
	ProcessingTimeMs   float64          `json:"processing_time_ms"`
}

// NewAnalysis returns an Analysis with empty (not nil) collections so they
// serialize as [] rather than null.
func NewAnalysis() Analysis {
	return Analysis{
		Entities:        []Entity{},
		Classifications: []Classification{},
		KeyPhrases:      []KeyPhrase{},
	}
}

// ProcessedDocument pairs a document with its analysis and provenance.
type ProcessedDocument struct {
	Document          Document  `json:"document"`
	Analysis          Analysis  `json:"analysis"`
	ProcessedAt       time.Time `json:"processed_at"`
	ProcessingVersion string    `json:"processing_version"`
	ModelUsed         string    `json:"model_used"`
}
