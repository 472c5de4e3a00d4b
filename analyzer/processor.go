package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"nlpservice/models"
)

// TextProcessor is the production Analyzer. Raw annotations come from the
// model server; the deterministic enrichment stages (entity mapping,
// classification, key phrases, language, sentiment, counts) run locally.
type TextProcessor struct {
	source   AnnotationSource
	detector *LanguageDetector
	features Features
	model    string
	log      *slog.Logger
}

// NewTextProcessor wires the annotation source and enrichment stages into
// an Analyzer. The detector may be nil when language detection is off.
func NewTextProcessor(source AnnotationSource, detector *LanguageDetector, features Features, model string, log *slog.Logger) *TextProcessor {
	return &TextProcessor{
		source:   source,
		detector: detector,
		features: features,
		model:    model,
		log:      log,
	}
}

// Analyze runs the full analysis pipeline on one document.
func (p *TextProcessor) Analyze(ctx context.Context, doc models.Document) (models.Analysis, error) {
	start := time.Now()

	ann, err := p.source.Annotate(ctx, doc.Content)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("annotate document %s: %w", doc.ID, err)
	}

	analysis := models.NewAnalysis()
	analysis.WordCount = countWords(ann.Tokens)
	analysis.SentenceCount = len(ann.Sentences)

	if p.features.NER {
		analysis.Entities = extractEntities(ann.Entities)
	}
	if p.features.Classification {
		analysis.Classifications = classifyText(doc.Content, ann.Entities)
	}
	if p.features.KeyPhrases {
		analysis.KeyPhrases = extractKeyPhrases(ann)
	}
	if p.features.LanguageDetection && p.detector != nil {
		analysis.Language, analysis.LanguageConfidence = p.detector.Detect(doc.Content)
	}
	if p.features.Embeddings && len(ann.Vector) > 0 {
		analysis.Embedding = ann.Vector
	}
	analysis.Sentiment = analyzeSentiment(ann.Tokens)

	analysis.ProcessingTimeMs = elapsedMs(start)

	p.log.Debug("document analyzed",
		"document_id", doc.ID,
		"entities", len(analysis.Entities),
		"duration_ms", analysis.ProcessingTimeMs)

	return analysis, nil
}

// HealthCheck runs a probe document through the full pipeline.
func (p *TextProcessor) HealthCheck(ctx context.Context) Health {
	probe := models.Document{
		ID:      "health_check",
		Content: "This is a test document for health checking.",
	}

	start := time.Now()
	if _, err := p.Analyze(ctx, probe); err != nil {
		return Health{Status: "unhealthy", Error: err.Error()}
	}

	features := p.features
	return Health{
		Status:           "healthy",
		Model:            p.model,
		TestProcessingMs: elapsedMs(start),
		Features:         &features,
	}
}

// countWords counts the model's non-whitespace tokens.
func countWords(tokens []Token) int {
	count := 0
	for _, tok := range tokens {
		if strings.TrimSpace(tok.Text) != "" {
			count++
		}
	}
	return count
}

// analyzeSentiment averages the model's token sentiment scores into a
// positive/negative/neutral distribution. Scores near zero read as
// neutral.
func analyzeSentiment(tokens []Token) *models.Sentiment {
	if len(tokens) == 0 {
		return &models.Sentiment{Neutral: 1.0}
	}

	var sum float64
	for _, tok := range tokens {
		sum += tok.Sentiment
	}
	avg := sum / float64(len(tokens))

	switch {
	case avg > 0.1:
		return &models.Sentiment{Positive: math.Min(avg, 1.0)}
	case avg < -0.1:
		return &models.Sentiment{Negative: math.Min(math.Abs(avg), 1.0)}
	default:
		return &models.Sentiment{Neutral: 1.0}
	}
}

func elapsedMs(start time.Time) float64 {
	ms := float64(time.Since(start).Microseconds()) / 1000.0
	return math.Round(ms*100) / 100
}
