package analyzer

import (
	"math"
	"strings"

	"nlpservice/models"
)

// entityTypeMapping translates model labels to the domain's entity types.
// Unknown labels pass through unchanged.
var entityTypeMapping = map[string]string{
	"PERSON":      "PERSON",
	"ORG":         "ORGANIZATION",
	"GPE":         "LOCATION",
	"LOC":         "LOCATION",
	"DATE":        "DATE",
	"TIME":        "TIME",
	"MONEY":       "MONEY",
	"PERCENT":     "PERCENT",
	"PRODUCT":     "PRODUCT",
	"EVENT":       "EVENT",
	"WORK_OF_ART": "WORK_OF_ART",
	"LAW":         "LAW",
	"LANGUAGE":    "LANGUAGE",
	"NORP":        "ORGANIZATION",
	"FAC":         "LOCATION",
	"ORDINAL":     "NUMBER",
	"CARDINAL":    "NUMBER",
	"QUANTITY":    "QUANTITY",
}

// typeConfidence holds the per-label base confidence for the more reliable
// label classes; everything else scores 0.8.
var typeConfidence = map[string]float64{
	"PERSON":  0.90,
	"ORG":     0.85,
	"GPE":     0.90,
	"DATE":    0.95,
	"MONEY":   0.95,
	"PERCENT": 0.95,
}

// extractEntities maps raw spans to domain entities, scores them, and
// drops duplicates while preserving order. Spans shorter than two
// characters are noise and skipped.
func extractEntities(spans []EntitySpan) []models.Entity {
	entities := make([]models.Entity, 0, len(spans))
	seen := make(map[string]bool, len(spans))

	for _, span := range spans {
		text := strings.TrimSpace(span.Text)
		if len(text) < 2 {
			continue
		}

		entityType, ok := entityTypeMapping[span.Label]
		if !ok {
			entityType = span.Label
		}

		key := strings.ToLower(text) + "\x00" + entityType
		if seen[key] {
			continue
		}
		seen[key] = true

		entities = append(entities, models.Entity{
			Text:       text,
			Type:       entityType,
			Start:      span.Start,
			End:        span.End,
			Confidence: entityConfidence(span),
		})
	}

	return entities
}

// entityConfidence scores an entity from its length and label class:
// longer spans and more reliable labels score higher, capped at 1.0.
func entityConfidence(span EntitySpan) float64 {
	base := 0.8
	lengthBonus := math.Min(float64(len(span.Text))*0.02, 0.15)

	typeConf, ok := typeConfidence[span.Label]
	if !ok {
		typeConf = 0.8
	}

	confidence := math.Min(base+lengthBonus+(typeConf-0.8), 1.0)
	return math.Round(confidence*1000) / 1000
}
