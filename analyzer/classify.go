package analyzer

import (
	"math"
	"sort"
	"strings"

	"nlpservice/models"
)

// classificationRule scores one document category from keyword matches in
// the text and entity labels found by the model.
type classificationRule struct {
	category  string
	keywords  []string
	entities  []string
	baseScore float64
}

var classificationRules = []classificationRule{
	{
		category:  "financial",
		keywords:  []string{"invoice", "payment", "receipt", "transaction", "financial", "accounting", "budget", "cost", "revenue", "profit"},
		entities:  []string{"MONEY", "PERCENT", "ORG"},
		baseScore: 0.1,
	},
	{
		category:  "legal",
		keywords:  []string{"contract", "agreement", "legal", "law", "court", "attorney", "clause", "terms", "conditions", "compliance"},
		entities:  []string{"LAW", "ORG", "PERSON"},
		baseScore: 0.1,
	},
	{
		category:  "personal",
		keywords:  []string{"personal", "private", "confidential", "individual", "employee", "staff", "personnel"},
		entities:  []string{"PERSON", "GPE"},
		baseScore: 0.1,
	},
	{
		category:  "technical",
		keywords:  []string{"technical", "specification", "manual", "documentation", "system", "software", "hardware", "API", "database"},
		entities:  []string{"PRODUCT", "ORG"},
		baseScore: 0.1,
	},
	{
		category:  "communication",
		keywords:  []string{"email", "message", "communication", "correspondence", "memo", "letter", "notification", "announcement"},
		entities:  []string{"PERSON", "ORG", "DATE"},
		baseScore: 0.1,
	},
	{
		category:  "report",
		keywords:  []string{"report", "analysis", "summary", "findings", "results", "conclusion", "recommendation", "overview"},
		entities:  []string{"DATE", "PERCENT", "CARDINAL"},
		baseScore: 0.1,
	},
	{
		category:  "marketing",
		keywords:  []string{"marketing", "advertising", "promotion", "campaign", "brand", "customer", "sales", "product"},
		entities:  []string{"ORG", "PRODUCT", "MONEY"},
		baseScore: 0.1,
	},
	{
		category:  "administrative",
		keywords:  []string{"administrative", "policy", "procedure", "guideline", "process", "workflow", "form", "application"},
		entities:  []string{"ORG", "DATE", "PERSON"},
		baseScore: 0.1,
	},
}

// classifyText scores the document against every category rule and keeps
// the top three above the minimum threshold. Documents matching nothing
// fall back to the general category.
func classifyText(content string, spans []EntitySpan) []models.Classification {
	textLower := strings.ToLower(content)

	labels := make(map[string]bool, len(spans))
	for _, span := range spans {
		labels[span.Label] = true
	}

	classifications := make([]models.Classification, 0, len(classificationRules))
	for _, rule := range classificationRules {
		score := rule.score(textLower, labels)
		if score > 0.2 {
			classifications = append(classifications, models.Classification{
				Category:   rule.category,
				Confidence: math.Round(score*1000) / 1000,
			})
		}
	}

	sort.SliceStable(classifications, func(i, j int) bool {
		return classifications[i].Confidence > classifications[j].Confidence
	})

	if len(classifications) > 3 {
		classifications = classifications[:3]
	}
	if len(classifications) == 0 {
		classifications = append(classifications, models.Classification{Category: "general", Confidence: 0.5})
	}

	return classifications
}

// score combines keyword and entity-label evidence, capping each
// contribution so neither dominates, and penalizes very short documents.
func (r classificationRule) score(textLower string, labels map[string]bool) float64 {
	score := r.baseScore

	keywordMatches := 0
	for _, keyword := range r.keywords {
		if strings.Contains(textLower, keyword) {
			keywordMatches++
		}
	}
	score += math.Min(float64(keywordMatches)*0.15, 0.6)

	entityMatches := 0
	for _, label := range r.entities {
		if labels[label] {
			entityMatches++
		}
	}
	score += math.Min(float64(entityMatches)*0.1, 0.3)

	if len(strings.Fields(textLower)) < 10 {
		score *= 0.5
	}

	return math.Min(score, 1.0)
}
