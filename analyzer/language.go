package analyzer

import (
	"math"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// LanguageDetector identifies the language of document content with the
// lingua statistical detector. Language models load lazily on first use.
type LanguageDetector struct {
	detector lingua.LanguageDetector
}

// NewLanguageDetector builds a detector over all supported languages.
func NewLanguageDetector() *LanguageDetector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &LanguageDetector{detector: detector}
}

// Detect returns the ISO 639-1 code and confidence for the given text, or
// empty values when no language can be determined.
func (d *LanguageDetector) Detect(text string) (string, float64) {
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", 0
	}

	confidence := d.detector.ComputeLanguageConfidence(text, lang)
	code := strings.ToLower(lang.IsoCode639_1().String())
	return code, math.Round(confidence*100) / 100
}
