package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EntitySpan is a raw entity as labeled by the model, prior to enrichment.
type EntitySpan struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Token is a single token with the model's sentiment score.
type Token struct {
	Text      string  `json:"text"`
	Sentiment float64 `json:"sentiment"`
}

// Annotation is the raw model output for one text.
type Annotation struct {
	Entities   []EntitySpan `json:"entities"`
	Tokens     []Token      `json:"tokens"`
	Sentences  []string     `json:"sentences"`
	NounChunks []string     `json:"noun_chunks"`
	Vector     []float64    `json:"vector,omitempty"`
}

// AnnotationSource produces raw annotations for text. The HTTP model
// client implements it; tests substitute fixtures.
type AnnotationSource interface {
	Annotate(ctx context.Context, text string) (Annotation, error)
}

// ModelClient fetches raw annotations from the external model server.
type ModelClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewModelClient creates a client for the model server at baseURL.
func NewModelClient(baseURL, model string) *ModelClient {
	return &ModelClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type annotateRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// Annotate posts text to the model server and decodes the annotation.
func (c *ModelClient) Annotate(ctx context.Context, text string) (Annotation, error) {
	payload, err := json.Marshal(annotateRequest{Text: text, Model: c.model})
	if err != nil {
		return Annotation{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/annotate", bytes.NewReader(payload))
	if err != nil {
		return Annotation{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Annotation{}, fmt.Errorf("annotate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Annotation{}, fmt.Errorf("model server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var ann Annotation
	if err := json.NewDecoder(resp.Body).Decode(&ann); err != nil {
		return Annotation{}, fmt.Errorf("decode annotation: %w", err)
	}
	return ann, nil
}
