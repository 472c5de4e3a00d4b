package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlpservice/analyzer"
	"nlpservice/broker"
	"nlpservice/config"
	"nlpservice/metrics"
	"nlpservice/models"
	"nlpservice/queue"
	"nlpservice/store"
	"nlpservice/worker"
)

// stubAnalyzer lets handler tests control analysis outcomes per call.
type stubAnalyzer struct {
	analysis models.Analysis
	err      error
	health   analyzer.Health
}

func (s *stubAnalyzer) Analyze(ctx context.Context, doc models.Document) (models.Analysis, error) {
	if s.err != nil {
		return models.Analysis{}, s.err
	}
	return s.analysis, nil
}

func (s *stubAnalyzer) HealthCheck(ctx context.Context) analyzer.Health {
	return s.health
}

type env struct {
	server   *Server
	analyzer *stubAnalyzer
	queue    *queue.TaskQueue
	store    *store.JobStore
	mr       *miniredis.Miniredis
}

func newEnv(t *testing.T) *env {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := broker.Connect(context.Background(), broker.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	cfg := config.Config{
		BatchSize:   10,
		WorkerCount: 1,
		ModelName:   "en_core_web_sm",
		CORSOrigins: []string{"*"},
	}

	stub := &stubAnalyzer{
		analysis: models.NewAnalysis(),
		health:   analyzer.Health{Status: "healthy", Model: cfg.ModelName},
	}

	taskQueue := queue.NewTaskQueue(client, "nlp:processing:queue")
	jobStore := store.New(client)
	results := queue.NewResultsPublisher(client, "nlp:results:queue")
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	proc := worker.New(worker.Deps{
		Queue:    taskQueue,
		Store:    jobStore,
		Results:  results,
		Analyzer: stub,
		Metrics:  m,
		Model:    cfg.ModelName,
		Log:      slog.Default(),
	}, worker.Options{})

	srv := New(Deps{
		Config:   cfg,
		Log:      slog.Default(),
		Broker:   client,
		Queue:    taskQueue,
		Results:  results,
		Store:    jobStore,
		Analyzer: stub,
		Worker:   proc,
		Metrics:  m,
		Registry: registry,
		Features: analyzer.Features{NER: true, Classification: true, KeyPhrases: true},
	})

	return &env{server: srv, analyzer: stub, queue: taskQueue, store: jobStore, mr: mr}
}

func (e *env) request(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRootEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.request(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "nlp-service", body["service"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.Equal(t, "running", body["status"])
}

func TestSubmitJob(t *testing.T) {
	e := newEnv(t)

	doc := models.Document{ID: "doc-1", Content: "Apple Inc. was founded by Steve Jobs in 1976."}
	rec := e.request(http.MethodPost, "/api/v1/jobs/submit", doc)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "doc-1", resp.DocumentID)
	assert.Equal(t, models.StatusPending, resp.Status)
	assert.Equal(t, int64(1), resp.QueuePosition)

	n, err := e.queue.Length(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	record, err := e.store.GetStatus(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, models.StatusPending, record.Status)
}

func TestSubmitJobValidation(t *testing.T) {
	e := newEnv(t)

	rec := e.request(http.MethodPost, "/api/v1/jobs/submit", models.Document{ID: "doc-1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "document content is required", decodeBody(t, rec)["message"])

	rec = e.request(http.MethodPost, "/api/v1/jobs/submit", models.Document{Content: "text"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "document id is required", decodeBody(t, rec)["message"])
}

func TestJobStatus(t *testing.T) {
	e := newEnv(t)

	doc := models.Document{ID: "doc-1", Content: "some text"}
	rec := e.request(http.MethodPost, "/api/v1/jobs/submit", doc)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = e.request(http.MethodGet, "/api/v1/jobs/"+resp.JobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, resp.JobID, body["job_id"])
	assert.Equal(t, "pending", body["status"])
}

func TestJobStatusNotFound(t *testing.T) {
	e := newEnv(t)

	rec := e.request(http.MethodGet, "/api/v1/jobs/unknown-id", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "job not found", decodeBody(t, rec)["message"])
}

func TestProcessSync(t *testing.T) {
	e := newEnv(t)
	e.analyzer.analysis.WordCount = 9

	doc := models.Document{ID: "doc-1", Content: "some text to analyze right now"}
	rec := e.request(http.MethodPost, "/api/v1/process", doc)
	require.Equal(t, http.StatusOK, rec.Code)

	var processed models.ProcessedDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &processed))
	assert.Equal(t, "doc-1", processed.Document.ID)
	assert.Equal(t, 9, processed.Analysis.WordCount)
	assert.Equal(t, "1.0.0", processed.ProcessingVersion)
	assert.Equal(t, "en_core_web_sm", processed.ModelUsed)
	assert.False(t, processed.ProcessedAt.IsZero())
}

func TestProcessSyncAnalyzerError(t *testing.T) {
	e := newEnv(t)
	e.analyzer.err = errors.New("model server down")

	doc := models.Document{ID: "doc-1", Content: "text"}
	rec := e.request(http.MethodPost, "/api/v1/process", doc)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["message"], "processing failed")
}

func TestProcessBatch(t *testing.T) {
	e := newEnv(t)

	docs := []models.Document{
		{ID: "doc-1", Content: "first document"},
		{ID: "doc-2", Content: "second document"},
	}
	rec := e.request(http.MethodPost, "/api/v1/process/batch", docs)
	require.Equal(t, http.StatusOK, rec.Code)

	var results []models.ProcessedDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "doc-1", results[0].Document.ID)
	assert.Equal(t, "doc-2", results[1].Document.ID)
}

func TestProcessBatchTooLarge(t *testing.T) {
	e := newEnv(t)

	docs := make([]models.Document, 11)
	for i := range docs {
		docs[i] = models.Document{ID: fmt.Sprintf("doc-%d", i), Content: "text"}
	}

	rec := e.request(http.MethodPost, "/api/v1/process/batch", docs)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "batch size exceeds maximum of 10", decodeBody(t, rec)["message"])
}

func TestProcessBatchPartialFailure(t *testing.T) {
	e := newEnv(t)
	e.analyzer.err = errors.New("model server down")

	docs := []models.Document{{ID: "doc-1", Content: "first document"}}
	rec := e.request(http.MethodPost, "/api/v1/process/batch", docs)
	require.Equal(t, http.StatusOK, rec.Code)

	var results []models.ProcessedDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)

	// Failed documents come back with an empty analysis.
	assert.Empty(t, results[0].Analysis.Entities)
	assert.NotNil(t, results[0].Analysis.Entities)
	assert.Zero(t, results[0].Analysis.WordCount)
}

func TestHealthHealthy(t *testing.T) {
	e := newEnv(t)

	rec := e.request(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])

	components := body["components"].(map[string]any)
	analyzerHealth := components["analyzer"].(map[string]any)
	redisHealth := components["redis"].(map[string]any)
	assert.Equal(t, "healthy", analyzerHealth["status"])
	assert.Equal(t, "healthy", redisHealth["status"])
}

func TestHealthDegraded(t *testing.T) {
	e := newEnv(t)
	e.analyzer.health = analyzer.Health{Status: "unhealthy", Error: "model server down"}

	rec := e.request(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decodeBody(t, rec)["status"])
}

func TestStats(t *testing.T) {
	e := newEnv(t)

	rec := e.request(http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "nlp-service", body["service"])

	cfg := body["configuration"].(map[string]any)
	assert.Equal(t, "en_core_web_sm", cfg["model"])
	assert.Equal(t, float64(10), cfg["batch_size"])

	workerState := body["worker"].(map[string]any)
	assert.Equal(t, false, workerState["running"])
	assert.Equal(t, float64(0), workerState["processed_count"])
}

func TestClearQueue(t *testing.T) {
	e := newEnv(t)

	for i := 0; i < 3; i++ {
		doc := models.Document{ID: fmt.Sprintf("doc-%d", i), Content: "text"}
		rec := e.request(http.MethodPost, "/api/v1/jobs/submit", doc)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	n, err := e.queue.Length(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	rec := e.request(http.MethodPost, "/api/v1/admin/clear-queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Processing queue cleared successfully", decodeBody(t, rec)["message"])

	n, err = e.queue.Length(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExtractDocumentRejectsBadPDF(t *testing.T) {
	e := newEnv(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "not-a-pdf.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text, not a pdf"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/extract", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	e.server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["message"], "invalid pdf")
}

func TestExtractDocumentMissingFile(t *testing.T) {
	e := newEnv(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("other", "value"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/extract", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	e.server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing file upload", decodeBody(t, rec)["message"])
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)

	doc := models.Document{ID: "doc-1", Content: "text"}
	rec := e.request(http.MethodPost, "/api/v1/jobs/submit", doc)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.request(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nlp_jobs_submitted_total 1")
	assert.Contains(t, rec.Body.String(), "nlp_queue_depth 1")
}

func TestWSManagerBroadcastDoesNotBlock(t *testing.T) {
	m := NewWSManager(slog.Default())

	// Without a running event loop the buffered feed must absorb or drop
	// updates instead of stalling the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			m.BroadcastJobUpdate(models.JobUpdate{JobID: "job", Status: models.StatusPending, Timestamp: time.Now()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked without a consumer")
	}
}

func TestRequestCORSHeaders(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	e.server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubmitInvalidJSON(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/submit", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
