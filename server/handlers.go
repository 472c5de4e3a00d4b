package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"nlpservice/config"
	"nlpservice/extract"
	"nlpservice/models"
	"nlpservice/store"
)

const maxUploadBytes = 20 << 20

// SubmitResponse acknowledges a job accepted for asynchronous processing.
type SubmitResponse struct {
	JobID         string           `json:"job_id"`
	DocumentID    string           `json:"document_id"`
	Status        models.JobStatus `json:"status"`
	SubmittedAt   time.Time        `json:"submitted_at"`
	QueuePosition int64            `json:"queue_position"`
}

// StatusResponse merges the job id into its stored status record.
type StatusResponse struct {
	JobID string `json:"job_id"`
	store.StatusRecord
}

// handleRoot reports service identity.
func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service":   config.ServiceName,
		"version":   config.ServiceVersion,
		"status":    "running",
		"timestamp": time.Now().UTC(),
	})
}

// handleHealth aggregates analyzer and broker health. A degraded
// component turns the overall status unhealthy and the response into a
// 503, but the per-component detail is always reported.
func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()

	analyzerHealth := s.analyzer.HealthCheck(ctx)
	brokerHealth := s.broker.CheckHealth(ctx)

	status := "unhealthy"
	code := http.StatusServiceUnavailable
	if analyzerHealth.Status == "healthy" && brokerHealth.Status == "healthy" {
		status = "healthy"
		code = http.StatusOK
	}

	return c.JSON(code, map[string]any{
		"status":    status,
		"service":   config.ServiceName,
		"version":   config.ServiceVersion,
		"timestamp": time.Now().UTC(),
		"components": map[string]any{
			"analyzer": analyzerHealth,
			"redis":    brokerHealth,
		},
		"queues": s.queueLengths(ctx),
	})
}

// handleProcess runs the full analysis pipeline synchronously and returns
// the processed document.
func (s *Server) handleProcess(c echo.Context) error {
	var doc models.Document
	if err := c.Bind(&doc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document payload")
	}
	if err := doc.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	s.log.Info("processing document", "document_id", doc.ID)

	analysis, err := s.analyzer.Analyze(c.Request().Context(), doc)
	if err != nil {
		s.log.Error("processing failed", "document_id", doc.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("processing failed: %v", err))
	}

	return c.JSON(http.StatusOK, s.processedDocument(doc, analysis))
}

// handleProcessBatch processes up to BatchSize documents in one request.
// A document that fails comes back with an empty analysis instead of
// failing the whole batch.
func (s *Server) handleProcessBatch(c echo.Context) error {
	var docs []models.Document
	if err := c.Bind(&docs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid batch payload")
	}
	if len(docs) > s.cfg.BatchSize {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("batch size exceeds maximum of %d", s.cfg.BatchSize))
	}

	ctx := c.Request().Context()
	s.log.Info("processing batch", "count", len(docs))

	results := make([]models.ProcessedDocument, 0, len(docs))
	for _, doc := range docs {
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now().UTC()
		}

		analysis, err := s.analyzer.Analyze(ctx, doc)
		if err != nil {
			s.log.Error("batch document failed", "document_id", doc.ID, "error", err)
			results = append(results, s.processedDocument(doc, models.NewAnalysis()))
			continue
		}
		results = append(results, s.processedDocument(doc, analysis))
	}

	return c.JSON(http.StatusOK, results)
}

// handleSubmitJob enqueues a document for asynchronous processing and
// returns the job handle immediately.
func (s *Server) handleSubmitJob(c echo.Context) error {
	var doc models.Document
	if err := c.Bind(&doc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document payload")
	}
	if err := doc.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	resp, err := s.submitDocument(c.Request().Context(), doc)
	if err != nil {
		s.log.Error("job submission failed", "document_id", doc.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "job submission failed")
	}

	return c.JSON(http.StatusOK, resp)
}

// handleJobStatus returns the stored status record for a job.
func (s *Server) handleJobStatus(c echo.Context) error {
	jobID := c.Param("job_id")

	record, err := s.store.GetStatus(c.Request().Context(), jobID)
	if err != nil {
		s.log.Error("job status lookup failed", "job_id", jobID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get job status")
	}
	if record == nil {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}

	return c.JSON(http.StatusOK, StatusResponse{JobID: jobID, StatusRecord: *record})
}

// handleStats reports runtime statistics and effective configuration.
func (s *Server) handleStats(c echo.Context) error {
	ctx := c.Request().Context()

	return c.JSON(http.StatusOK, map[string]any{
		"service": config.ServiceName,
		"version": config.ServiceVersion,
		"uptime":  time.Since(s.startAt).Round(time.Second).String(),
		"configuration": map[string]any{
			"model":        s.cfg.ModelName,
			"batch_size":   s.cfg.BatchSize,
			"worker_count": s.cfg.WorkerCount,
			"features":     s.feats,
		},
		"queues": s.queueLengths(ctx),
		"worker": map[string]any{
			"running":         s.worker.Running(),
			"processed_count": s.worker.ProcessedCount(),
		},
		"redis": s.broker.CheckHealth(ctx),
	})
}

// handleClearQueue drops every pending job from the processing queue.
func (s *Server) handleClearQueue(c echo.Context) error {
	if err := s.queue.Clear(c.Request().Context()); err != nil {
		s.log.Error("clear queue failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to clear queue")
	}

	s.metrics.QueueDepth.Set(0)
	s.log.Info("processing queue cleared")

	return c.JSON(http.StatusOK, map[string]string{"message": "Processing queue cleared successfully"})
}

// handleExtractDocument turns an uploaded PDF into a document. With
// ?submit=true the extracted document is enqueued for processing in the
// same request.
func (s *Server) handleExtractDocument(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file upload")
	}
	if fileHeader.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusBadRequest, "file exceeds maximum upload size")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read upload")
	}

	text, pages, err := extract.PDFText(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		s.log.Warn("pdf extraction failed", "filename", fileHeader.Filename, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid pdf: %v", err))
	}

	doc := models.Document{
		ID:      uuid.NewString(),
		Content: text,
		Metadata: map[string]any{
			"filename": fileHeader.Filename,
			"pages":    pages,
		},
		CreatedAt: time.Now().UTC(),
	}

	if c.QueryParam("submit") == "true" {
		if err := doc.Validate(); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("extracted document not submittable: %v", err))
		}

		resp, err := s.submitDocument(c.Request().Context(), doc)
		if err != nil {
			s.log.Error("job submission failed", "document_id", doc.ID, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "job submission failed")
		}
		return c.JSON(http.StatusOK, resp)
	}

	return c.JSON(http.StatusOK, doc)
}

// submitDocument enqueues a pending job for the document. The queue push
// is the commit point: a status write failure afterwards is logged and
// tolerated because the worker rewrites the record when it claims the
// job.
func (s *Server) submitDocument(ctx context.Context, doc models.Document) (SubmitResponse, error) {
	job, err := models.NewProcessingJob(doc)
	if err != nil {
		return SubmitResponse{}, err
	}

	position, err := s.queue.Push(ctx, job)
	if err != nil {
		return SubmitResponse{}, err
	}

	if err := s.store.UpdateStatus(ctx, job.ID, models.StatusPending, 0, ""); err != nil {
		s.log.Warn("persist pending status failed", "job_id", job.ID, "error", err)
	}

	s.metrics.JobsSubmitted.Inc()
	s.metrics.QueueDepth.Set(float64(position))
	s.ws.BroadcastJobUpdate(models.JobUpdate{
		JobID:     job.ID,
		Status:    models.StatusPending,
		Timestamp: time.Now().UTC(),
	})

	s.log.Info("job submitted", "job_id", job.ID, "document_id", doc.ID, "queue_position", position)

	return SubmitResponse{
		JobID:         job.ID,
		DocumentID:    doc.ID,
		Status:        models.StatusPending,
		SubmittedAt:   time.Now().UTC(),
		QueuePosition: position,
	}, nil
}

// processedDocument stamps provenance onto an analysis.
func (s *Server) processedDocument(doc models.Document, analysis models.Analysis) models.ProcessedDocument {
	return models.ProcessedDocument{
		Document:          doc,
		Analysis:          analysis,
		ProcessedAt:       time.Now().UTC(),
		ProcessingVersion: config.ServiceVersion,
		ModelUsed:         s.cfg.ModelName,
	}
}

// queueLengths reads both queue depths, treating read errors as empty so
// health and stats stay available when the broker is flapping.
func (s *Server) queueLengths(ctx context.Context) map[string]any {
	processing, err := s.queue.Length(ctx)
	if err != nil {
		s.log.Debug("read processing queue length", "error", err)
	}
	results, err := s.results.Length(ctx)
	if err != nil {
		s.log.Debug("read results queue length", "error", err)
	}

	return map[string]any{
		"processing_queue_length": processing,
		"results_queue_length":    results,
	}
}
