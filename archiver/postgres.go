package archiver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"nlpservice/models"
)

const resultsSchema = `
CREATE TABLE IF NOT EXISTS nlp_results (
	id BIGSERIAL PRIMARY KEY,
	job_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	status TEXT NOT NULL,
	payload JSONB NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresSink archives result envelopes into the nlp_results table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to Postgres and ensures the results table
// exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, resultsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure results table: %w", err)
	}

	return &PostgresSink{pool: pool}, nil
}

// Save inserts one envelope.
func (s *PostgresSink) Save(ctx context.Context, env models.ResultEnvelope) error {
	payload, err := json.Marshal(env.Result)
	if err != nil {
		return fmt.Errorf("encode result payload: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO nlp_results (job_id, document_id, status, payload, processed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		env.JobID, env.Result.DocumentID, string(env.Result.Status), payload, env.Result.ProcessedAt)
	if err != nil {
		return fmt.Errorf("insert result for job %s: %w", env.JobID, err)
	}

	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}
