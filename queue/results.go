package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"nlpservice/broker"
	"nlpservice/models"
)

// ResultsPublisher pushes result envelopes onto the results channel, a
// broker list separate from the work queue. Publication is fire-and-forget:
// no acknowledgment is tracked, and a crash after publish loses nothing but
// a crash before it loses the result. Downstream consumers drain the list.
type ResultsPublisher struct {
	broker *broker.Client
	key    string
}

// NewResultsPublisher creates a publisher over the given broker list key.
func NewResultsPublisher(b *broker.Client, key string) *ResultsPublisher {
	return &ResultsPublisher{broker: b, key: key}
}

// Publish wraps the result in an envelope and pushes it onto the channel.
func (p *ResultsPublisher) Publish(ctx context.Context, result models.JobResult) error {
	env := models.ResultEnvelope{
		JobID:     result.JobID,
		Result:    result,
		Timestamp: result.ProcessedAt,
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode result for job %s: %w", result.JobID, err)
	}

	if _, err := p.broker.Push(ctx, p.key, raw); err != nil {
		return fmt.Errorf("publish result for job %s: %w", result.JobID, err)
	}
	return nil
}

// Length returns the number of unconsumed results.
func (p *ResultsPublisher) Length(ctx context.Context) (int64, error) {
	return p.broker.Length(ctx, p.key)
}
