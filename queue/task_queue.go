package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nlpservice/broker"
	"nlpservice/models"
)

// TaskQueue is the broker-backed queue of pending jobs. Producers push
// serialized jobs onto the head of the list; workers blocking-pop from the
// tail, so jobs are served in submission order. A popped job is gone from
// the queue: delivery is at-most-once.
type TaskQueue struct {
	broker *broker.Client
	key    string
}

// NewTaskQueue creates a queue over the given broker list key.
func NewTaskQueue(b *broker.Client, key string) *TaskQueue {
	return &TaskQueue{broker: b, key: key}
}

// Push enqueues a job and returns the queue length after the push.
func (q *TaskQueue) Push(ctx context.Context, job *models.ProcessingJob) (int64, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return 0, fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	n, err := q.broker.Push(ctx, q.key, raw)
	if err != nil {
		return 0, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return n, nil
}

// Pop blocks until a job is available or the timeout elapses. A nil job
// with nil error is the normal idle outcome, not an error.
func (q *TaskQueue) Pop(ctx context.Context, timeout time.Duration) (*models.ProcessingJob, error) {
	raw, err := q.broker.PopWait(ctx, q.key, timeout)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var job models.ProcessingJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode queued job: %w", err)
	}
	return &job, nil
}

// Length returns the number of pending jobs.
func (q *TaskQueue) Length(ctx context.Context) (int64, error) {
	return q.broker.Length(ctx, q.key)
}

// Clear discards all pending entries. Jobs already claimed by a worker are
// unaffected.
func (q *TaskQueue) Clear(ctx context.Context) error {
	if err := q.broker.Delete(ctx, q.key); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}
