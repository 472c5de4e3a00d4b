package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"nlpservice/broker"
	"nlpservice/models"
)

const (
	defaultPopTimeout = 30 * time.Second
	defaultBackoff    = 5 * time.Second
)

// Sink persists archived result envelopes.
type Sink interface {
	Save(ctx context.Context, env models.ResultEnvelope) error
}

// Archiver is an optional downstream consumer of the results channel: it
// drains envelopes into a sink. Publication stays fire-and-forget; an
// envelope the sink rejects is logged and dropped, never requeued.
type Archiver struct {
	broker     *broker.Client
	key        string
	sink       Sink
	log        *slog.Logger
	popTimeout time.Duration
	backoff    time.Duration
	running    atomic.Bool
	stopped    chan struct{}
}

// Options tune the drain loop. Zero values fall back to production
// defaults.
type Options struct {
	PopTimeout time.Duration
	Backoff    time.Duration
}

// New creates an archiver over the results channel key.
func New(b *broker.Client, key string, sink Sink, log *slog.Logger, opts Options) *Archiver {
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = defaultPopTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	return &Archiver{
		broker:     b,
		key:        key,
		sink:       sink,
		log:        log,
		popTimeout: opts.PopTimeout,
		backoff:    opts.Backoff,
		stopped:    make(chan struct{}),
	}
}

// Start launches the drain loop. An Archiver is single use.
func (a *Archiver) Start() {
	if !a.running.CompareAndSwap(false, true) {
		return
	}

	a.log.Info("results archiver starting", "queue", a.key)
	go a.run()
}

// Stop asks the loop to exit after its current cycle and waits up to the
// context deadline.
func (a *Archiver) Stop(ctx context.Context) error {
	if !a.running.CompareAndSwap(true, false) {
		return nil
	}

	select {
	case <-a.stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for archiver shutdown: %w", ctx.Err())
	}
}

func (a *Archiver) run() {
	defer close(a.stopped)
	ctx := context.Background()

	for a.running.Load() {
		raw, err := a.broker.PopWait(ctx, a.key, a.popTimeout)
		if err != nil {
			a.log.Error("results pop failed", "error", err)
			time.Sleep(a.backoff)
			continue
		}
		if raw == nil {
			continue
		}

		var env models.ResultEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			a.log.Error("discarding undecodable result", "error", err)
			continue
		}

		if err := a.sink.Save(ctx, env); err != nil {
			a.log.Error("archive result failed", "job_id", env.JobID, "error", err)
		}
	}
}
