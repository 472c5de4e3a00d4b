package archiver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlpservice/broker"
	"nlpservice/models"
	"nlpservice/queue"
)

// memorySink collects saved envelopes and can be told to reject them.
type memorySink struct {
	mu    sync.Mutex
	saved []models.ResultEnvelope
	err   error
}

func (s *memorySink) Save(ctx context.Context, env models.ResultEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, env)
	return nil
}

func (s *memorySink) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *memorySink) last() models.ResultEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[len(s.saved)-1]
}

func setup(t *testing.T) (*broker.Client, *queue.ResultsPublisher, *memorySink, *Archiver) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := broker.Connect(context.Background(), broker.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	sink := &memorySink{}
	arch := New(client, "nlp:results:queue", sink, slog.Default(),
		Options{PopTimeout: 100 * time.Millisecond, Backoff: 10 * time.Millisecond})

	return client, queue.NewResultsPublisher(client, "nlp:results:queue"), sink, arch
}

func stopArchiver(t *testing.T, arch *Archiver) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, arch.Stop(ctx))
}

func TestArchiverDrainsResults(t *testing.T) {
	_, results, sink, arch := setup(t)

	result := models.JobResult{
		JobID:       "job-1",
		DocumentID:  "doc-1",
		Status:      models.StatusCompleted,
		ProcessedAt: time.Now().UTC(),
	}
	require.NoError(t, results.Publish(context.Background(), result))

	arch.Start()
	defer stopArchiver(t, arch)

	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	env := sink.last()
	assert.Equal(t, "job-1", env.JobID)
	assert.Equal(t, models.StatusCompleted, env.Result.Status)

	n, err := results.Length(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArchiverSkipsUndecodableEntries(t *testing.T) {
	client, results, sink, arch := setup(t)

	_, err := client.Push(context.Background(), "nlp:results:queue", []byte("not json"))
	require.NoError(t, err)
	require.NoError(t, results.Publish(context.Background(), models.JobResult{
		JobID:       "job-2",
		Status:      models.StatusCompleted,
		ProcessedAt: time.Now().UTC(),
	}))

	arch.Start()
	defer stopArchiver(t, arch)

	// The bad entry is dropped and the loop keeps draining.
	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "job-2", sink.last().JobID)
}

func TestArchiverSurvivesSinkErrors(t *testing.T) {
	_, results, sink, arch := setup(t)
	sink.setErr(errors.New("insert failed"))

	require.NoError(t, results.Publish(context.Background(), models.JobResult{
		JobID:       "job-1",
		Status:      models.StatusCompleted,
		ProcessedAt: time.Now().UTC(),
	}))

	arch.Start()
	defer stopArchiver(t, arch)

	// The rejected envelope is dropped, not requeued.
	require.Eventually(t, func() bool {
		n, err := results.Length(context.Background())
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)

	sink.setErr(nil)
	require.NoError(t, results.Publish(context.Background(), models.JobResult{
		JobID:       "job-2",
		Status:      models.StatusCompleted,
		ProcessedAt: time.Now().UTC(),
	}))

	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "job-2", sink.last().JobID)
}

func TestArchiverStopTwice(t *testing.T) {
	_, _, _, arch := setup(t)

	arch.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, arch.Stop(ctx))
	require.NoError(t, arch.Stop(ctx))
}
