package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/weekly-snapshots/internal/snapshot"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan snapshot.Job, 1)
	errCh := make(chan error, 1)

	go func() {
		job, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- job
	}()

	require.NoError(t, q.Enqueue(context.Background(), snapshot.Job{Filename: "job-1"}))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		require.Equal(t, "job-1", got.Filename)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primed := NewQueue(1)
	require.NoError(t, primed.Enqueue(context.Background(), snapshot.Job{Filename: "primed"}))
	_, err := primed.Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	err = primed.Enqueue(ctx, snapshot.Job{})
	require.EqualError(t, err, "enqueue canceled: context canceled")
	require.True(t, errors.Is(err, context.Canceled))
}

func TestQueueDrainsAfterClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)
	for _, name := range []string{"a", "b"} {
		require.NoError(t, q.Enqueue(context.Background(), snapshot.Job{Filename: name}))
	}
	q.Close()
	require.Equal(t, 2, q.Len())

	for _, want := range []string{"a", "b"} {
		job, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		require.Equal(t, want, job.Filename)
	}
	_, err := q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrClosed)

	require.ErrorIs(t, q.Enqueue(context.Background(), snapshot.Job{}), ErrClosed)
	// Closing twice should be safe.
	q.Close()
}
