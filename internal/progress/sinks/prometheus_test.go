package sinks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/weekly-snapshots/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	batch := []progress.Event{
		{RunID: "run", TS: now, Stage: progress.StageRunStart},
		{RunID: "run", TS: now, Stage: progress.StageCaptureStart, Filename: "a"},
		{RunID: "run", TS: now, Stage: progress.StageCaptureStart, Filename: "b"},
		{RunID: "run", TS: now, Stage: progress.StageCaptureDone, Filename: "a", Bytes: 4096, Dur: 3 * time.Second},
		{RunID: "run", TS: now, Stage: progress.StageCaptureError, Filename: "b", Note: "timeout", Dur: 90 * time.Second},
		{RunID: "run", TS: now, Stage: progress.StageRunDone, Dur: 93 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.inFlight))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.captures.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.captures.WithLabelValues("failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.failures.WithLabelValues("timeout")))
	require.InDelta(t, 4096.0, testutil.ToFloat64(sink.captureBytes), 1e-9)
	require.InDelta(t, 93.0, testutil.ToFloat64(sink.runDuration), 1e-9)
	require.InDelta(t, 1_700_000_000.0, testutil.ToFloat64(sink.lastRun), 1e-9)
	require.Equal(t, 2, testutil.CollectAndCount(sink.captureDuration, "snapshots_capture_duration_seconds"))
}

// TestPrometheusSinkDuplicateRegistration surfaces registry conflicts.
func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

// TestPrometheusSinkWritesTextfile exports gathered metrics on Close.
func TestPrometheusSinkWritesTextfile(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	path := filepath.Join(t.TempDir(), "snapshots.prom")
	sink, err := NewPrometheusSink(reg, WithTextfile(path, reg))
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: "run", TS: time.Now(), Stage: progress.StageRunStart},
	}))
	require.NoError(t, sink.Close(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "snapshots_runs_started_total 1")
}

// TestPrometheusSinkTextfileRequiresGatherer rejects a path without a source.
func TestPrometheusSinkTextfileRequiresGatherer(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry(), WithTextfile("out.prom", nil))
	require.NoError(t, err)
	require.Error(t, sink.Close(context.Background()))
}
