package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/weekly-snapshots/internal/progress"
)

// PrometheusSink exports run and capture metrics via Prometheus. When a
// textfile path is configured the gathered metrics are written there on Close,
// for pickup by the node_exporter textfile collector.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Gauge
	lastRun       prometheus.Gauge

	captures        *prometheus.CounterVec
	failures        *prometheus.CounterVec
	captureBytes    prometheus.Counter
	captureDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge

	gatherer prometheus.Gatherer
	textfile string
}

// Option configures a PrometheusSink.
type Option func(*PrometheusSink)

// WithTextfile writes metrics gathered from g to path when the sink closes.
func WithTextfile(path string, g prometheus.Gatherer) Option {
	return func(s *PrometheusSink) {
		s.textfile = path
		s.gatherer = g
	}
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer, opts ...Option) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapshots_runs_started_total",
			Help: "Total capture runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshots_runs_completed_total",
			Help: "Total capture runs completed partitioned by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshots_last_run_duration_seconds",
			Help: "Wall time of the most recent completed run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshots_last_run_timestamp_seconds",
			Help: "Unix time the most recent run finished.",
		}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshots_captures_total",
			Help: "Capture completions partitioned by result.",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshots_capture_failures_total",
			Help: "Failed captures partitioned by failure class.",
		}, []string{"class"}),
		captureBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapshots_capture_bytes_total",
			Help: "Bytes of archived HTML written.",
		}),
		captureDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snapshots_capture_duration_seconds",
			Help:    "Capture duration partitioned by result.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120},
		}, []string{"result"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshots_captures_in_flight",
			Help: "Captures currently running.",
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.lastRun,
		s.captures,
		s.failures,
		s.captureBytes,
		s.captureDuration,
		s.inFlight,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.finishRun(evt, "success")
	case progress.StageRunError:
		s.finishRun(evt, "error")
	case progress.StageCaptureStart:
		s.inFlight.Inc()
	case progress.StageCaptureDone:
		s.inFlight.Dec()
		s.captures.WithLabelValues("success").Inc()
		s.captureBytes.Add(float64(evt.Bytes))
		s.observeCapture(evt, "success")
	case progress.StageCaptureError:
		s.inFlight.Dec()
		s.captures.WithLabelValues("failure").Inc()
		s.failures.WithLabelValues(string(progress.ClassifyFailure(evt.Note))).Inc()
		s.observeCapture(evt, "failure")
	}
}

func (s *PrometheusSink) finishRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	s.runDuration.Set(evt.Dur.Seconds())
	s.lastRun.Set(float64(evt.TS.Unix()))
}

func (s *PrometheusSink) observeCapture(evt progress.Event, result string) {
	if evt.Dur > 0 {
		s.captureDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close writes the textfile export when configured.
func (s *PrometheusSink) Close(context.Context) error {
	if s.textfile == "" {
		return nil
	}
	if s.gatherer == nil {
		return errors.New("textfile export requires a gatherer")
	}
	if err := prometheus.WriteToTextfile(s.textfile, s.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
