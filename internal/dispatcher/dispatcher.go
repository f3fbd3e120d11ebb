// Package dispatcher runs a capture batch: it plans one job per URL entry,
// fans the jobs out to a bounded pool and collects every result.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/weekly-snapshots/internal/clock/system"
	"github.com/JakeFAU/weekly-snapshots/internal/filename"
	"github.com/JakeFAU/weekly-snapshots/internal/progress"
	"github.com/JakeFAU/weekly-snapshots/internal/queue/memory"
	"github.com/JakeFAU/weekly-snapshots/internal/snapshot"
	"github.com/JakeFAU/weekly-snapshots/internal/worker"
)

// Pool size bounds.
const (
	MinPoolSize = 1
	MaxPoolSize = 3
)

var (
	// ErrNoURLs is returned when there is nothing to capture.
	ErrNoURLs = errors.New("no URLs to capture")
	// ErrInvalidPoolSize is returned for a pool size outside 1..3.
	ErrInvalidPoolSize = fmt.Errorf("pool size must be between %d and %d", MinPoolSize, MaxPoolSize)
)

// Dispatcher fans capture jobs out to a fixed pool of goroutines.
type Dispatcher struct {
	capturer snapshot.Capturer
	run      snapshot.RunContext
	clock    snapshot.Clock
	emitter  progress.Emitter
	logger   *zap.Logger
}

// New creates a Dispatcher for one run. The pool size comes from run.PoolSize.
func New(
	capturer snapshot.Capturer,
	run snapshot.RunContext,
	clock snapshot.Clock,
	emitter progress.Emitter,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if run.PoolSize < MinPoolSize || run.PoolSize > MaxPoolSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPoolSize, run.PoolSize)
	}
	if capturer == nil {
		return nil, errors.New("capturer is required")
	}
	if clock == nil {
		clock = system.New()
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		capturer: capturer,
		run:      run,
		clock:    clock,
		emitter:  emitter,
		logger:   logger,
	}, nil
}

// Plan derives one job per entry, writing into dir. Entry order is kept and
// colliding filenames get a numeric suffix.
func Plan(entries []snapshot.Entry, dir string) []snapshot.Job {
	seen := make(map[string]int, len(entries))
	jobs := make([]snapshot.Job, 0, len(entries))
	for _, e := range entries {
		name := filename.Unique(filename.Sanitize(e.URL, e.Name), seen)
		jobs = append(jobs, snapshot.Job{
			URL:        e.URL,
			Filename:   name,
			OutputPath: filepath.Join(dir, name+".html"),
		})
	}
	return jobs
}

// Run captures every entry and blocks until all jobs finish. Results are in
// completion order. When ctx is canceled mid-run the partial results are
// discarded and the context error is returned.
func (d *Dispatcher) Run(ctx context.Context, entries []snapshot.Entry) (snapshot.Outcome, error) {
	if len(entries) == 0 {
		return snapshot.Outcome{}, ErrNoURLs
	}
	dir := d.run.WeekDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return snapshot.Outcome{}, fmt.Errorf("create week dir: %w", err)
	}
	jobs := Plan(entries, dir)

	started := d.clock.Now()
	mono := time.Now()
	d.emit(progress.Event{Stage: progress.StageRunStart})
	d.logger.Info("capture run started",
		zap.String("run_id", d.run.RunID),
		zap.Int("urls", len(jobs)),
		zap.Int("workers", d.run.PoolSize),
		zap.String("dir", dir),
	)

	queue := memory.NewQueue(len(jobs))
	for _, job := range jobs {
		if err := queue.Enqueue(ctx, job); err != nil {
			queue.Close()
			return snapshot.Outcome{}, d.abort(fmt.Errorf("queue job: %w", err), time.Since(mono))
		}
	}
	queue.Close()

	results := make(chan snapshot.Result, len(jobs))
	var wg sync.WaitGroup
	for range min(d.run.PoolSize, len(jobs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.drain(ctx, queue, results)
		}()
	}
	wg.Wait()
	close(results)

	elapsed := time.Since(mono)
	if err := ctx.Err(); err != nil {
		return snapshot.Outcome{}, d.abort(fmt.Errorf("capture run interrupted: %w", err), elapsed)
	}

	collected := make([]snapshot.Result, 0, len(jobs))
	for res := range results {
		collected = append(collected, res)
	}
	out := snapshot.Outcome{Results: collected, Started: started, Elapsed: elapsed}
	d.emit(progress.Event{Stage: progress.StageRunDone, Dur: elapsed})
	d.logger.Info("capture run finished",
		zap.String("run_id", d.run.RunID),
		zap.Int("succeeded", out.Succeeded()),
		zap.Int("failed", out.Failed()),
		zap.Duration("elapsed", elapsed),
	)
	return out, nil
}

func (d *Dispatcher) drain(ctx context.Context, queue *memory.Queue, results chan<- snapshot.Result) {
	for {
		job, err := queue.Dequeue(ctx)
		if err != nil {
			return
		}
		results <- d.capture(ctx, job)
	}
}

// capture isolates a single job so a panic becomes a failure for that job only.
func (d *Dispatcher) capture(ctx context.Context, job snapshot.Job) (res snapshot.Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("capture panicked", zap.String("file", job.Filename), zap.Any("panic", r))
			res = snapshot.Failed(job, worker.Truncate(fmt.Sprintf("worker error: %v", r)))
			d.emit(progress.Event{
				Stage:    progress.StageCaptureError,
				Filename: job.Filename,
				URL:      job.URL,
				Note:     res.Error,
			})
		}
	}()
	return d.capturer.Capture(ctx, job)
}

func (d *Dispatcher) abort(err error, elapsed time.Duration) error {
	d.emit(progress.Event{Stage: progress.StageRunError, Dur: elapsed, Note: err.Error()})
	d.logger.Warn("capture run aborted", zap.String("run_id", d.run.RunID), zap.Error(err))
	return err
}

func (d *Dispatcher) emit(evt progress.Event) {
	evt.RunID = d.run.RunID
	evt.TS = d.clock.Now()
	d.emitter.Emit(evt)
}
