// Package worker implements the single-page capture step: run the archiving
// tool for one job and classify the outcome.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/weekly-snapshots/internal/progress"
	"github.com/JakeFAU/weekly-snapshots/internal/snapshot"
)

// MaxErrorLength bounds the failure text carried in a Result.
const MaxErrorLength = 200

// Failure messages produced by the classifier.
const (
	ErrTextTimeout    = "timeout"
	ErrTextCanceled   = "canceled"
	ErrTextNoOutput   = "output not created"
	ErrTextUnknown    = "unknown error"
	errTextTooSmallFm = "file too small: %d bytes"
)

// Config controls how the capture tool is invoked.
type Config struct {
	Tool          string
	BrowserPath   string
	BrowserArgs   string
	WaitMs        int
	MaxResourceMB int
	Timeout       time.Duration
	MinBytes      int64
	// RunID tags the progress events this worker emits.
	RunID string
	// ContentType is used when mirroring archives (default text/html).
	ContentType string
}

// Worker captures jobs one at a time. It is safe for concurrent use as long
// as each call gets a distinct job.
type Worker struct {
	cfg       Config
	runner    Runner
	hasher    snapshot.Hasher
	emitter   progress.Emitter
	mirror    snapshot.BlobStore
	mirrorDir string
	logger    *zap.Logger
}

// Option customizes a Worker.
type Option func(*Worker)

// WithEmitter reports capture milestones to em.
func WithEmitter(em progress.Emitter) Option {
	return func(w *Worker) {
		if em != nil {
			w.emitter = em
		}
	}
}

// WithMirror uploads every successful archive to store under dir.
func WithMirror(store snapshot.BlobStore, dir string) Option {
	return func(w *Worker) {
		w.mirror = store
		w.mirrorDir = dir
	}
}

// New constructs a Worker.
func New(cfg Config, runner Runner, hasher snapshot.Hasher, logger *zap.Logger, opts ...Option) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	w := &Worker{
		cfg:     cfg,
		runner:  runner,
		hasher:  hasher,
		emitter: progress.Nop{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Args returns the capture tool arguments for job.
func (w *Worker) Args(job snapshot.Job) []string {
	return []string{
		job.URL,
		job.OutputPath,
		"--browser-executable-path", w.cfg.BrowserPath,
		"--browser-args", w.cfg.BrowserArgs,
		"--wait-for", strconv.Itoa(w.cfg.WaitMs),
		"--load-deferred-images", "true",
		"--max-resource-size", strconv.Itoa(w.cfg.MaxResourceMB),
		"--compress-CSS", "true",
		"--compress-HTML", "true",
		"--remove-unused-styles", "true",
		"--remove-unused-fonts", "true",
		"--remove-alternative-medias", "true",
	}
}

// Capture runs the tool for job and classifies the outcome. It never returns
// an error: every failure is carried in the Result.
func (w *Worker) Capture(ctx context.Context, job snapshot.Job) snapshot.Result {
	start := time.Now()
	w.emit(progress.Event{Stage: progress.StageCaptureStart, Filename: job.Filename, URL: job.URL})
	w.logger.Info("capturing", zap.String("file", job.Filename), zap.String("url", job.URL))

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	out, err := w.runner.Run(jobCtx, w.cfg.Tool, w.Args(job))
	res := w.classify(ctx, jobCtx, job, out, err)
	res.Duration = time.Since(start)

	if res.OK() {
		w.mirrorArchive(ctx, job)
	}
	w.finish(res)
	return res
}

func (w *Worker) classify(ctx, jobCtx context.Context, job snapshot.Job, out Output, runErr error) snapshot.Result {
	switch {
	case ctx.Err() != nil:
		return snapshot.Failed(job, ErrTextCanceled)
	case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		return snapshot.Failed(job, ErrTextTimeout)
	case runErr != nil:
		return snapshot.Failed(job, Truncate(runErr.Error()))
	case out.ExitCode != 0:
		return snapshot.Failed(job, Truncate(firstNonEmpty(out.Stderr, out.Stdout, ErrTextUnknown)))
	}

	info, err := os.Stat(job.OutputPath)
	if errors.Is(err, fs.ErrNotExist) {
		return snapshot.Failed(job, ErrTextNoOutput)
	}
	if err != nil {
		return snapshot.Failed(job, Truncate(err.Error()))
	}
	size := info.Size()
	if size < w.cfg.MinBytes {
		return snapshot.Failed(job, fmt.Sprintf(errTextTooSmallFm, size))
	}
	return snapshot.Succeeded(job, size, w.digest(job))
}

func (w *Worker) digest(job snapshot.Job) string {
	if w.hasher == nil {
		return ""
	}
	f, err := os.Open(job.OutputPath)
	if err != nil {
		w.logger.Warn("open archive for hashing", zap.String("file", job.Filename), zap.Error(err))
		return ""
	}
	defer func() { _ = f.Close() }()
	sum, err := w.hasher.HashReader(f)
	if err != nil {
		w.logger.Warn("hash archive", zap.String("file", job.Filename), zap.Error(err))
		return ""
	}
	return sum
}

func (w *Worker) mirrorArchive(ctx context.Context, job snapshot.Job) {
	if w.mirror == nil {
		return
	}
	f, err := os.Open(job.OutputPath)
	if err != nil {
		w.logger.Warn("open archive for mirror", zap.String("file", job.Filename), zap.Error(err))
		return
	}
	defer func() { _ = f.Close() }()
	key := path.Join(w.mirrorDir, job.Filename+".html")
	uri, err := w.mirror.PutObject(ctx, key, w.cfg.ContentType, f)
	if err != nil {
		w.logger.Warn("mirror archive failed", zap.String("file", job.Filename), zap.Error(err))
		return
	}
	w.logger.Debug("archive mirrored", zap.String("file", job.Filename), zap.String("uri", uri))
}

func (w *Worker) finish(res snapshot.Result) {
	if res.OK() {
		w.emit(progress.Event{
			Stage:    progress.StageCaptureDone,
			Filename: res.Filename,
			URL:      res.URL,
			Bytes:    res.Bytes,
			Dur:      res.Duration,
		})
		w.logger.Info("capture succeeded",
			zap.String("file", res.Filename),
			zap.String("size", fmt.Sprintf("%.2f MB", float64(res.Bytes)/(1024*1024))),
			zap.Duration("took", res.Duration),
		)
		return
	}
	w.emit(progress.Event{
		Stage:    progress.StageCaptureError,
		Filename: res.Filename,
		URL:      res.URL,
		Dur:      res.Duration,
		Note:     res.Error,
	})
	w.logger.Warn("capture failed",
		zap.String("file", res.Filename),
		zap.String("url", res.URL),
		zap.String("error", res.Error),
	)
}

func (w *Worker) emit(evt progress.Event) {
	evt.RunID = w.cfg.RunID
	evt.TS = time.Now().UTC()
	w.emitter.Emit(evt)
}

// Truncate trims msg and bounds it to MaxErrorLength characters.
func Truncate(msg string) string {
	msg = strings.TrimSpace(msg)
	runes := []rune(msg)
	if len(runes) <= MaxErrorLength {
		return msg
	}
	return string(runes[:MaxErrorLength])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
