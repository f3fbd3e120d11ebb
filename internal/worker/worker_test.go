package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/weekly-snapshots/internal/hash/sha256"
	"github.com/JakeFAU/weekly-snapshots/internal/progress"
	"github.com/JakeFAU/weekly-snapshots/internal/snapshot"
	"github.com/JakeFAU/weekly-snapshots/internal/storage/memory"
)

func testConfig() Config {
	return Config{
		Tool:          "single-file",
		BrowserPath:   "/usr/bin/google-chrome",
		BrowserArgs:   "--headless --no-sandbox",
		WaitMs:        3000,
		MaxResourceMB: 25,
		Timeout:       time.Second,
		MinBytes:      2000,
		RunID:         "run-1",
	}
}

func testJob(t *testing.T, name string) snapshot.Job {
	t.Helper()
	return snapshot.Job{
		URL:        "https://" + name + ".example.com",
		Filename:   name,
		OutputPath: filepath.Join(t.TempDir(), name+".html"),
	}
}

func TestWorkerArgs(t *testing.T) {
	t.Parallel()

	w := New(testConfig(), &fakeRunner{}, nil, zap.NewNop())
	job := snapshot.Job{URL: "https://example.com", Filename: "ex", OutputPath: "/out/ex.html"}

	assert.Equal(t, []string{
		"https://example.com",
		"/out/ex.html",
		"--browser-executable-path", "/usr/bin/google-chrome",
		"--browser-args", "--headless --no-sandbox",
		"--wait-for", "3000",
		"--load-deferred-images", "true",
		"--max-resource-size", "25",
		"--compress-CSS", "true",
		"--compress-HTML", "true",
		"--remove-unused-styles", "true",
		"--remove-unused-fonts", "true",
		"--remove-alternative-medias", "true",
	}, w.Args(job))
}

func TestWorkerSizeBoundary(t *testing.T) {
	t.Parallel()

	cases := []struct {
		size int
		ok   bool
	}{
		{size: 1999, ok: false},
		{size: 2000, ok: true},
		{size: 50_000, ok: true},
	}
	for _, tc := range cases {
		job := testJob(t, "page")
		runner := &fakeRunner{write: tc.size}
		w := New(testConfig(), runner, sha256.New(), zap.NewNop())

		res := w.Capture(context.Background(), job)
		if tc.ok {
			require.True(t, res.OK(), "size %d: %s", tc.size, res.Error)
			assert.Equal(t, int64(tc.size), res.Bytes)
			assert.Len(t, res.SHA256, 64)
		} else {
			require.False(t, res.OK())
			assert.Equal(t, "file too small: 1999 bytes", res.Error)
		}
		assert.Equal(t, job.Filename, res.Filename)
		assert.Equal(t, job.URL, res.URL)
	}
}

func TestWorkerNonZeroExit(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 500)
	cases := []struct {
		name string
		out  Output
		want string
	}{
		{"stderr preferred", Output{ExitCode: 1, Stderr: " net::ERR_NAME_NOT_RESOLVED \n", Stdout: "ignored"}, "net::ERR_NAME_NOT_RESOLVED"},
		{"stdout fallback", Output{ExitCode: 2, Stdout: "bad url"}, "bad url"},
		{"unknown", Output{ExitCode: 3}, "unknown error"},
		{"truncated", Output{ExitCode: 1, Stderr: long}, long[:MaxErrorLength]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			// The tool wrote a valid file but exit status wins.
			runner := &fakeRunner{write: 5000, out: tc.out}
			w := New(testConfig(), runner, nil, zap.NewNop())

			res := w.Capture(context.Background(), testJob(t, "site"))
			require.False(t, res.OK())
			assert.Equal(t, tc.want, res.Error)
			assert.LessOrEqual(t, len([]rune(res.Error)), MaxErrorLength)
		})
	}
}

func TestWorkerMissingOutput(t *testing.T) {
	t.Parallel()

	w := New(testConfig(), &fakeRunner{}, nil, zap.NewNop())
	res := w.Capture(context.Background(), testJob(t, "ghost"))
	require.False(t, res.OK())
	assert.Equal(t, "output not created", res.Error)
}

func TestWorkerStartError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New(`run single-file: exec: "single-file": executable file not found in $PATH`)}
	w := New(testConfig(), runner, nil, zap.NewNop())
	res := w.Capture(context.Background(), testJob(t, "x"))
	require.False(t, res.OK())
	assert.Contains(t, res.Error, "executable file not found")
}

func TestWorkerTimeout(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	runner := &fakeRunner{block: true, out: Output{ExitCode: -1, Stderr: "signal: killed"}}
	w := New(cfg, runner, nil, zap.NewNop())

	start := time.Now()
	res := w.Capture(context.Background(), testJob(t, "slow"))
	require.False(t, res.OK())
	assert.Equal(t, "timeout", res.Error)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWorkerParentCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{block: true, started: make(chan struct{})}
	w := New(testConfig(), runner, nil, zap.NewNop())

	go func() {
		<-runner.started
		cancel()
	}()
	res := w.Capture(ctx, testJob(t, "interrupted"))
	require.False(t, res.OK())
	assert.Equal(t, "canceled", res.Error)
}

func TestWorkerEmitsProgressAndMirrors(t *testing.T) {
	t.Parallel()

	em := &recordingEmitter{}
	mirror := memory.NewBlobStore()
	w := New(testConfig(), &fakeRunner{write: 3000}, nil, zap.NewNop(),
		WithEmitter(em),
		WithMirror(mirror, "semana_2024-03-04"),
	)

	res := w.Capture(context.Background(), testJob(t, "good"))
	require.True(t, res.OK())

	failed := New(testConfig(), &fakeRunner{}, nil, zap.NewNop(), WithEmitter(em), WithMirror(mirror, "semana_2024-03-04"))
	require.False(t, failed.Capture(context.Background(), testJob(t, "bad")).OK())

	events := em.Events()
	require.Len(t, events, 4)
	assert.Equal(t, progress.StageCaptureStart, events[0].Stage)
	assert.Equal(t, progress.StageCaptureDone, events[1].Stage)
	assert.Equal(t, int64(3000), events[1].Bytes)
	assert.Equal(t, progress.StageCaptureError, events[3].Stage)
	assert.Equal(t, "output not created", events[3].Note)
	for _, evt := range events {
		require.NoError(t, evt.Validate())
		assert.Equal(t, "run-1", evt.RunID)
	}

	assert.Equal(t, []string{"semana_2024-03-04/good.html"}, mirror.Paths())
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", Truncate("  short\n"))
	multi := strings.Repeat("é", 250)
	got := Truncate(multi)
	assert.Equal(t, MaxErrorLength, len([]rune(got)))
	assert.True(t, strings.HasPrefix(multi, got))
}

type fakeRunner struct {
	write   int
	out     Output
	err     error
	block   bool
	started chan struct{}

	mu    sync.Mutex
	calls [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string) (Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.block {
		<-ctx.Done()
		return f.out, nil
	}
	if f.write > 0 {
		if err := os.WriteFile(args[1], []byte(strings.Repeat("a", f.write)), 0o600); err != nil {
			return Output{}, err
		}
	}
	return f.out, f.err
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Events() []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.Event(nil), r.events...)
}
