package snapshot

import (
	"path/filepath"
	"time"
)

// Entry is one configured page to capture, keyed by a display name.
type Entry struct {
	Name string
	URL  string
}

// Job pairs a URL with the output file it will be captured into.
type Job struct {
	URL      string
	Filename string
	// OutputPath is the absolute or base-relative path of the .html archive.
	OutputPath string
}

// ResultKind discriminates the Result variants.
type ResultKind string

// Result variants.
const (
	KindSuccess ResultKind = "success"
	KindFailure ResultKind = "failure"
)

// Result is the outcome of exactly one Job. Build it with Succeeded or Failed;
// Bytes and SHA256 are only meaningful for successes, Error only for failures.
type Result struct {
	Kind     ResultKind
	Filename string
	URL      string
	Bytes    int64
	SHA256   string
	Error    string
	Duration time.Duration
}

// Succeeded builds a success result.
func Succeeded(job Job, size int64, digest string) Result {
	return Result{
		Kind:     KindSuccess,
		Filename: job.Filename,
		URL:      job.URL,
		Bytes:    size,
		SHA256:   digest,
	}
}

// Failed builds a failure result carrying msg.
func Failed(job Job, msg string) Result {
	return Result{
		Kind:     KindFailure,
		Filename: job.Filename,
		URL:      job.URL,
		Error:    msg,
	}
}

// OK reports whether r is a success.
func (r Result) OK() bool {
	return r.Kind == KindSuccess
}

// Outcome is everything the orchestrator hands to the report generator.
type Outcome struct {
	Results []Result
	Started time.Time
	Elapsed time.Duration
}

// Succeeded returns the number of successful results.
func (o Outcome) Succeeded() int {
	n := 0
	for _, r := range o.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed results.
func (o Outcome) Failed() int {
	return len(o.Results) - o.Succeeded()
}

// RunContext carries the per-run paths and knobs handed to each component.
type RunContext struct {
	RunID    string
	Week     string
	BaseDir  string
	PoolSize int
	// LatestName is the folder name of the latest pointer under BaseDir.
	LatestName string
}

// WeekDir is the dated archive folder for this run.
func (rc RunContext) WeekDir() string {
	return filepath.Join(rc.BaseDir, rc.Week)
}

// LatestDir is the overwritten "latest" folder.
func (rc RunContext) LatestDir() string {
	return filepath.Join(rc.BaseDir, rc.LatestName)
}

// WeekLabel returns the dated folder name for t: prefix followed by the
// Monday of t's week in YYYY-MM-DD form.
func WeekLabel(prefix string, t time.Time) string {
	offset := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -offset)
	return prefix + monday.Format("2006-01-02")
}
