// Package progress defines the event structures emitted by the capture workers.
package progress

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageRunDone      Stage = "RUN_DONE"
	StageRunError     Stage = "RUN_ERROR"
	StageCaptureStart Stage = "CAPTURE_START"
	StageCaptureDone  Stage = "CAPTURE_DONE"
	StageCaptureError Stage = "CAPTURE_ERROR"
)

// FailureClass is a coarse grouping of capture failure messages, bounded so it
// can be used as a metric label.
type FailureClass string

// Supported failure classes.
const (
	FailureTimeout  FailureClass = "timeout"
	FailureCanceled FailureClass = "canceled"
	FailureMissing  FailureClass = "missing_output"
	FailureTooSmall FailureClass = "too_small"
	FailureWorker   FailureClass = "worker_error"
	FailureTool     FailureClass = "tool_error"
)

// Event captures a single milestone of a snapshot run.
type Event struct {
	// RunID identifies the run that produced the event.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which run or capture milestone occurred.
	Stage Stage
	// Filename scopes capture events to their output name.
	Filename string
	// URL is the optional page URL.
	URL string
	// Bytes carries the archive size for completed captures.
	Bytes int64
	// Dur captures latency for captures and run completions.
	Dur time.Duration
	// Note carries the failure message for error stages.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageCaptureStart, StageCaptureDone:
		if e.Filename == "" {
			return fmt.Errorf("%s requires filename", e.Stage)
		}
	case StageCaptureError:
		if e.Filename == "" {
			return errors.New("capture error requires filename")
		}
		if e.Note == "" {
			return errors.New("capture error requires note")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Bytes < 0 {
		return errors.New("bytes must be >= 0")
	}
	return nil
}

// ClassifyFailure groups a capture failure message.
func ClassifyFailure(msg string) FailureClass {
	switch {
	case msg == "timeout":
		return FailureTimeout
	case msg == "canceled":
		return FailureCanceled
	case msg == "output not created":
		return FailureMissing
	case strings.HasPrefix(msg, "file too small"):
		return FailureTooSmall
	case strings.HasPrefix(msg, "worker error"):
		return FailureWorker
	default:
		return FailureTool
	}
}
