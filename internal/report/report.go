// Package report aggregates capture results into the persisted run report and
// renders its Markdown summary.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/JakeFAU/weekly-snapshots/internal/snapshot"
)

// File names written into every report folder.
const (
	ReportFile  = "report.json"
	SummaryFile = "summary.md"
)

const bytesPerMB = 1024 * 1024

// Report is the structured run report. JSON keys are kept stable for the
// README updater and other existing consumers.
type Report struct {
	ExecutedAt time.Time `json:"fecha_ejecucion"`
	Week       string    `json:"fecha_semana"`
	RunID      string    `json:"run_id,omitempty"`
	Stats      Stats     `json:"estadisticas"`
	Successes  []Capture `json:"capturas_exitosas"`
	Failures   []Failure `json:"capturas_fallidas"`
}

// Stats holds the aggregate numbers of a run.
type Stats struct {
	TotalURLs      int     `json:"total_urls"`
	Succeeded      int     `json:"exitosas"`
	Failed         int     `json:"fallidas"`
	ElapsedSeconds float64 `json:"tiempo_total_segundos"`
	TotalBytes     int64   `json:"tamaño_total_bytes"`
	TotalMB        float64 `json:"tamaño_total_mb"`
	AverageMB      float64 `json:"promedio_mb_por_pagina"`
}

// SuccessRate returns the percentage of successful captures, 0 for an empty run.
func (s Stats) SuccessRate() float64 {
	if s.TotalURLs == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.TotalURLs) * 100
}

// Capture describes one archived page.
type Capture struct {
	Filename  string  `json:"filename"`
	URL       string  `json:"url"`
	SizeBytes int64   `json:"size_bytes"`
	SizeMB    float64 `json:"size_mb"`
	SHA256    string  `json:"sha256,omitempty"`
}

// Failure describes one page that could not be archived.
type Failure struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Error    string `json:"error"`
}

// Meta identifies the run a report belongs to.
type Meta struct {
	ExecutedAt time.Time
	Week       string
	RunID      string
}

// Build aggregates results into a Report. The input order does not matter:
// captures and failures are sorted by filename, then URL.
func Build(results []snapshot.Result, elapsed time.Duration, meta Meta) Report {
	rep := Report{
		ExecutedAt: meta.ExecutedAt,
		Week:       meta.Week,
		RunID:      meta.RunID,
		Successes:  []Capture{},
		Failures:   []Failure{},
	}

	var totalBytes int64
	for _, r := range results {
		if r.OK() {
			totalBytes += r.Bytes
			rep.Successes = append(rep.Successes, Capture{
				Filename:  r.Filename,
				URL:       r.URL,
				SizeBytes: r.Bytes,
				SizeMB:    toMB(r.Bytes),
				SHA256:    r.SHA256,
			})
			continue
		}
		rep.Failures = append(rep.Failures, Failure{
			Filename: r.Filename,
			URL:      r.URL,
			Error:    r.Error,
		})
	}

	sort.Slice(rep.Successes, func(i, j int) bool {
		a, b := rep.Successes[i], rep.Successes[j]
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.URL < b.URL
	})
	sort.Slice(rep.Failures, func(i, j int) bool {
		a, b := rep.Failures[i], rep.Failures[j]
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.URL < b.URL
	})

	rep.Stats = Stats{
		TotalURLs:      len(results),
		Succeeded:      len(rep.Successes),
		Failed:         len(rep.Failures),
		ElapsedSeconds: round2(elapsed.Seconds()),
		TotalBytes:     totalBytes,
		TotalMB:        toMB(totalBytes),
	}
	if n := len(rep.Successes); n > 0 {
		rep.Stats.AverageMB = round2(float64(totalBytes) / float64(n) / bytesPerMB)
	}
	return rep
}

// Marshal encodes the report as indented JSON without HTML escaping.
func Marshal(rep Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return buf.Bytes(), nil
}

// Read loads a report previously written by Writer.
func Read(path string) (Report, error) {
	// #nosec G304 -- report path comes from configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read report: %w", err)
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return Report{}, fmt.Errorf("decode report %s: %w", path, err)
	}
	return rep, nil
}

func toMB(n int64) float64 {
	return round2(float64(n) / bytesPerMB)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
