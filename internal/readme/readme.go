// Package readme refreshes the statistics block embedded in a Markdown
// document from the latest run report.
package readme

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/weekly-snapshots/internal/report"
	"github.com/JakeFAU/weekly-snapshots/internal/storage/local"
)

// Markers delimiting the generated block.
const (
	StartMarker = "<!-- REPORTE_INICIO -->"
	EndMarker   = "<!-- REPORTE_FIN -->"
)

var (
	// ErrNoReport means the latest report does not exist yet.
	ErrNoReport = errors.New("no report available")
	// ErrMissingMarkers means the document has no well-formed marker pair.
	ErrMissingMarkers = errors.New("document is missing report markers")
)

// Config locates the document and the report it is refreshed from.
type Config struct {
	Path       string
	ReportPath string
}

// Result describes an Update call.
type Result struct {
	Changed bool
	Stats   report.Stats
}

// Validation reports which markers a document carries.
type Validation struct {
	HasStart bool
	HasEnd   bool
	// Ordered is true when an end marker follows the first start marker.
	Ordered bool
}

// OK reports whether the document can be updated.
func (v Validation) OK() bool {
	return v.HasStart && v.HasEnd && v.Ordered
}

// Updater rewrites the marker block of one document.
type Updater struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an Updater.
func New(cfg Config, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{cfg: cfg, logger: logger}
}

// Update replaces the marker block with statistics from the latest report.
// The document is left untouched on any error, and is not rewritten when the
// rendered content is identical.
func (u *Updater) Update(ctx context.Context) (Result, error) {
	rep, err := report.Read(u.cfg.ReportPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{}, fmt.Errorf("%w: %s", ErrNoReport, u.cfg.ReportPath)
	}
	if err != nil {
		return Result{}, err
	}

	doc, mode, err := u.readDocument()
	if err != nil {
		return Result{}, err
	}

	updated, err := Replace(doc, Render(rep, u.summaryLink()))
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", u.cfg.Path, err)
	}
	res := Result{Stats: rep.Stats}
	if updated == doc {
		u.logger.Info("readme already up to date", zap.String("path", u.cfg.Path))
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("update readme: %w", err)
	}
	if err := local.WriteFileAtomic(u.cfg.Path, strings.NewReader(updated), mode); err != nil {
		return Result{}, fmt.Errorf("write readme: %w", err)
	}
	res.Changed = true
	u.logger.Info("readme updated",
		zap.String("path", u.cfg.Path),
		zap.Int("succeeded", rep.Stats.Succeeded),
		zap.Int("total", rep.Stats.TotalURLs),
		zap.Float64("elapsed_s", rep.Stats.ElapsedSeconds),
		zap.Float64("total_mb", rep.Stats.TotalMB),
	)
	return res, nil
}

// Validate inspects the document markers without writing anything.
func (u *Updater) Validate() (Validation, error) {
	doc, _, err := u.readDocument()
	if err != nil {
		return Validation{}, err
	}
	return Inspect(doc), nil
}

func (u *Updater) readDocument() (string, fs.FileMode, error) {
	info, err := os.Stat(u.cfg.Path)
	if err != nil {
		return "", 0, fmt.Errorf("stat readme: %w", err)
	}
	data, err := os.ReadFile(u.cfg.Path)
	if err != nil {
		return "", 0, fmt.Errorf("read readme: %w", err)
	}
	return string(data), info.Mode().Perm(), nil
}

// summaryLink points at the summary next to the report, relative to the
// document when possible.
func (u *Updater) summaryLink() string {
	summary := filepath.Join(filepath.Dir(u.cfg.ReportPath), report.SummaryFile)
	if rel, err := filepath.Rel(filepath.Dir(u.cfg.Path), summary); err == nil {
		summary = rel
	}
	return filepath.ToSlash(summary)
}

// Inspect reports marker presence and ordering in doc.
func Inspect(doc string) Validation {
	start := strings.Index(doc, StartMarker)
	v := Validation{
		HasStart: start >= 0,
		HasEnd:   strings.Contains(doc, EndMarker),
	}
	if v.HasStart {
		v.Ordered = strings.Contains(doc[start+len(StartMarker):], EndMarker)
	}
	return v
}

// Replace swaps the text between the first start marker and the end marker
// that follows it for block. Both markers are kept.
func Replace(doc, block string) (string, error) {
	start := strings.Index(doc, StartMarker)
	if start < 0 {
		return "", ErrMissingMarkers
	}
	bodyStart := start + len(StartMarker)
	end := strings.Index(doc[bodyStart:], EndMarker)
	if end < 0 {
		return "", ErrMissingMarkers
	}
	var b bytes.Buffer
	b.Grow(len(doc) + len(block))
	b.WriteString(doc[:bodyStart])
	b.WriteString(block)
	b.WriteString(doc[bodyStart+end:])
	return b.String(), nil
}

// Render builds the generated block for rep. It depends only on its inputs.
func Render(rep report.Report, summaryLink string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n**Last run:** %s UTC\n\n", rep.ExecutedAt.UTC().Format("02/01/2006 15:04"))
	b.WriteString(report.StatsTable(rep.Stats))
	if summaryLink != "" {
		fmt.Fprintf(&b, "\n[Full report](%s)\n", summaryLink)
	}
	return b.String()
}
