package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/JakeFAU/weekly-snapshots/internal/snapshot"
)

// Destination is a named blob store that receives every report copy.
type Destination struct {
	Name  string
	Store snapshot.BlobStore
}

// Writer persists the report and summary into the dated folder and the
// latest folder of each destination.
type Writer struct {
	latest       string
	destinations []Destination
	logger       *zap.Logger
}

// NewWriter builds a Writer. latest is the folder name of the latest pointer.
func NewWriter(latest string, logger *zap.Logger, destinations ...Destination) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		latest:       latest,
		destinations: append([]Destination(nil), destinations...),
		logger:       logger,
	}
}

// Write attempts every (destination, folder, file) combination even when some
// fail. It returns the URIs written and the joined errors of failed writes.
func (w *Writer) Write(ctx context.Context, rep Report) ([]string, error) {
	payload, err := Marshal(rep)
	if err != nil {
		return nil, err
	}
	summary := []byte(RenderSummary(rep))

	files := []struct {
		name        string
		contentType string
		data        []byte
	}{
		{ReportFile, "application/json; charset=utf-8", payload},
		{SummaryFile, "text/markdown; charset=utf-8", summary},
	}

	var (
		uris []string
		errs []error
	)
	for _, dest := range w.destinations {
		for _, folder := range []string{rep.Week, w.latest} {
			for _, f := range files {
				objectPath := path.Join(folder, f.name)
				uri, err := dest.Store.PutObject(ctx, objectPath, f.contentType, bytes.NewReader(f.data))
				if err != nil {
					w.logger.Error("report write failed",
						zap.String("destination", dest.Name),
						zap.String("path", objectPath),
						zap.Error(err),
					)
					errs = append(errs, fmt.Errorf("%s %s: %w", dest.Name, objectPath, err))
					continue
				}
				w.logger.Info("report written", zap.String("destination", dest.Name), zap.String("uri", uri))
				uris = append(uris, uri)
			}
		}
	}
	return uris, errors.Join(errs...)
}
