package snapshot

import (
	"context"
	"io"
	"time"
)

// Capturer captures one job and classifies the outcome. Implementations must
// not return an error for per-job failures; those are carried in the Result.
type Capturer interface {
	Capture(ctx context.Context, job Job) Result
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes run notifications, tagged with an event name, to Pub/Sub
// (or similar) and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}

// Hasher computes digests for archive integrity.
type Hasher interface {
	HashReader(r io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
