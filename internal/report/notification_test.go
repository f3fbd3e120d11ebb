package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/weekly-snapshots/internal/snapshot"
)

func TestNewNotification(t *testing.T) {
	t.Parallel()

	rep := Build([]snapshot.Result{
		snapshot.Succeeded(job("a"), 4096, ""),
		snapshot.Failed(job("c"), "timeout"),
		snapshot.Failed(job("b"), "output not created"),
	}, time.Second, testMeta)

	n := NewNotification(rep, []string{"file:///tmp/report.json"})
	assert.Equal(t, "run-1", n.RunID)
	assert.Equal(t, "semana_2024-03-04", n.Week)
	assert.Equal(t, []string{"b", "c"}, n.Failed)
	assert.Equal(t, 1, n.Stats.Succeeded)
	assert.Equal(t, []string{"file:///tmp/report.json"}, n.ReportURIs)
}
