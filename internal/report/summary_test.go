package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/weekly-snapshots/internal/snapshot"
)

func TestRenderSummaryListsEverything(t *testing.T) {
	t.Parallel()

	rep := Build([]snapshot.Result{
		snapshot.Succeeded(job("alpha"), 1536*1024, ""),
		snapshot.Failed(job("broken"), "exit status 1:\nnavigation failed"),
	}, 3*time.Second, testMeta)

	md := RenderSummary(rep)

	assert.True(t, strings.HasPrefix(md, "# Weekly capture - 06/03/2024 14:30\n"))
	assert.Contains(t, md, "## Statistics")
	assert.Contains(t, md, "| **Total URLs** | 2 |")
	assert.Contains(t, md, "| **Success rate** | 50.0% |")
	assert.Contains(t, md, "| **Elapsed** | 3s |")
	assert.Contains(t, md, "## Successful captures")
	assert.Contains(t, md, "- **alpha** - 1.5MB")
	assert.Contains(t, md, "`https://alpha.example.com`")
	assert.Contains(t, md, "## Failed captures")
	assert.Contains(t, md, "- **broken** - exit status 1: navigation failed")
	assert.Contains(t, md, "**Folder**: `semana_2024-03-04`")
}

func TestRenderSummaryOmitsEmptyFailures(t *testing.T) {
	t.Parallel()

	rep := Build([]snapshot.Result{snapshot.Succeeded(job("a"), 4000, "")}, time.Second, testMeta)
	md := RenderSummary(rep)
	assert.NotContains(t, md, "## Failed captures")
	assert.Equal(t, md, RenderSummary(rep))
}

func TestFormatFloat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0", formatFloat(0))
	assert.Equal(t, "1.5", formatFloat(1.5))
	assert.Equal(t, "10", formatFloat(10))
	assert.Equal(t, "0", formatFloat(0.001))
	assert.Equal(t, "12.34", formatFloat(12.344))
}
