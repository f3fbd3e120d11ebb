package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekLabelUsesMonday(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Time{
		"monday":    time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		"wednesday": time.Date(2024, 3, 6, 14, 30, 0, 0, time.UTC),
		"sunday":    time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC),
	}
	for name, ts := range cases {
		assert.Equal(t, "semana_2024-03-04", WeekLabel("semana_", ts), name)
	}
	assert.Equal(t, "2024-02-26", WeekLabel("", time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "w2023-12-25", WeekLabel("w", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)))
}

func TestResultConstructors(t *testing.T) {
	t.Parallel()

	job := Job{URL: "https://a.example", Filename: "a"}
	ok := Succeeded(job, 4096, "ff")
	assert.True(t, ok.OK())
	assert.Equal(t, int64(4096), ok.Bytes)
	assert.Empty(t, ok.Error)

	bad := Failed(job, "timeout")
	assert.False(t, bad.OK())
	assert.Equal(t, "timeout", bad.Error)
	assert.Zero(t, bad.Bytes)
}

func TestOutcomeCounts(t *testing.T) {
	t.Parallel()

	job := Job{URL: "https://a.example", Filename: "a"}
	out := Outcome{Results: []Result{Succeeded(job, 1, ""), Failed(job, "x"), Succeeded(job, 2, "")}}
	assert.Equal(t, 2, out.Succeeded())
	assert.Equal(t, 1, out.Failed())
	assert.Zero(t, Outcome{}.Failed())
}

func TestRunContextDirs(t *testing.T) {
	t.Parallel()

	rc := RunContext{BaseDir: "capturas", Week: "semana_2024-03-04", LatestName: "latest"}
	assert.Equal(t, filepath.Join("capturas", "semana_2024-03-04"), rc.WeekDir())
	assert.Equal(t, filepath.Join("capturas", "latest"), rc.LatestDir())
}
