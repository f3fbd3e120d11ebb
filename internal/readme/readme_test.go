package readme

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/weekly-snapshots/internal/report"
	"github.com/JakeFAU/weekly-snapshots/internal/snapshot"
)

const template = "# Weekly snapshots\n\nIntro.\n\n" + StartMarker + "\n_pending_\n" + EndMarker + "\n\nFooter.\n"

type fixture struct {
	dir     string
	updater *Updater
	readme  string
	report  string
}

func newFixture(t *testing.T, doc string, withReport bool) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:    dir,
		readme: filepath.Join(dir, "README.md"),
		report: filepath.Join(dir, "capturas", "latest", report.ReportFile),
	}
	require.NoError(t, os.WriteFile(f.readme, []byte(doc), 0o644))
	if withReport {
		rep := report.Build([]snapshot.Result{
			snapshot.Succeeded(snapshot.Job{URL: "https://a.example", Filename: "a"}, 1024*1024, ""),
			snapshot.Failed(snapshot.Job{URL: "https://b.example", Filename: "b"}, "timeout"),
		}, 42*time.Second, report.Meta{
			ExecutedAt: time.Date(2024, 3, 6, 14, 30, 0, 0, time.UTC),
			Week:       "semana_2024-03-04",
		})
		data, err := report.Marshal(rep)
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(filepath.Dir(f.report), 0o755))
		require.NoError(t, os.WriteFile(f.report, data, 0o644))
	}
	f.updater = New(Config{Path: f.readme, ReportPath: f.report}, zap.NewNop())
	return f
}

func (f fixture) read(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.readme)
	require.NoError(t, err)
	return string(data)
}

func TestUpdateReplacesBlock(t *testing.T) {
	t.Parallel()

	f := newFixture(t, template, true)
	res, err := f.updater.Update(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Stats.Succeeded)

	got := f.read(t)
	assert.NotContains(t, got, "_pending_")
	assert.Contains(t, got, "**Last run:** 06/03/2024 14:30 UTC")
	assert.Contains(t, got, "| **Total URLs** | 2 |")
	assert.Contains(t, got, "| **Success rate** | 50.0% |")
	assert.Contains(t, got, "[Full report](capturas/latest/summary.md)")
	assert.Contains(t, got, "# Weekly snapshots\n\nIntro.\n\n"+StartMarker)
	assert.Contains(t, got, EndMarker+"\n\nFooter.\n")
}

func TestUpdateIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, template, true)
	_, err := f.updater.Update(context.Background())
	require.NoError(t, err)
	first := f.read(t)

	res, err := f.updater.Update(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, first, f.read(t))
}

func TestUpdateWithoutReport(t *testing.T) {
	t.Parallel()

	f := newFixture(t, template, false)
	_, err := f.updater.Update(context.Background())
	require.ErrorIs(t, err, ErrNoReport)
	assert.Equal(t, template, f.read(t))
}

func TestUpdateMissingMarkersLeavesDocument(t *testing.T) {
	t.Parallel()

	docs := map[string]string{
		"no markers":       "# Title\n\nNothing here.\n",
		"only start":       "# Title\n" + StartMarker + "\n",
		"only end":         "# Title\n" + EndMarker + "\n",
		"end before start": "# Title\n" + EndMarker + "\nbody\n" + StartMarker + "\n",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, doc, true)
			_, err := f.updater.Update(context.Background())
			require.ErrorIs(t, err, ErrMissingMarkers)
			assert.Equal(t, doc, f.read(t))
		})
	}
}

func TestUpdateMissingDocument(t *testing.T) {
	t.Parallel()

	f := newFixture(t, template, true)
	require.NoError(t, os.Remove(f.readme))
	_, err := f.updater.Update(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoReport)
}

func TestUpdateKeepsFileMode(t *testing.T) {
	t.Parallel()

	f := newFixture(t, template, true)
	require.NoError(t, os.Chmod(f.readme, 0o640))
	_, err := f.updater.Update(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(f.readme)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, template, false)
	v, err := f.updater.Validate()
	require.NoError(t, err)
	assert.True(t, v.OK())

	bad := newFixture(t, EndMarker+"\n"+StartMarker, false)
	v, err = bad.updater.Validate()
	require.NoError(t, err)
	assert.True(t, v.HasStart)
	assert.True(t, v.HasEnd)
	assert.False(t, v.Ordered)
	assert.False(t, v.OK())
	assert.Equal(t, EndMarker+"\n"+StartMarker, bad.read(t))
}

func TestReplaceUsesFirstPair(t *testing.T) {
	t.Parallel()

	doc := "a" + StartMarker + "x" + EndMarker + "b" + StartMarker + "y" + EndMarker
	got, err := Replace(doc, "NEW")
	require.NoError(t, err)
	assert.Equal(t, "a"+StartMarker+"NEW"+EndMarker+"b"+StartMarker+"y"+EndMarker, got)
}
