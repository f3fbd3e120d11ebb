package report

import (
	"fmt"
	"strconv"
	"strings"
)

const timeLayout = "02/01/2006 15:04"

// RenderSummary renders the human-readable Markdown summary of rep. The output
// depends only on rep.
func RenderSummary(rep Report) string {
	var b strings.Builder
	st := rep.Stats
	executed := rep.ExecutedAt.UTC()

	fmt.Fprintf(&b, "# Weekly capture - %s\n\n", executed.Format(timeLayout))
	b.WriteString("## Statistics\n\n")
	b.WriteString(StatsTable(st))

	b.WriteString("\n## Successful captures\n\n")
	if len(rep.Successes) == 0 {
		b.WriteString("_None._\n\n")
	}
	for _, c := range rep.Successes {
		fmt.Fprintf(&b, "- **%s** - %sMB  \n", c.Filename, formatFloat(c.SizeMB))
		fmt.Fprintf(&b, "  `%s`\n\n", c.URL)
	}

	if len(rep.Failures) > 0 {
		b.WriteString("## Failed captures\n\n")
		for _, f := range rep.Failures {
			fmt.Fprintf(&b, "- **%s** - %s  \n", f.Filename, oneLine(f.Error))
			fmt.Fprintf(&b, "  `%s`\n\n", f.URL)
		}
	}

	b.WriteString("---\n")
	fmt.Fprintf(&b, "**Generated**: %s UTC  \n", executed.Format("02/01/2006 15:04:05"))
	if rep.RunID != "" {
		fmt.Fprintf(&b, "**Run**: `%s`  \n", rep.RunID)
	}
	fmt.Fprintf(&b, "**Folder**: `%s`\n", rep.Week)
	return b.String()
}

// StatsTable renders the aggregate statistics as a Markdown table.
func StatsTable(st Stats) string {
	var b strings.Builder
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| **Total URLs** | %d |\n", st.TotalURLs)
	fmt.Fprintf(&b, "| **Succeeded** | %d |\n", st.Succeeded)
	fmt.Fprintf(&b, "| **Failed** | %d |\n", st.Failed)
	fmt.Fprintf(&b, "| **Success rate** | %.1f%% |\n", st.SuccessRate())
	fmt.Fprintf(&b, "| **Elapsed** | %ss |\n", formatFloat(st.ElapsedSeconds))
	fmt.Fprintf(&b, "| **Total size** | %s MB |\n", formatFloat(st.TotalMB))
	fmt.Fprintf(&b, "| **Average per page** | %s MB |\n", formatFloat(st.AverageMB))
	return b.String()
}

// formatFloat prints an already rounded value without trailing zeros.
func formatFloat(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', -1, 64)
}

// oneLine keeps multi-line tool errors from breaking the Markdown list.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
