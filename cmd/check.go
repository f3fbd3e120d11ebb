package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/weekly-snapshots/internal/config"
	"github.com/JakeFAU/weekly-snapshots/internal/storage/postgres"
	"github.com/JakeFAU/weekly-snapshots/internal/worker"
)

const checkTimeout = 15 * time.Second

// Seams for tests.
var (
	lookPath                 = exec.LookPath
	toolRunner worker.Runner = worker.ExecRunner{WaitDelay: time.Second}
)

type checkResult struct {
	name   string
	detail string
	err    error
}

// newCheckCmd creates the 'check' subcommand.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the capture tool, browser, URL list and run history before a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()

			results := []checkResult{
				checkTool(ctx, rt.cfg.Capture.Tool),
				checkBrowser(rt.cfg.Capture.BrowserPath),
				checkURLs(rt.cfg.URLsFile),
			}
			if rt.cfg.DB.DSN != "" {
				results = append(results, checkHistory(ctx, rt.cfg.DB))
			}
			return printChecks(cmd.OutOrStdout(), results)
		},
	}
}

func checkTool(ctx context.Context, tool string) checkResult {
	res := checkResult{name: "tool"}
	path, err := lookPath(tool)
	if err != nil {
		res.err = fmt.Errorf("%s not found in PATH", tool)
		return res
	}
	out, err := toolRunner.Run(ctx, path, []string{"--version"})
	if err != nil {
		res.err = fmt.Errorf("%s --version: %w", tool, err)
		return res
	}
	if out.ExitCode != 0 {
		res.err = fmt.Errorf("%s --version exited with %d: %s", tool, out.ExitCode, worker.Truncate(out.Stderr))
		return res
	}
	res.detail = fmt.Sprintf("%s %s", path, strings.TrimSpace(firstLine(out.Stdout)))
	return res
}

func checkBrowser(path string) checkResult {
	res := checkResult{name: "browser"}
	if path == "" {
		res.detail = "left to the capture tool"
		return res
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		res.err = fmt.Errorf("%s: %w", path, err)
	case info.IsDir():
		res.err = fmt.Errorf("%s is a directory", path)
	default:
		res.detail = path
	}
	return res
}

func checkURLs(path string) checkResult {
	res := checkResult{name: "urls"}
	entries, err := config.LoadURLs(path)
	if err != nil {
		res.err = err
		return res
	}
	res.detail = fmt.Sprintf("%d pages in %s", len(entries), path)
	return res
}

func checkHistory(ctx context.Context, db config.DBConfig) checkResult {
	res := checkResult{name: "history"}
	store, err := postgres.NewRunStore(ctx, postgres.RunStoreConfig{DSN: db.DSN, Table: db.Table, MaxConns: 1})
	if err != nil {
		res.err = err
		return res
	}
	defer store.Close()

	last, err := store.LastRun(ctx)
	switch {
	case errors.Is(err, postgres.ErrNoRuns):
		res.detail = "no recorded runs"
	case err != nil:
		res.err = err
	default:
		res.detail = fmt.Sprintf("last run %s (%s): %d/%d succeeded",
			last.RunID, last.ExecutedAt.UTC().Format(time.RFC3339), last.Succeeded, last.TotalURLs)
	}
	return res
}

func printChecks(w io.Writer, results []checkResult) error {
	var failed []string
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(w, "FAIL %-8s %v\n", r.name, r.err)
			failed = append(failed, r.name)
			continue
		}
		fmt.Fprintf(w, "ok   %-8s %s\n", r.name, r.detail)
	}
	if len(failed) > 0 {
		return fmt.Errorf("checks failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
