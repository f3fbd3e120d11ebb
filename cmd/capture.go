package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/weekly-snapshots/internal/app"
	"github.com/JakeFAU/weekly-snapshots/internal/config"
	"github.com/JakeFAU/weekly-snapshots/internal/report"
)

// captureApp is the part of *app.App the capture command drives.
type captureApp interface {
	Capture(ctx context.Context, poolSize int) (report.Report, error)
	Close(ctx context.Context) error
}

// newApp is the application factory. It's a variable so tests can swap in
// scripted dependencies.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (captureApp, error) {
	return app.New(ctx, cfg, logger)
}

// newCaptureCmd creates the 'capture' subcommand.
func newCaptureCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture every configured page into this week's folder",
		Long: `Captures every URL in the URL list with a bounded pool of workers, then
writes report.json and summary.md into the weekly folder and the latest folder.
Per-page failures are recorded in the report and do not fail the command.`,
		Args: cobra.NoArgs,
		RunE: runCaptureCommand,
	}
	cmd.Flags().Int("max-workers", 2,
		fmt.Sprintf("number of concurrent captures (%d-%d)", config.MinWorkers, config.MaxWorkers))
	bindFlag(v, "capture.max_workers", cmd, "max-workers")
	return cmd
}

func runCaptureCommand(cmd *cobra.Command, _ []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	instance, err := newApp(ctx, rt.cfg, rt.logger)
	if err != nil {
		fmt.Fprintf(out, "capture aborted: %v\n", err)
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := instance.Close(closeCtx); cerr != nil {
			rt.logger.Warn("failed to close services", zap.Error(cerr))
		}
	}()

	rep, err := instance.Capture(ctx, rt.cfg.Capture.MaxWorkers)
	if err != nil {
		fmt.Fprintf(out, "capture aborted: %v\n", err)
		return err
	}
	fmt.Fprintln(out, summaryLine(rep, rt.cfg.Output.BaseDir))
	return nil
}

// summaryLine is the single line printed after every completed run.
func summaryLine(rep report.Report, baseDir string) string {
	st := rep.Stats
	return fmt.Sprintf("captured %d/%d pages (%d failed, %.2f MB) in %.1fs -> %s",
		st.Succeeded, st.TotalURLs, st.Failed, st.TotalMB, st.ElapsedSeconds,
		filepath.Join(baseDir, rep.Week))
}
