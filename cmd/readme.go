package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/weekly-snapshots/internal/readme"
)

// newReadmeCmd creates the 'readme' subcommand.
func newReadmeCmd() *cobra.Command {
	var validate bool
	cmd := &cobra.Command{
		Use:   "readme",
		Short: "Refresh the README statistics block from the latest report",
		Long: `Replaces the text between the report markers of the README with the
statistics of the latest report. A missing report is reported but is not an
error; missing markers are.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			u := readme.New(readme.Config{
				Path:       rt.cfg.Readme.Path,
				ReportPath: rt.cfg.Readme.ReportPath,
			}, rt.logger.Named("readme"))
			out := cmd.OutOrStdout()

			if validate {
				v, err := u.Validate()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "start marker: %s\n", mark(v.HasStart))
				fmt.Fprintf(out, "end marker:   %s\n", mark(v.HasEnd && v.Ordered))
				if !v.OK() {
					fmt.Fprintf(out, "add these lines to %s:\n  %s\n  %s\n", rt.cfg.Readme.Path, readme.StartMarker, readme.EndMarker)
					return readme.ErrMissingMarkers
				}
				return nil
			}

			res, err := u.Update(cmd.Context())
			switch {
			case errors.Is(err, readme.ErrNoReport):
				fmt.Fprintf(out, "no report to publish yet (%s)\n", rt.cfg.Readme.ReportPath)
				return nil
			case err != nil:
				return err
			case !res.Changed:
				fmt.Fprintf(out, "%s already up to date\n", rt.cfg.Readme.Path)
			default:
				fmt.Fprintf(out, "%s updated: %d/%d succeeded\n", rt.cfg.Readme.Path, res.Stats.Succeeded, res.Stats.TotalURLs)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "only check that the README carries the report markers")
	return cmd
}

func mark(ok bool) string {
	if ok {
		return "ok"
	}
	return "missing"
}
