package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	apperrors "github.com/shwndea/automated-padc-processor/internal/errors"
	"github.com/shwndea/automated-padc-processor/internal/operations"
	"github.com/shwndea/automated-padc-processor/internal/services"
)

// Build metadata, set via -ldflags.
var (
	version   = "dev"
	buildTime = ""
)

const defaultBatchDir = "batch"

type globalOptions struct {
	sheet   string
	verbose bool
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "ada-audit",
		Short: "Average daily attendance audit",
		Long: `ada-audit reads a monthly attendance summary export, finds where each
program's rows start and stop, and consolidates attendance by month and age band.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.sheet, "sheet", "", "input worksheet (default: first sheet)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		newRunCmd(opts),
		newMonthsCmd(opts),
		newBoundariesCmd(opts),
		newSheetsCmd(opts),
		newBatchCmd(opts),
		newProfilesCmd(opts),
	)
	return root
}

func versionString() string {
	if buildTime == "" {
		return version
	}
	return version + " (" + buildTime + ")"
}

type runOptions struct {
	output    string
	textOut   string
	csvOut    string
	overrides []string
	profile   string
	noWrite   bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Audit a workbook and write the reconciliation workbook",
		Long: `Audit a workbook end to end. Without a file the newest export in the
downloads directory is used. Overrides apply after the profile, so a flag
always wins over a saved span.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOverrideFlags(opts.overrides)
			if err != nil {
				return err
			}
			e, err := newEnv(cmd.Context(), g, "")
			if err != nil {
				return err
			}
			defer e.Close()
			return runAudit(cmd.Context(), cmd.OutOrStdout(), e, firstArg(args), opts, overrides)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "reconciliation workbook in the reports directory")
	cmd.Flags().StringVar(&opts.textOut, "text", "", "also write the plain text listing to this file")
	cmd.Flags().StringVar(&opts.csvOut, "csv", "", "also write the dashboard CSV to this file")
	cmd.Flags().StringArrayVar(&opts.overrides, "override", nil, "replace a program span, CODE=start,stop (repeatable)")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "apply a saved boundary profile before running")
	cmd.Flags().BoolVar(&opts.noWrite, "no-write", false, "skip the reconciliation workbook")
	return cmd
}

type override struct {
	code     string
	boundary attendance.Boundary
}

// parseOverrideFlags reads CODE=start,stop values. Either end may be "none".
func parseOverrideFlags(values []string) ([]override, error) {
	out := make([]override, 0, len(values))
	for _, v := range values {
		code, span, ok := strings.Cut(v, "=")
		code = strings.TrimSpace(code)
		if !ok || code == "" {
			return nil, fmt.Errorf("invalid --override %q: want CODE=start,stop", v)
		}
		b, err := attendance.ParseOverride(span)
		if err != nil {
			return nil, fmt.Errorf("invalid --override %q: %w", v, err)
		}
		out = append(out, override{code: code, boundary: b})
	}
	return out, nil
}

// loadWorkbook loads input and, when the requested worksheet is missing, names
// the ones the workbook does have.
func loadWorkbook(ctx context.Context, e *env, input string) (services.BoundariesView, error) {
	view, err := e.audit.Load(ctx, input)
	if err == nil || e.cfg.Audit.InputSheet == "" || !apperrors.IsType(err, apperrors.ErrTypeNotFound) {
		return view, err
	}
	names, serr := e.audit.Sheets(ctx, input)
	if serr != nil || len(names) == 0 {
		return view, err
	}
	return view, fmt.Errorf("%w (available sheets: %s)", err, strings.Join(names, ", "))
}

func runAudit(ctx context.Context, w io.Writer, e *env, input string, opts *runOptions, overrides []override) error {
	view, err := loadWorkbook(ctx, e, input)
	if err != nil {
		return err
	}
	if opts.profile != "" {
		if view, err = e.profiles.Apply(ctx, opts.profile); err != nil {
			return err
		}
	}
	for _, o := range overrides {
		if view, err = e.audit.Override(o.code, o.boundary); err != nil {
			return err
		}
	}
	fmt.Fprint(w, view.String())

	run, err := e.audit.Run(ctx)
	if err != nil {
		return err
	}
	results, err := e.audit.Results()
	if err != nil {
		return err
	}
	printResults(w, run.ID, results)

	for _, out := range []struct{ path, format string }{
		{opts.textOut, services.FormatText},
		{opts.csvOut, services.FormatCSV},
	} {
		if out.path == "" {
			continue
		}
		if err := exportFile(e.audit, out.path, out.format); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", out.path)
	}

	if opts.noWrite {
		return nil
	}
	res, err := e.audit.Write(ctx, opts.output)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s (%s: %d cells, %d appended)\n", res.Path, res.Worksheet, res.Written, res.Appended)
	return nil
}

func exportFile(audit *services.AuditService, path, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := audit.Export(f, format); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", format, err)
	}
	return f.Close()
}

func printResults(w io.Writer, runID string, r services.ResultsView) {
	fmt.Fprintf(w, "\nrun %s, months %v", runID, r.Months)
	if r.CacheHit {
		fmt.Fprint(w, " (cached)")
	}
	fmt.Fprintln(w)

	labels := make([]string, 0, len(r.Values))
	for label := range r.Values {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, label := range labels {
		fmt.Fprintf(tw, "  %s\t%g\n", label, r.Values[label])
	}
	tw.Flush()

	for _, b := range r.Breakdowns {
		fmt.Fprintf(w, "  %s\n", b)
	}
	fmt.Fprintf(w, "total %g\n", r.Total)
}

func newMonthsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "months [file]",
		Short: "Report which months a workbook contains",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd.Context(), g, "")
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := loadWorkbook(cmd.Context(), e, firstArg(args)); err != nil {
				return err
			}
			rep, err := e.audit.Months()
			if err != nil {
				return err
			}
			printMonths(cmd.OutOrStdout(), rep)
			return nil
		},
	}
}

func printMonths(w io.Writer, rep attendance.MonthReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tROWS\tSUM\tMEAN\tMEDIAN\tMAX\tSAMPLE")
	for _, m := range rep.Available {
		s := rep.Stats[m]
		row := rep.Samples[m]
		fmt.Fprintf(tw, "%d\t%d\t%g\t%.2f\t%g\t%g\trow %d %s %s\n",
			m, rep.RowCounts[m], s.Sum, s.Mean, s.Median, s.Max, row.Row, row.Program, row.AgeBand)
	}
	tw.Flush()
	if len(rep.Unavailable) > 0 {
		fmt.Fprintf(w, "missing months: %v\n", rep.Unavailable)
	}
	if rep.Recommendation != "" {
		fmt.Fprintln(w, rep.Recommendation)
	}
}

func newBoundariesCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "boundaries [file]",
		Short: "Show the detected start and stop row of every program",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd.Context(), g, "")
			if err != nil {
				return err
			}
			defer e.Close()

			view, err := loadWorkbook(cmd.Context(), e, firstArg(args))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), view.String())
			return nil
		},
	}
}

func newSheetsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sheets [file]",
		Short: "List the worksheets of a workbook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, g, func(e *env) error {
				names, err := e.audit.Sheets(cmd.Context(), firstArg(args))
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}

func newBatchCmd(g *globalOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "batch <files...>",
		Short: "Audit several workbooks concurrently",
		Long: `Audit every workbook with detected boundaries. Each one gets a text
listing and a dashboard CSV in --dir, resolved under the reports directory
when relative.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd.Context(), g, dir)
			if err != nil {
				return err
			}
			defer e.Close()

			results, err := e.audit.Batch(cmd.Context(), args)
			if err != nil {
				return err
			}
			failed := printBatch(cmd.OutOrStdout(), results)
			if failed > 0 {
				return fmt.Errorf("%d of %d workbooks failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", defaultBatchDir, "report directory")
	return cmd
}

func printBatch(w io.Writer, results []operations.BatchResult) int {
	failed := 0
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATUS\tTOTAL\tDURATION\tERROR")
	for _, r := range results {
		total := "-"
		if r.Err == nil && r.Audit != nil && r.Audit.Computed() {
			total = fmt.Sprintf("%g", r.Audit.Consolidated.Values.Total())
		} else {
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Path, r.Status, total, r.Duration.Round(time.Millisecond), r.Error)
	}
	tw.Flush()
	return failed
}

func newProfilesCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage saved boundary profiles",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved profiles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEnv(cmd, g, func(e *env) error {
					list, err := e.profiles.List(cmd.Context())
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tCREATED\tPROGRAMS\tDESCRIPTION")
					for _, p := range list {
						fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.Name, p.CreatedDate, len(p.Boundaries), p.Description)
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Print a profile as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEnv(cmd, g, func(e *env) error {
					p, err := e.profiles.Get(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(p)
				})
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEnv(cmd, g, func(e *env) error {
					if err := e.profiles.Delete(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}

func withEnv(cmd *cobra.Command, g *globalOptions, fn func(e *env) error) error {
	e, err := newEnv(cmd.Context(), g, "")
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
