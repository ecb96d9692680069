package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/j-veylop/policy-analytics-tui/internal/config"
	"github.com/j-veylop/policy-analytics-tui/internal/logger"
	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/services"
	"github.com/j-veylop/policy-analytics-tui/internal/services/query"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/components"
	"github.com/j-veylop/policy-analytics-tui/internal/version"
)

// withManager loads configuration, logs to stderr and hands a manager to fn.
func withManager(fn func(*services.Manager) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Configure(os.Stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	// Desktop alerts are for the dashboard only.
	cfg.NotifyAnomalies = false

	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			logger.Warn("error closing services", "error", closeErr)
		}
	}()
	return fn(mgr)
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>...",
		Short: "Import weekly snapshot CSV files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *services.Manager) error {
				failed := 0
				for _, path := range args {
					report, err := mgr.ImportFile(path)
					if err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
						continue
					}
					printImportReport(cmd.OutOrStdout(), path, report.Skipped,
						report.Batch.RowCount, len(report.Rejected), len(report.Warnings))
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d imports failed", failed, len(args))
				}
				return nil
			})
		},
	}
}

func printImportReport(w io.Writer, path string, skipped bool, rows, rejected, warnings int) {
	if skipped {
		fmt.Fprintf(w, "%s: unchanged, skipped\n", path)
		return
	}
	fmt.Fprintf(w, "%s: %d rows imported, %d rejected, %d warnings\n", path, rows, rejected, warnings)
}

type analyzeOptions struct {
	groupBy []string
	filters []string
	limit   int
	json    bool
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Aggregate records by dimensions and derive ratios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := query.ParseFilterArgs(opts.filters)
			if err != nil {
				return err
			}
			groupBy, err := query.ParseGroupBy(opts.groupBy)
			if err != nil {
				return err
			}
			return withManager(func(mgr *services.Manager) error {
				results, err := mgr.Analyze(cmd.Context(), filters, groupBy, opts.limit)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), results)
				}
				return writeResults(cmd.OutOrStdout(), results)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&opts.groupBy, "group-by", "g", nil, "dimensions to group by, e.g. third_level_organization,is_new_energy_vehicle")
	cmd.Flags().StringArrayVarP(&opts.filters, "filter", "f", nil, "filter as field=v1,v2 (repeatable)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "maximum number of groups (0 uses ANALYZE_LIMIT)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print results as JSON")
	return cmd
}

type queryOptions struct {
	filters  []string
	sort     string
	page     int
	pageSize int
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List matching records as JSON, one page at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := query.ParseFilterArgs(opts.filters)
			if err != nil {
				return err
			}
			sort, err := query.ParseSort(opts.sort)
			if err != nil {
				return err
			}
			return withManager(func(mgr *services.Manager) error {
				page, err := mgr.Query(cmd.Context(), filters, sort, opts.page, opts.pageSize)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), page)
			})
		},
	}
	cmd.Flags().StringArrayVarP(&opts.filters, "filter", "f", nil, "filter as field=v1,v2 (repeatable)")
	cmd.Flags().StringVarP(&opts.sort, "sort", "s", "", "sort as field[:asc|desc]")
	cmd.Flags().IntVarP(&opts.page, "page", "p", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "records per page (0 uses PAGE_SIZE)")
	return cmd
}

func newClearCmd() *cobra.Command {
	var importID string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete imported records, all of them or one import batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(func(mgr *services.Manager) error {
				if importID != "" {
					if err := mgr.DeleteImport(importID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Import %s deleted\n", importID)
					return nil
				}
				if err := mgr.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Dataset cleared")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&importID, "import", "", "delete only this import batch (see \"policydash imports\")")
	return cmd
}

func newImportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "imports",
		Short: "List import batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(func(mgr *services.Manager) error {
				batches, err := mgr.Imports()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tIMPORTED\tROWS\tREJECTED\tSOURCE")
				for _, b := range batches {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
						b.ID, b.ImportedAt.Format("2006-01-02 15:04"), b.RowCount, b.RejectedCount, b.SourcePath)
				}
				return tw.Flush()
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeResults prints one line per group with its key ratios.
func writeResults(w io.Writer, results []models.MetricResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tPREMIUM\tPOLICIES\tLOSS\tEXPENSE\tCOMBINED\tSCORE\tFLAGS")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%.0f\t%s\t%s\t%s\t%d\t%s\n",
			r.Dimensions.Label(),
			components.FormatAmount(r.Totals.Get(models.MeasureSignedPremium)),
			r.Totals.Get(models.MeasurePolicyCount),
			components.FormatPercent(r.Metrics.MaturedLossRatio),
			components.FormatPercent(r.Metrics.ExpenseRatio),
			components.FormatPercent(r.Metrics.CombinedRatio),
			r.QualityScore,
			strings.Join(r.Anomalies, "; "),
		)
	}
	return tw.Flush()
}
