package cmd

import (
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/imagereview/internal/report"
	"github.com/lehigh-university-libraries/imagereview/internal/review"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(flags *globalFlags) *cobra.Command {
	var filter []string
	var page int

	cmd := &cobra.Command{
		Use:   "analyze [source]",
		Short: "Analyze a spreadsheet and print a page of results",
		Long: `Loads a spreadsheet (xlsx, csv or parquet) from a path or URL, analyzes the
image of each of its first 50 rows, and prints one page of the results as a
Markdown table. Analyses are written to the cache, so this also warms the
cache for the review server.`,
		Example: `  # Analyze the configured source
  imagereview analyze

  # Analyze a local file and show only signboards
  imagereview analyze places.xlsx --filter signboard`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer p.Close()

			source, err := p.source(args)
			if err != nil {
				return err
			}

			table, err := p.opener.Open(cmd.Context(), source)
			if err != nil {
				return fmt.Errorf("failed to read source: %w", err)
			}

			ds, err := p.loader.LoadAndValidate(cmd.Context(), source, table, p.cfg.Columns, nil)
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}

			session := review.NewSession(ds)
			session.SetFilter(filter)
			session.SetPage(page - 1)

			stats := p.analyzer.Stats()
			slog.Info("Dataset analyzed",
				"rows", len(ds.Rows),
				"cache_hits", stats.CacheHits,
				"external_calls", stats.ExternalCalls,
				"failures", stats.Failures)

			return report.WriteMarkdown(cmd.OutOrStdout(), report.Summary{
				Source:     source,
				SourceRows: ds.SourceRows,
				Page:       session.Page(),
				TotalPages: session.TotalPages(),
				Filter:     session.Filter(),
				Stats:      stats,
				Rows:       session.VisibleRows(),
			})
		},
	}

	cmd.Flags().StringSliceVarP(&filter, "filter", "f", nil, "Only show rows tagged with any of these types (plate, signboard, other)")
	cmd.Flags().IntVar(&page, "page", 1, "Page to print, starting at 1")

	return cmd
}
