package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lehigh-university-libraries/imagereview/internal/export"
	"github.com/lehigh-university-libraries/imagereview/internal/review"
	"github.com/spf13/cobra"
)

func newExportCmd(flags *globalFlags) *cobra.Command {
	var include []string
	var all bool
	var output string

	cmd := &cobra.Command{
		Use:   "export [source]",
		Short: "Write flagged rows of a spreadsheet to an Excel file",
		Long: `Loads a spreadsheet, flags the rows named by --include (or every row with
--all), and writes them with their image analyses to an Excel workbook.

Rows are named by their ID column value, or by #<position> when the ID is
empty or repeated.`,
		Example: `  # Export three rows
  imagereview export places.xlsx --include 12,40,41 --output flagged.xlsx

  # Export every row of the configured source
  imagereview export --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(include) == 0 && !all {
				return fmt.Errorf("nothing to export: pass --include or --all")
			}

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
			if all {
				for _, row := range ds.Rows {
					_ = session.ToggleIncluded(row.Key, true)
				}
			}
			for _, key := range include {
				if err := session.ToggleIncluded(key, true); err != nil {
					return fmt.Errorf("row %q: %w", key, err)
				}
			}

			flagged := session.Dataset()
			data, err := export.BuildXLSX(flagged.Mapping, flagged.Rows)
			if err != nil {
				return err
			}

			if output == "" {
				output = export.Filename(time.Now())
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			slog.Info("Export written", "file", output, "rows", len(session.Included()))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&include, "include", "i", nil, "Row keys to flag")
	cmd.Flags().BoolVar(&all, "all", false, "Flag every row")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default flagged_rows_<timestamp>.xlsx)")

	return cmd
}
