package cmd

import (
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/imagereview/internal/analysis"
	"github.com/spf13/cobra"
)

func newCacheCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the analysis cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached image URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer store.Close()

			keys, err := store.Keys(cmd.Context())
			if err != nil {
				return err
			}
			for _, url := range keys {
				text, _, err := store.Get(cmd.Context(), url)
				if err != nil {
					return err
				}
				status := "ok"
				if analysis.IsFailure(text) {
					status = "failed"
				} else if _, ok := analysis.Parse(text); !ok {
					status = "unparsed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", status, url)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge-failures",
		Short: "Remove cached failure placeholders so those images are retried",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer store.Close()

			keys, err := store.Keys(cmd.Context())
			if err != nil {
				return err
			}
			purged := 0
			for _, url := range keys {
				text, ok, err := store.Get(cmd.Context(), url)
				if err != nil {
					return err
				}
				if !ok || !analysis.IsFailure(text) {
					continue
				}
				if err := store.Delete(cmd.Context(), url); err != nil {
					return err
				}
				purged++
			}
			slog.Info("Purged cached failures", "count", purged, "remaining", len(keys)-purged)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <image-url>...",
		Short: "Remove cached analyses for the given image URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, url := range args {
				if err := store.Delete(cmd.Context(), url); err != nil {
					return fmt.Errorf("failed to delete %s: %w", url, err)
				}
				slog.Info("Deleted cached analysis", "url", url)
			}
			return nil
		},
	})

	return cmd
}
