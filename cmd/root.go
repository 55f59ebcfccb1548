package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	verbose    bool
}

func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "imagereview",
		Short: "Review spreadsheet rows with AI-generated image descriptions",
		Long: `imagereview loads a spreadsheet of places, describes each row's image with a
vision model, and lets a reviewer page, filter and flag rows for export.

Model responses are cached by image URL, so reloading a sheet only calls the
model for images it has not seen before.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if flags.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      level,
				TimeFormat: "15:04:05",
			})))
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (.yaml, .yml or .toml)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newAnalyzeCmd(flags))
	cmd.AddCommand(newExportCmd(flags))
	cmd.AddCommand(newCacheCmd(flags))

	return cmd
}
