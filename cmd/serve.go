package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lehigh-university-libraries/imagereview/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the review API server",
		Long: `Starts the imagereview JSON API.

Clients create a review session by uploading a spreadsheet (or naming a
path or URL), then page, filter and flag rows and download the flagged
rows as an Excel workbook.`,
		Example: `  # Start server on the configured port (default 8888)
  imagereview serve

  # Start server on custom port with a config file
  imagereview serve --port 3000 --config review.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer p.Close()

			if cmd.Flags().Changed("port") {
				p.cfg.Server.Port = port
			}

			handler := handlers.New(handlers.Options{
				Loader:        p.loader,
				Opener:        p.opener,
				Mapping:       p.cfg.Columns,
				DefaultSource: p.cfg.Source.URL,
			})

			// Set up routes
			mux := http.NewServeMux()
			handler.Register(mux)
			mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + strconv.Itoa(p.cfg.Server.Port)
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Review API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped", "stats", p.analyzer.Stats())
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8888, "Port to listen on (overrides server.port)")

	return cmd
}
