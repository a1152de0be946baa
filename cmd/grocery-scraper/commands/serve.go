package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/maltedev/grocery-scraper/internal/api"
	"github.com/maltedev/grocery-scraper/internal/jobs"
	"github.com/maltedev/grocery-scraper/internal/parser"
	"github.com/maltedev/grocery-scraper/internal/pipeline"
	"github.com/spf13/cobra"
)

var servePort int

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an HTTP API that starts runs in the background and exposes their results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		collector := jobs.NewCollector()
		s, err := buildStack(ctx, stackOptions{browser: true, sinks: true, extra: []pipeline.Sink{collector}})
		if err != nil {
			return err
		}
		defer s.Close()

		manager := jobs.NewManager(ctx, s.pipeline, collector, jobs.Request{
			StartURL: cfg.Site.CategoriesURL,
			Location: cfg.Site.LocationQuery,
		}, log)

		handlers := api.NewHandlers(manager, parser.NewStateParser(s.adapter.StateMarker()), s.adapter, log)

		server := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      api.NewRouter(handlers, cfg.Server.WriteTimeout),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("starting server", "port", cfg.Server.Port)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		case <-ctx.Done():
		}

		log.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}

		cancel()
		manager.Wait()
		log.Info("server stopped")
		return nil
	},
}
