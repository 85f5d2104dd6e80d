package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"homeworth/server/internal/api"
	"homeworth/server/internal/processor"
	"homeworth/server/internal/queue"
	"homeworth/server/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP API and the background ingest pipeline.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	gin.SetMode(cfg.Server.GinMode)

	urlQueue := queue.NewURLQueue(cfg.Ingest.QueueSize, a.logger)
	batchProcessor := processor.NewBatchProcessor(a.ingestor, urlQueue, cfg.Ingest.ProcessorCount, a.logger)
	batchProcessor.Start()
	urlQueue.Start()

	refresh := scheduler.NewScheduler(a.db, urlQueue, cfg.Ingest.RefreshInterval, cfg.Ingest.BatchSize, cfg.Ingest.RefreshOnStartup, a.logger)
	refresh.Start()

	handler := api.NewHandler(a.db, a.orchestrator, urlQueue, cfg.Ingest.BatchSize, a.logger)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins, a.metrics, a.logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	err = serveHTTP(cmd.Context(), srv, a.logger)

	// Stop producers before the consumer so no batch lands on a closed queue
	refresh.Stop()
	batchProcessor.Stop()
	if err := urlQueue.Close(); err != nil {
		a.logger.WithError(err).Error("Failed to close ingest queue")
	}

	return err
}

// serveHTTP runs srv until ctx is done or the listener fails, then shuts it down.
// A listener failure is returned.
func serveHTTP(ctx context.Context, srv *http.Server, logger *logrus.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case runErr = <-serveErr:
		if runErr != nil {
			logger.WithError(runErr).Error("Server failed")
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	return runErr
}
