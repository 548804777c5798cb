package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/kongrag/internal/transport/chi"
	healthuc "github.com/kailas-cloud/kongrag/internal/usecase/health"
	"github.com/kailas-cloud/kongrag/internal/version"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve /v1/retrieve and /v1/ask over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

// serve runs the HTTP API until ctx is cancelled, then shuts down gracefully.
func (c *cli) serve(ctx context.Context) error {
	c.logger.Info("Starting kongrag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", c.env),
		zap.Int("http_port", c.cfg.HTTP.Port),
		zap.String("db_driver", c.cfg.Database.Driver),
		zap.String("table", c.cfg.Store.Table),
	)

	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder := c.newEmbedder()
	model := c.newChatModel()
	healthSvc := healthuc.New(store, embedder, model)
	server := chiTransport.NewServer(c.newRAG(store, embedder, model), healthSvc, c.logger).
		WithSeparator(c.cfg.RAG.Separator)

	addr := fmt.Sprintf(":%d", c.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(c.cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(c.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(c.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(c.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		c.logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	c.logger.Info("Server stopped gracefully")
	return nil
}
