package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/magnetlab/magnetlab/internal/config"
	"github.com/magnetlab/magnetlab/internal/connectors"
	"github.com/magnetlab/magnetlab/internal/crypto"
	httpapp "github.com/magnetlab/magnetlab/internal/http"
	"github.com/magnetlab/magnetlab/internal/metrics"
	"github.com/magnetlab/magnetlab/internal/store/postgres"
	syncpkg "github.com/magnetlab/magnetlab/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, lead capture, and metrics listener.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if len(cfg.EncryptionKey) == 0 {
		return errors.New("ENCRYPTION_KEY is required to store provider credentials")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	aead, err := crypto.NewAESGCM(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("initializing credential cipher: %w", err)
	}
	st := postgres.NewPostgresStore(pool, aead)

	reg, err := connectors.NewDefaultRegistry()
	if err != nil {
		return err
	}
	syncer := syncpkg.NewLeadSyncer(st, cfg.SyncWorkers)

	srv, err := httpapp.NewEchoServer(cfg, st, syncer, reg)
	if err != nil {
		return err
	}

	metricsSrv, metricsErr := metrics.StartServer(ctx, cfg.MetricsAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// metricsErr is nil when the listener is disabled; a nil channel
		// never fires.
		select {
		case <-gctx.Done():
		case err := <-metricsErr:
			return fmt.Errorf("metrics listener: %w", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown failed", "err", err)
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}
