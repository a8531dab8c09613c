package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/katalog/internal/backup"
	"github.com/dukerupert/katalog/internal/metrics"
	"github.com/dukerupert/katalog/internal/push"
	"github.com/dukerupert/katalog/internal/server"
	"github.com/spf13/cobra"
)

func serveCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), e)
		},
	}
	cmd.Flags().String("port", "", "HTTP port")
	_ = e.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

func exportConfig(e *env) backup.Config {
	return backup.Config{
		S3: backup.S3Config{
			Endpoint:  e.cfg.S3.Endpoint,
			Bucket:    e.cfg.S3.Bucket,
			Region:    e.cfg.S3.Region,
			AccessKey: e.cfg.S3.AccessKey,
			SecretKey: e.cfg.S3.SecretKey,
		},
		Passphrase:    e.cfg.Export.Passphrase,
		Interval:      e.cfg.Export.Interval,
		RetentionDays: e.cfg.Export.RetentionDays,
	}
}

func serve(ctx context.Context, e *env) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := e.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	srv, err := server.New(db, m, server.Options{
		SessionTTL:     e.cfg.SessionTTL,
		AllowedOrigins: e.cfg.AllowedOrigins,
		LoginRateLimit: e.cfg.LoginRateLimit,
		Push: push.Config{
			VAPIDPublicKey:  e.cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: e.cfg.Push.VAPIDPrivateKey,
			Subscriber:      e.cfg.Push.Subscriber,
		},
		Export: exportConfig(e),
	}, e.logger)
	if err != nil {
		return err
	}
	srv.Start(ctx)
	defer srv.Stop()

	httpServer := &http.Server{
		Addr:        ":" + e.cfg.Port,
		Handler:     srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("katalog running", "addr", httpServer.Addr, "base_url", e.cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	e.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
