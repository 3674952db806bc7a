package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"askme/internal/auth"
	"askme/internal/db"
	"askme/internal/handlers"
	"askme/internal/logging"
	"askme/internal/qa"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the schema and serve the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(cfg.DB, log)
	if err != nil {
		return err
	}
	defer store.Close()
	log.WithField("driver", cfg.DB.Driver).Info("connected to database")

	if err := db.Migrate(ctx, store); err != nil {
		return err
	}

	accounts, err := auth.NewManager(store, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("init accounts: %w", err)
	}
	h := handlers.New(qa.NewQuestions(store), qa.NewAnswers(store), accounts, store, log)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.Router(h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
