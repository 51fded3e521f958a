/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_scheduler/internal/config"
	"github.com/friendsincode/grimnir_scheduler/internal/db"
	"github.com/friendsincode/grimnir_scheduler/internal/events"
	"github.com/friendsincode/grimnir_scheduler/internal/logging"
	"github.com/friendsincode/grimnir_scheduler/internal/playlist"
	"github.com/friendsincode/grimnir_scheduler/internal/schedule"
	"github.com/friendsincode/grimnir_scheduler/internal/scheduler"
	"github.com/friendsincode/grimnir_scheduler/internal/server"
	"github.com/friendsincode/grimnir_scheduler/internal/telemetry"
	"github.com/friendsincode/grimnir_scheduler/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "grimnirsched",
	Short:         "Grimnir Scheduler - playlist schedule service",
	Long:          "Grimnir Scheduler books playlists onto a shared broadcast timeline and guarantees that no two bookings overlap.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version.Current().String(),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler HTTP server",
	Long:  "Start the HTTP API, remote call boundary and event forwarding.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("version", version.Current().String()).Msg("Grimnir Scheduler starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "grimnir-scheduler",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := srv.HTTPServer()
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		logger.Info().Msg("shutting down gracefully...")
	case runErr = <-serveErr:
		logger.Error().Err(runErr).Msg("http server error")
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("Grimnir Scheduler stopped")
	return runErr
}

// openScheduler connects to the database and builds a scheduling engine
// for one-shot operator commands. The returned func closes the connection.
func openScheduler() (*scheduler.Service, *playlist.GormProvider, func(), error) {
	database, err := db.Connect(cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(database); err != nil {
			logger.Warn().Err(err).Msg("close database")
		}
	}
	if err := db.Migrate(database); err != nil {
		closeDB()
		return nil, nil, nil, err
	}

	provider := playlist.NewGormProvider(database)
	svc := scheduler.New(schedule.NewGormStore(database, logger), scheduler.UUIDGenerator{}, nil, events.NewBus(), logger)
	svc.SetPlaylists(provider)
	return svc, provider, closeDB, nil
}
