// Package main is the entry point for the screener.
//
// The screener fetches quarterly fundamentals for a listing universe, projects
// earnings growth, applies a forward P/E and market-cap screen and scores
// governance red flags for the survivors. It runs on a schedule behind an HTTP
// API, or once from the command line with -once.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/di"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/screening"
	"github.com/aristath/screener/internal/server"
	"github.com/aristath/screener/pkg/logger"
	"github.com/rs/zerolog"
)

func main() {
	once := flag.Bool("once", false, "run one screening, print the report as JSON and exit")
	qualifiedOnly := flag.Bool("qualified", false, "with -once, print qualified entities only")
	flag.Parse()

	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// In -once mode stdout carries the report, so logs go to stderr
	logOutput := os.Stdout
	if *once {
		logOutput = os.Stderr
	}
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: logOutput,
	})

	log.Info().Msg("Starting screener")

	container, _, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	if *once {
		if err := runOnce(container, cfg, *qualifiedOnly, log); err != nil {
			log.Error().Err(err).Msg("Screening failed")
			container.Close()
			os.Exit(1)
		}
		return
	}

	srv := server.New(server.Config{
		Log:        log,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		Screening:  container.ScreeningService,
		RunTimeout: time.Duration(cfg.Policy.Pipeline.RunTimeout),
		CacheDB:    container.CacheDB,
		Cache:      cacheCounter(container),
		Jobs:       container.Scheduler,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	container.Scheduler.Start()
	log.Info().
		Int("port", cfg.Port).
		Str("screening_schedule", cfg.Schedules.Screening).
		Str("cleanup_schedule", cfg.Schedules.CacheCleanup).
		Msg("Screener started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down screener")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Waits for a running screening or cleanup job to return
	container.Scheduler.Stop()

	log.Info().Msg("Screener stopped")
}

// runOnce screens the universe once and writes the report to stdout
func runOnce(container *di.Container, cfg *config.Config, qualifiedOnly bool, log zerolog.Logger) error {
	timeout := time.Duration(cfg.Policy.Pipeline.RunTimeout)
	if timeout <= 0 {
		timeout = screening.DefaultRunTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// SIGINT cancels the run; entities not yet screened are reported as canceled
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := container.ScreeningService.Run(ctx)
	if err != nil {
		return err
	}

	if qualifiedOnly {
		filtered := *report
		filtered.Results = report.QualifiedResults()
		report = &filtered
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("universe", report.Universe).
		Int("qualified", report.Qualified).
		Int("excluded", report.Excluded).
		Msg("Screening completed")

	return writeReport(report)
}

func writeReport(report *domain.Report) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// cacheCounter returns nil without a repository so the stats endpoint skips it
func cacheCounter(container *di.Container) server.CacheCounter {
	if container.CacheRepo == nil {
		return nil
	}
	return container.CacheRepo
}
