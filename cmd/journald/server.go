package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-journal-backend/internal/analyzer"
	"github.com/tbourn/go-journal-backend/internal/config"
	httpapi "github.com/tbourn/go-journal-backend/internal/http"
	"github.com/tbourn/go-journal-backend/internal/http/middleware"
	"github.com/tbourn/go-journal-backend/internal/observability"
	"github.com/tbourn/go-journal-backend/internal/repo"
	"github.com/tbourn/go-journal-backend/internal/services"
	"github.com/tbourn/go-journal-backend/internal/sysutil"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the journal HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Str("db", cfg.DBPath).Msg("journald starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrating store: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	entries := services.NewEntryService(db)
	analyses := services.NewAnalysisService(db)
	projection := services.NewProjectionService(db)

	coord := buildCoordinator(cfg, analyses)

	// Requeue attempts orphaned by a crash or restart. Records stuck in
	// progress past the stale cutoff go back through the queue with their
	// attempt counter intact.
	var reconciler *cron.Cron
	if coord != nil {
		reconciler = cron.New()
		_, err := reconciler.AddFunc("@every 5m", func() {
			reconcileStale(ctx, cfg, entries, analyses, coord)
		})
		if err != nil {
			return fmt.Errorf("scheduling reconciler: %w", err)
		}
		reconciler.Start()
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:          db,
		Entries:     entries,
		Analyses:    analyses,
		Projection:  projection,
		Coordinator: coord,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	if reconciler != nil {
		<-reconciler.Stop().Done()
	}
	if coord != nil && !coord.WaitIdle(10*time.Second) {
		log.Warn().Int("queued", coord.QueueLen()).Msg("analysis queue not drained before shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return otelShutdown(shutdownCtx)
}

// buildCoordinator wires the background analysis pipeline. It returns nil
// when analysis is disabled: no health profile configured, the profile file
// is unreadable, or no analyzer API key is set.
func buildCoordinator(cfg config.Config, analyses *services.AnalysisService) *services.Coordinator {
	if cfg.HealthContextPath == "" {
		log.Info().Msg("no health profile configured, analysis disabled")
		return nil
	}
	profile, err := sysutil.ReadTextFile(cfg.HealthContextPath)
	if err != nil || profile == "" {
		log.Warn().Err(err).Str("path", cfg.HealthContextPath).Msg("health profile unavailable, analysis disabled")
		return nil
	}

	az, err := analyzer.NewAnthropicClient(cfg.Analyzer.Endpoint, cfg.Analyzer.APIKey, cfg.Analyzer.Model, cfg.Analyzer.Timeout)
	if err != nil {
		log.Warn().Err(err).Msg("analyzer unavailable, analysis disabled")
		return nil
	}

	coord := services.NewCoordinator(analyses, az, services.StaticHealthContext(profile), services.CoordinatorConfig{
		MaxRetries:       cfg.Coordinator.MaxRetries,
		RetryBase:        cfg.Coordinator.RetryBase,
		InterItemDelay:   cfg.Coordinator.InterItemDelay,
		MinAnalyzeLength: cfg.Coordinator.MinAnalyzeLength,
	})
	coord.SetListener(func(ev services.Event) {
		switch ev.Type {
		case services.EventCompleted:
			middleware.ObserveAnalysisOutcome("completed")
			middleware.ObserveAnalysisDuration(ev.Duration)
			log.Info().Int64("entryID", ev.EntryID).Int("attempt", ev.Attempt).Dur("took", ev.Duration).Msg("analysis completed")
		case services.EventFailed:
			middleware.ObserveAnalysisOutcome("failed")
			log.Error().Int64("entryID", ev.EntryID).Int("attempt", ev.Attempt).Str("error", ev.Err).Msg("analysis failed")
		case services.EventRetrying:
			middleware.ObserveAnalysisOutcome("retrying")
			log.Warn().Int64("entryID", ev.EntryID).Int("attempt", ev.Attempt).Dur("delay", ev.Delay).Str("error", ev.Err).Msg("analysis retrying")
		case services.EventSkipped:
			middleware.ObserveAnalysisOutcome("skipped")
			log.Debug().Int64("entryID", ev.EntryID).Str("reason", ev.Reason).Msg("analysis skipped")
		case services.EventScheduled:
			log.Debug().Int64("entryID", ev.EntryID).Int("queuePos", ev.QueuePos).Msg("analysis scheduled")
		}
		middleware.SetAnalysisQueueDepth(coord.QueueLen())
	})
	return coord
}

// reconcileStale requeues in-progress analyses that have sat past the stale
// cutoff. Records whose entry has since been deleted are dropped instead.
func reconcileStale(ctx context.Context, cfg config.Config, entries *services.EntryService, analyses *services.AnalysisService, coord *services.Coordinator) {
	stale, err := analyses.ListStale(ctx, cfg.Coordinator.StaleAfter)
	if err != nil {
		log.Error().Err(err).Msg("stale analysis scan failed")
		return
	}
	for _, a := range stale {
		e, err := entries.Get(ctx, a.EntryID)
		if err != nil {
			log.Warn().Int64("entryID", a.EntryID).Msg("dropping orphaned analysis attempt")
			_ = analyses.Delete(ctx, a.EntryID)
			continue
		}
		log.Info().Int64("entryID", a.EntryID).Int("attempts", a.Attempts).Msg("requeueing stale analysis")
		coord.ScheduleRetry(e, a.Attempts)
	}
}
