// Package main provides the entrypoint for the sgweather daemon.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sgweather/sgweather/internal/catalog"
	"github.com/sgweather/sgweather/internal/config"
	"github.com/sgweather/sgweather/internal/coordinator"
	"github.com/sgweather/sgweather/internal/entity"
	"github.com/sgweather/sgweather/internal/nea"
	"github.com/sgweather/sgweather/internal/ops"
	"github.com/sgweather/sgweather/internal/snapshot"
	"github.com/sgweather/sgweather/internal/telemetry"
	"github.com/sgweather/sgweather/internal/weather"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg := config.FromEnv()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting sgweather daemon")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	cat, err := catalog.Load(catalog.Config{MaxDistanceKm: cfg.MaxStationKm})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load station catalog")
	}
	log.Info().Int("areas", len(cat.Areas())).Msg("catalog loaded")

	client := nea.NewClient(nea.ClientConfig{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.FetchTimeout,
	})
	radar := nea.NewRadarClient(nea.RadarClientConfig{
		BaseURL: cfg.RadarBaseURL,
		Timeout: cfg.FetchTimeout,
	})

	store := snapshot.NewStore(snapshot.StoreConfig{Logger: log})

	specs := coordinator.DefaultSourceSpecs()
	aggregator := weather.NewAggregator(weather.AggregatorConfig{
		Resolver:       cat,
		Logger:         log,
		Intervals:      coordinator.Intervals(specs),
		MaxRadarFrames: cfg.MaxRadarFrames,
		RainStations:   cat.StationIDs(),
		Policy: weather.AggregatePolicy{
			FreshnessMultiplier: cfg.FreshnessMultiplier,
			RegionCondition:     weather.RegionConditionRule(cfg.RegionRollup),
		},
	})

	coord, err := coordinator.New(coordinator.Config{
		Sources:      specs,
		BackoffBase:  cfg.BackoffBase,
		BackoffMax:   cfg.BackoffMax,
		FetchTimeout: cfg.FetchTimeout,
		Logger:       log,
	}, client, radar, aggregator, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create coordinator")
	}

	groups := make([]entity.Group, 0, len(cfg.EntityGroups))
	for _, g := range cfg.EntityGroups {
		groups = append(groups, entity.Group(g))
	}
	syncer := entity.NewSyncer(entity.SyncerConfig{
		Groups: groups,
		Logger: log,
	}, entity.LogRegistrar{Logger: log})

	events, unsubscribe := store.Subscribe()
	defer unsubscribe()
	go func() {
		if runErr := syncer.Run(ctx, events); runErr != nil && ctx.Err() == nil {
			log.Error().Err(runErr).Msg("entity syncer stopped")
		}
	}()

	// Bootstrap: run one cycle up front so the first snapshot does not wait
	// a full tick.
	if err := coord.RunCycle(ctx); err != nil {
		log.Warn().Err(err).Msg("bootstrap cycle incomplete, retrying on schedule")
	}

	scheduler := coordinator.NewScheduler(coord, cfg.CycleInterval, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start refresh scheduler")
	}
	log.Info().Dur("interval", cfg.CycleInterval).Msg("refresh scheduler started")

	server := &http.Server{
		Addr:         cfg.OpsAddr,
		Handler:      ops.NewRouter(ops.RouterConfig{Version: Version, Logger: log, RateLimit: cfg.OpsRateLimit}, store, coord),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.OpsAddr).Msg("ops server listening")
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Error().Err(serveErr).Msg("ops server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	scheduler.Stop()
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server forced to shutdown")
	}

	log.Info().Msg("stopped")
}
