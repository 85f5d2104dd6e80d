package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"homeworth/server/config"
	"homeworth/server/internal/census"
	"homeworth/server/internal/database"
	"homeworth/server/internal/geocoding"
	"homeworth/server/internal/lookup"
	"homeworth/server/internal/metrics"
	"homeworth/server/internal/scraping"
	"homeworth/server/internal/source"
	"homeworth/server/internal/telegram"
	"homeworth/server/internal/valuation"
)

// app holds the components shared by every subcommand
type app struct {
	cfg          *config.Config
	logger       *logrus.Logger
	db           *database.Database
	metrics      *metrics.LookupMetrics
	orchestrator *lookup.Orchestrator
	ingestor     *lookup.Ingestor
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg)

	db, err := database.NewDatabase(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.NewLookupMetrics(registry)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	var fetcher source.Fetcher
	if cfg.Valuation.Mode == "demo" {
		logger.Warn("Valuation source running in demo mode, estimates are placeholders")
		fetcher = valuation.NewDemoClient(0)
	} else {
		fetcher = valuation.NewClient(cfg.Valuation, logger)
	}

	var sources []lookup.ContextSource
	if cfg.Census.Enabled {
		sources = append(sources, census.NewClient(cfg.Census, logger))
	}
	if cfg.Geocoder.Enabled {
		sources = append(sources, geocoding.NewGeocoder(cfg.Geocoder, logger))
	}

	scraper := scraping.NewScraper(cfg.Scraper, logger)
	notifier := telegram.NewService(cfg.Telegram, logger)

	return &app{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		metrics:      m,
		orchestrator: lookup.NewOrchestrator(db, fetcher, m, logger),
		ingestor:     lookup.NewIngestor(db, scraper, sources, notifier, m, logger),
	}, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, falling back to info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Failed to close database")
	}
}
