package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/witnz/landledger/internal/alert"
	"github.com/witnz/landledger/internal/config"
	"github.com/witnz/landledger/internal/events"
	"github.com/witnz/landledger/internal/hash"
	"github.com/witnz/landledger/internal/ledger"
	"github.com/witnz/landledger/internal/registry"
	"github.com/witnz/landledger/internal/storage"
)

// app is the wired set of components shared by serve and session.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *registry.Registry
	alerts    *alert.Manager
	publisher events.Publisher
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	alg, err := hash.ParseAlgorithm(cfg.Ledger.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	l, err := ledger.New(
		ledger.WithAlgorithm(alg),
		ledger.WithGenesisMarker(cfg.Ledger.GenesisMarker),
		ledger.WithIndexedFields(cfg.Ledger.IndexedFields...),
		ledger.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	alerts := alert.NewManager(cfg.Alerts.Enabled, cfg.Alerts.SlackWebhook)
	publisher := events.NewPublisher(cfg.Events.Brokers)

	reg := registry.New(l, registry.Options{
		UniqueLandIDs: cfg.Registry.UniqueLandIDs,
		Publisher:     publisher,
		Alerter:       alerts,
		Topic:         cfg.Events.Topic,
		Logger:        logger,
	})

	logger.Info("Ledger ready",
		"algorithm", alg,
		"indexed_fields", cfg.Ledger.IndexedFields,
		"unique_land_ids", cfg.Registry.UniqueLandIDs,
		"alerts", alerts.Enabled(),
		"event_brokers", len(cfg.Events.Brokers))

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  reg,
		alerts:    alerts,
		publisher: publisher,
	}, nil
}

// exportSnapshot writes the ledger to path as a bbolt snapshot.
func (a *app) exportSnapshot(path string) (storage.SnapshotMetadata, error) {
	store, err := storage.New(path)
	if err != nil {
		return storage.SnapshotMetadata{}, err
	}
	defer store.Close()

	meta, err := store.Export(a.registry.Ledger(), time.Now())
	if err != nil {
		return meta, fmt.Errorf("failed to export snapshot: %w", err)
	}
	a.logger.Info("Snapshot exported",
		"path", path,
		"records", meta.Length,
		"merkle_root", meta.MerkleRoot)
	return meta, nil
}

func (a *app) close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("Failed to close event publisher", "error", err)
	}
}
