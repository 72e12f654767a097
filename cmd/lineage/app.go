package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Sakenfor/pixsim7-sub004/internal/config"
	versionSvc "github.com/Sakenfor/pixsim7-sub004/internal/domain/services/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/kinds"
	"github.com/Sakenfor/pixsim7-sub004/internal/metrics"
	"github.com/Sakenfor/pixsim7-sub004/internal/repository"
	serviceVersioning "github.com/Sakenfor/pixsim7-sub004/internal/service/versioning"
)

// app holds what every subcommand needs. It is built lazily so that
// `lineage --help` works without a database.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *repository.Store
	ownerID string
	out     io.Writer

	families  versionSvc.FamilyService
	entities  versionSvc.EntityService
	allocator versionSvc.VersionAllocator
}

func newApp(ctx context.Context, ownerID string, out io.Writer) (*app, error) {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if ownerID == "" {
		ownerID = cfg.DevOwnerID
	}

	// CLI output goes to stdout, so logs go to stderr
	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	registry, err := kinds.NewRegistry()
	if err != nil {
		store.Close()
		return nil, err
	}

	// Metrics are not exported from the CLI; a private registry keeps the
	// services' counters working without touching the default one
	m := metrics.NewMetrics(prometheus.NewRegistry())

	retryConfig := serviceVersioning.DefaultRetryConfig()
	retryConfig.MaxRetries = cfg.AllocationMaxRetries
	retryConfig.MaxElapsed = cfg.AllocationRetryMaxElapsed

	families := serviceVersioning.NewFamilyService(store.Families, store.Entities, store.TxManager, m, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		ownerID:   ownerID,
		out:       out,
		families:  families,
		entities:  serviceVersioning.NewEntityService(store.Entities, store.Families, families, store.TxManager, m, logger),
		allocator: serviceVersioning.NewVersionAllocator(store.Families, store.Entities, store.TxManager, registry, retryConfig, m, logger),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}

// printJSON writes v as indented JSON
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withApp wraps a subcommand body with app setup and teardown
func withApp(owner *string, fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, *owner, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, args)
	}
}
