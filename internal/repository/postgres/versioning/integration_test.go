package versioning_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
	versionSvc "github.com/Sakenfor/pixsim7-sub004/internal/domain/services/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/kinds"
	"github.com/Sakenfor/pixsim7-sub004/internal/metrics"
	"github.com/Sakenfor/pixsim7-sub004/internal/repository/postgres"
	pgVersioning "github.com/Sakenfor/pixsim7-sub004/internal/repository/postgres/versioning"
	serviceVersioning "github.com/Sakenfor/pixsim7-sub004/internal/service/versioning"
)

const owner = "pg-owner"

// newPostgresAllocator migrates a throwaway table set and returns services
// over it. Skipped unless POSTGRES_TEST_DSN is set.
func newPostgresAllocator(t *testing.T) (versionSvc.VersionAllocator, versionSvc.FamilyService, versionSvc.EntityService) {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	prefix := "it_" + uuid.NewString()[:8] + "_"
	tables := postgres.NewTableNames(prefix)
	require.NoError(t, postgres.Migrate(ctx, pool, tables, prefix))
	t.Cleanup(func() { _ = postgres.Drop(context.Background(), pool, tables) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &postgres.RepositoryConfig{Pool: pool, Tables: tables, Logger: logger, LockTimeout: 2 * time.Second}
	familyRepo := pgVersioning.NewFamilyRepository(cfg)
	entityRepo := pgVersioning.NewEntityRepository(cfg)
	txManager := postgres.NewTransactionManager(pool, logger)

	registry, err := kinds.NewRegistry()
	require.NoError(t, err)
	m := metrics.NewMetrics(prometheus.NewRegistry())

	families := serviceVersioning.NewFamilyService(familyRepo, entityRepo, txManager, m, logger)
	entities := serviceVersioning.NewEntityService(entityRepo, familyRepo, families, txManager, m, logger)
	allocator := serviceVersioning.NewVersionAllocator(familyRepo, entityRepo, txManager, registry, serviceVersioning.DefaultRetryConfig(), m, logger)
	return allocator, families, entities
}

func TestPostgres_ConcurrentAllocation(t *testing.T) {
	allocator, families, _ := newPostgresAllocator(t)
	ctx := context.Background()

	root, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
		OwnerID: owner, Intent: models.IntentNew, Kind: "asset", Name: "root",
	})
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[int]bool{}
	upgrades := 0
	var familyID string

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
				OwnerID: owner, Intent: models.IntentVersion, SourceIDs: []string{root.Entity.ID}, Kind: "asset",
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[*res.Entity.VersionNumber], "duplicate version %d", *res.Entity.VersionNumber)
			seen[*res.Entity.VersionNumber] = true
			familyID = *res.Entity.FamilyID
			if res.Context.Upgraded {
				upgrades++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, upgrades)
	family, err := families.GetFamily(ctx, owner, familyID)
	require.NoError(t, err)
	assert.Equal(t, workers+1, family.VersionCount)
	assert.Equal(t, workers+1, *family.LatestVersionNumber)
}

func TestPostgres_DeleteHeadAndFamily(t *testing.T) {
	allocator, families, entities := newPostgresAllocator(t)
	ctx := context.Background()

	root, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
		OwnerID: owner, Intent: models.IntentNew, Kind: "asset", Name: "root",
	})
	require.NoError(t, err)
	v2, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
		OwnerID: owner, Intent: models.IntentVersion, SourceIDs: []string{root.Entity.ID}, Kind: "asset", AdvanceHead: true,
	})
	require.NoError(t, err)
	familyID := *v2.Entity.FamilyID

	require.NoError(t, entities.DeleteEntity(ctx, owner, v2.Entity.ID))
	family, err := families.GetFamily(ctx, owner, familyID)
	require.NoError(t, err)
	assert.Equal(t, root.Entity.ID, *family.HeadID)

	v3, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
		OwnerID: owner, Intent: models.IntentVersion, SourceIDs: []string{root.Entity.ID}, Kind: "asset",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, *v3.Entity.VersionNumber, "deleted v2 is not reused")

	require.NoError(t, families.DeleteFamily(ctx, owner, familyID))
	detached, err := entities.GetEntity(ctx, owner, root.Entity.ID)
	require.NoError(t, err)
	assert.False(t, detached.IsVersioned())
}

// Family deletion racing versioning of one of its members must serialise,
// not deadlock.
func TestPostgres_DeleteFamilyWhileVersioning(t *testing.T) {
	allocator, families, _ := newPostgresAllocator(t)
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		root, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
			OwnerID: owner, Intent: models.IntentNew, Kind: "asset", Name: "root",
		})
		require.NoError(t, err)
		v2, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
			OwnerID: owner, Intent: models.IntentVersion, SourceIDs: []string{root.Entity.ID}, Kind: "asset",
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
				OwnerID: owner, Intent: models.IntentVersion, SourceIDs: []string{v2.Entity.ID}, Kind: "asset",
			})
		}()
		go func() {
			defer wg.Done()
			errs[1] = families.DeleteFamily(ctx, owner, *v2.Entity.FamilyID)
		}()
		wg.Wait()

		for _, err := range errs {
			assert.NoError(t, err)
			assert.False(t, errors.Is(err, domain.ErrLockTimeout), "round %d: %v", round, err)
		}
	}
}

// Deleting the HEAD while a child of it is being versioned must not deadlock
// on the parent_id null-out or the head re-election.
func TestPostgres_DeleteHeadWhileVersioningChild(t *testing.T) {
	allocator, _, entities := newPostgresAllocator(t)
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		root, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
			OwnerID: owner, Intent: models.IntentNew, Kind: "asset", Name: "root",
		})
		require.NoError(t, err)
		v2, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
			OwnerID: owner, Intent: models.IntentVersion, SourceIDs: []string{root.Entity.ID}, Kind: "asset", AdvanceHead: true,
		})
		require.NoError(t, err)
		v3, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
			OwnerID: owner, Intent: models.IntentVersion, SourceIDs: []string{v2.Entity.ID}, Kind: "asset",
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
				OwnerID: owner, Intent: models.IntentVersion, SourceIDs: []string{v3.Entity.ID}, Kind: "asset",
			})
		}()
		go func() {
			defer wg.Done()
			errs[1] = entities.DeleteEntity(ctx, owner, v2.Entity.ID)
		}()
		wg.Wait()

		for _, err := range errs {
			assert.NoError(t, err, "round %d", round)
		}
	}
}
