package versioning

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories"
	versionSvc "github.com/Sakenfor/pixsim7-sub004/internal/domain/services/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/kinds"
	"github.com/Sakenfor/pixsim7-sub004/internal/metrics"
	"github.com/Sakenfor/pixsim7-sub004/internal/repository/sqlite"
)

const testOwner = "owner-1"

type testEnv struct {
	families  versionSvc.FamilyService
	entities  versionSvc.EntityService
	allocator versionSvc.VersionAllocator
	metrics   *metrics.Metrics
	tx        repositories.TransactionManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(context.Background(), db))

	registry, err := kinds.NewRegistry()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMetrics(prometheus.NewRegistry())

	familyRepo := sqlite.NewFamilyRepository(db, logger)
	entityRepo := sqlite.NewEntityRepository(db, logger)
	txManager := sqlite.NewTransactionManager(db, logger)

	retryConfig := DefaultRetryConfig()
	retryConfig.InitialInterval = 0

	familySvc := NewFamilyService(familyRepo, entityRepo, txManager, m, logger)
	return &testEnv{
		families:  familySvc,
		entities:  NewEntityService(entityRepo, familyRepo, familySvc, txManager, m, logger),
		allocator: NewVersionAllocator(familyRepo, entityRepo, txManager, registry, retryConfig, m, logger),
		metrics:   m,
		tx:        txManager,
	}
}

func ptr[T any](v T) *T { return &v }

// standalone creates an entity outside any family
func (e *testEnv) standalone(t *testing.T, name string) *models.Entity {
	t.Helper()
	res, err := e.allocator.CreateEntity(context.Background(), &versionSvc.CreateEntityRequest{
		OwnerID: testOwner,
		Intent:  models.IntentNew,
		Kind:    "asset",
		Name:    name,
	})
	require.NoError(t, err)
	return res.Entity
}

// version creates a new version derived from sourceID
func (e *testEnv) version(t *testing.T, sourceID string, advanceHead bool) *versionSvc.CreateEntityResult {
	t.Helper()
	res, err := e.allocator.CreateEntity(context.Background(), &versionSvc.CreateEntityRequest{
		OwnerID:     testOwner,
		Intent:      models.IntentVersion,
		SourceIDs:   []string{sourceID},
		Kind:        "asset",
		Name:        "edit",
		AdvanceHead: advanceHead,
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) timelineVersions(t *testing.T, familyID string) []int {
	t.Helper()
	timeline, err := e.families.GetTimeline(context.Background(), testOwner, familyID)
	require.NoError(t, err)
	versions := make([]int, 0, len(timeline))
	for _, entity := range timeline {
		versions = append(versions, *entity.VersionNumber)
	}
	return versions
}
