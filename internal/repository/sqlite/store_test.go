package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories"
	versionRepo "github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories/versioning"
)

type testStore struct {
	families versionRepo.FamilyRepository
	entities versionRepo.EntityRepository
	tx       repositories.TransactionManager
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(context.Background(), db))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testStore{
		families: NewFamilyRepository(db, logger),
		entities: NewEntityRepository(db, logger),
		tx:       NewTransactionManager(db, logger),
	}
}

func ptr[T any](v T) *T { return &v }

func (s *testStore) createFamily(t *testing.T, name string) *models.Family {
	t.Helper()
	f := &models.Family{Name: ptr(name), OwnerID: "owner"}
	require.NoError(t, s.families.Create(context.Background(), f))
	return f
}

func (s *testStore) createEntity(t *testing.T, familyID *string, version *int, parentID *string) *models.Entity {
	t.Helper()
	e := &models.Entity{
		Kind:          "asset",
		OwnerID:       "owner",
		Name:          "img",
		Metadata:      models.Metadata{"width": models.IntValue(512)},
		FamilyID:      familyID,
		VersionNumber: version,
		ParentID:      parentID,
	}
	require.NoError(t, s.entities.Create(context.Background(), e))
	return e
}

func TestEntity_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fam := s.createFamily(t, "cats")
	e := s.createEntity(t, &fam.ID, ptr(1), nil)

	got, err := s.entities.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, fam.ID, *got.FamilyID)
	assert.Equal(t, 1, *got.VersionNumber)
	assert.Nil(t, got.ParentID)
	width, ok := got.Metadata["width"].AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(512), width)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.entities.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestEntity_DuplicateVersionIsVersionConflict(t *testing.T) {
	s := newTestStore(t)

	fam := s.createFamily(t, "cats")
	s.createEntity(t, &fam.ID, ptr(1), nil)

	dup := &models.Entity{Kind: "asset", OwnerID: "owner", FamilyID: &fam.ID, VersionNumber: ptr(1)}
	err := s.entities.Create(context.Background(), dup)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVersionConflict))
	var conflict *domain.VersionConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, fam.ID, conflict.FamilyID)
	assert.Equal(t, 1, conflict.VersionNumber)
}

func TestEntity_StandaloneEntitiesDoNotCollide(t *testing.T) {
	s := newTestStore(t)

	// The partial index ignores rows without a family
	s.createEntity(t, nil, nil, nil)
	s.createEntity(t, nil, nil, nil)
}

func TestEntity_CheckConstraints(t *testing.T) {
	s := newTestStore(t)
	fam := s.createFamily(t, "cats")

	tests := []struct {
		name    string
		family  *string
		version *int
	}{
		{name: "version without family", version: ptr(1)},
		{name: "family without version", family: &fam.ID},
		{name: "zero version", family: &fam.ID, version: ptr(0)},
		{name: "negative version", family: &fam.ID, version: ptr(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &models.Entity{Kind: "asset", OwnerID: "owner", FamilyID: tt.family, VersionNumber: tt.version}
			err := s.entities.Create(context.Background(), e)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
		})
	}
}

func TestEntity_DeleteNullsReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fam := s.createFamily(t, "cats")
	parent := s.createEntity(t, &fam.ID, ptr(1), nil)
	child := s.createEntity(t, &fam.ID, ptr(2), &parent.ID)
	require.NoError(t, s.families.SetHead(ctx, fam.ID, &parent.ID))

	require.NoError(t, s.entities.Delete(ctx, parent.ID))

	gotChild, err := s.entities.GetByID(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, gotChild.ParentID, "child parent_id should be nulled")

	gotFam, err := s.families.GetByID(ctx, fam.ID)
	require.NoError(t, err)
	assert.Nil(t, gotFam.HeadID, "head_id should be nulled")
}

func TestFamily_DerivedCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fam := s.createFamily(t, "cats")
	got, err := s.families.GetByID(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.VersionCount)
	assert.Nil(t, got.LatestVersionNumber)

	s.createEntity(t, &fam.ID, ptr(1), nil)
	s.createEntity(t, &fam.ID, ptr(4), nil)

	got, err = s.families.GetByID(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.VersionCount)
	require.NotNil(t, got.LatestVersionNumber)
	assert.Equal(t, 4, *got.LatestVersionNumber)

	list, err := s.families.ListByOwner(ctx, "owner", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].VersionCount)
}

func TestFamily_LockRequiresTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fam := s.createFamily(t, "cats")

	_, err := s.families.GetForUpdate(ctx, fam.ID)
	assert.Error(t, err)

	err = s.tx.ExecTx(ctx, func(txCtx context.Context) error {
		locked, err := s.families.GetForUpdate(txCtx, fam.ID)
		if err != nil {
			return err
		}
		return s.families.SetLastAllocated(txCtx, locked.ID, 3)
	})
	require.NoError(t, err)

	got, err := s.families.GetByID(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.LastAllocatedVersion)
}

func TestEntity_RowLocksRequireTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fam := s.createFamily(t, "cats")
	parent := s.createEntity(t, &fam.ID, ptr(1), nil)

	assert.Error(t, s.entities.LockMembers(ctx, fam.ID))
	assert.Error(t, s.entities.LockChildren(ctx, parent.ID))

	err := s.tx.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.entities.LockMembers(txCtx, fam.ID); err != nil {
			return err
		}
		return s.entities.LockChildren(txCtx, parent.ID)
	})
	assert.NoError(t, err)
}

func TestFamily_SetLastAllocatedNeverDecreases(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fam := s.createFamily(t, "cats")

	require.NoError(t, s.families.SetLastAllocated(ctx, fam.ID, 5))
	require.NoError(t, s.families.SetLastAllocated(ctx, fam.ID, 2))

	got, err := s.families.GetByID(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.LastAllocatedVersion)
}

func TestTransaction_RollbackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var famID string
	boom := errors.New("boom")
	err := s.tx.ExecTx(ctx, func(txCtx context.Context) error {
		f := &models.Family{OwnerID: "owner"}
		if err := s.families.Create(txCtx, f); err != nil {
			return err
		}
		famID = f.ID
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.families.GetByID(ctx, famID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestTransaction_NestedCallsJoin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.tx.ExecTx(ctx, func(outer context.Context) error {
		assert.True(t, s.tx.InTransaction(outer))
		// Would block forever on the single connection if it opened a new transaction
		return s.tx.ExecTx(outer, func(inner context.Context) error {
			f := &models.Family{OwnerID: "owner"}
			return s.families.Create(inner, f)
		})
	})
	require.NoError(t, err)

	list, err := s.families.ListByOwner(ctx, "owner", 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEntity_DetachFamily(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fam := s.createFamily(t, "cats")
	a := s.createEntity(t, &fam.ID, ptr(1), nil)
	s.createEntity(t, &fam.ID, ptr(2), &a.ID)

	n, err := s.entities.DetachFamily(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, s.families.Delete(ctx, fam.ID))

	got, err := s.entities.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FamilyID)
	assert.Nil(t, got.VersionNumber)
}

func TestEntity_AncestryAndDescendants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root := s.createEntity(t, nil, nil, nil)
	mid := s.createEntity(t, nil, nil, &root.ID)
	leaf := s.createEntity(t, nil, nil, &mid.ID)
	sibling := s.createEntity(t, nil, nil, &root.ID)

	ancestry, err := s.entities.GetAncestry(ctx, leaf.ID, 100)
	require.NoError(t, err)
	require.Len(t, ancestry, 2)
	assert.Equal(t, mid.ID, ancestry[0].ID)
	assert.Equal(t, root.ID, ancestry[1].ID)

	descendants, err := s.entities.GetDescendants(ctx, root.ID, 100)
	require.NoError(t, err)
	require.Len(t, descendants, 3)
	assert.ElementsMatch(t, []string{mid.ID, sibling.ID}, []string{descendants[0].ID, descendants[1].ID})
	assert.Equal(t, leaf.ID, descendants[2].ID)

	limited, err := s.entities.GetAncestry(ctx, leaf.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.entities.GetAncestry(ctx, root.ID, 100)
	require.NoError(t, err)
	assert.Empty(t, none)
}
