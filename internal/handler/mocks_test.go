package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
	versionSvc "github.com/Sakenfor/pixsim7-sub004/internal/domain/services/versioning"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockFamilyService struct {
	mock.Mock
}

func (m *MockFamilyService) CreateFamily(ctx context.Context, req *versionSvc.CreateFamilyRequest) (*models.Family, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Family), args.Error(1)
}

func (m *MockFamilyService) GetFamily(ctx context.Context, ownerID, familyID string) (*models.Family, error) {
	args := m.Called(ctx, ownerID, familyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Family), args.Error(1)
}

func (m *MockFamilyService) ListFamilies(ctx context.Context, ownerID string, req *versionSvc.ListFamiliesRequest) ([]models.Family, error) {
	args := m.Called(ctx, ownerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Family), args.Error(1)
}

func (m *MockFamilyService) UpdateFamily(ctx context.Context, ownerID, familyID string, req *versionSvc.UpdateFamilyRequest) (*models.Family, error) {
	args := m.Called(ctx, ownerID, familyID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Family), args.Error(1)
}

func (m *MockFamilyService) SetHead(ctx context.Context, ownerID, familyID, entityID string) (*models.Family, error) {
	args := m.Called(ctx, ownerID, familyID, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Family), args.Error(1)
}

func (m *MockFamilyService) ElectHeadOnRemoval(ctx context.Context, familyID string) (*models.Family, error) {
	args := m.Called(ctx, familyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Family), args.Error(1)
}

func (m *MockFamilyService) DeleteFamily(ctx context.Context, ownerID, familyID string) error {
	args := m.Called(ctx, ownerID, familyID)
	return args.Error(0)
}

func (m *MockFamilyService) GetTimeline(ctx context.Context, ownerID, familyID string) ([]models.Entity, error) {
	args := m.Called(ctx, ownerID, familyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Entity), args.Error(1)
}

type MockEntityService struct {
	mock.Mock
}

func (m *MockEntityService) GetEntity(ctx context.Context, ownerID, entityID string) (*models.Entity, error) {
	args := m.Called(ctx, ownerID, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Entity), args.Error(1)
}

func (m *MockEntityService) DeleteEntity(ctx context.Context, ownerID, entityID string) error {
	args := m.Called(ctx, ownerID, entityID)
	return args.Error(0)
}

func (m *MockEntityService) ReparentEntity(ctx context.Context, ownerID, entityID string, req *versionSvc.ReparentRequest) (*models.Entity, error) {
	args := m.Called(ctx, ownerID, entityID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Entity), args.Error(1)
}

func (m *MockEntityService) GetAncestry(ctx context.Context, ownerID, entityID string) ([]models.Entity, error) {
	args := m.Called(ctx, ownerID, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Entity), args.Error(1)
}

func (m *MockEntityService) GetDescendants(ctx context.Context, ownerID, entityID string) ([]models.Entity, error) {
	args := m.Called(ctx, ownerID, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Entity), args.Error(1)
}

type MockAllocator struct {
	mock.Mock
}

func (m *MockAllocator) ResolveIntent(ctx context.Context, req *versionSvc.ResolveIntentRequest) (*models.VersionContext, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VersionContext), args.Error(1)
}

func (m *MockAllocator) CreateEntity(ctx context.Context, req *versionSvc.CreateEntityRequest) (*versionSvc.CreateEntityResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*versionSvc.CreateEntityResult), args.Error(1)
}

func (m *MockAllocator) Fork(ctx context.Context, req *versionSvc.ForkRequest) (*versionSvc.ForkResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*versionSvc.ForkResult), args.Error(1)
}
