package versioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sakenfor/pixsim7-sub004/internal/config"
	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories"
	versionRepo "github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories/versioning"
	versionSvc "github.com/Sakenfor/pixsim7-sub004/internal/domain/services/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/metrics"
)

// familyService implements the FamilyService interface
type familyService struct {
	familyRepo versionRepo.FamilyRepository
	entityRepo versionRepo.EntityRepository
	txManager  repositories.TransactionManager
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewFamilyService creates a new family service
func NewFamilyService(
	familyRepo versionRepo.FamilyRepository,
	entityRepo versionRepo.EntityRepository,
	txManager repositories.TransactionManager,
	m *metrics.Metrics,
	logger *slog.Logger,
) versionSvc.FamilyService {
	return &familyService{
		familyRepo: familyRepo,
		entityRepo: entityRepo,
		txManager:  txManager,
		metrics:    m,
		logger:     logger,
	}
}

// CreateFamily creates an empty family
func (s *familyService) CreateFamily(ctx context.Context, req *versionSvc.CreateFamilyRequest) (*models.Family, error) {
	name := trimmed(req.Name)
	if err := validateFamilyFields(name, req.Description); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner_id is required", domain.ErrValidation)
	}

	family := &models.Family{
		Name:        name,
		Description: req.Description,
		OwnerID:     req.OwnerID,
	}
	if err := s.familyRepo.Create(ctx, family); err != nil {
		return nil, err
	}

	s.logger.Info("family created",
		"family_id", family.ID,
		"owner_id", family.OwnerID,
	)

	return family, nil
}

// GetFamily retrieves a family with derived counts
func (s *familyService) GetFamily(ctx context.Context, ownerID, familyID string) (*models.Family, error) {
	family, err := s.familyRepo.GetByID(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner("family", familyID, family.OwnerID, ownerID); err != nil {
		return nil, err
	}
	return family, nil
}

// ListFamilies lists the caller's families
func (s *familyService) ListFamilies(ctx context.Context, ownerID string, req *versionSvc.ListFamiliesRequest) ([]models.Family, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = config.DefaultListLimit
	}
	if limit > config.MaxListLimit {
		limit = config.MaxListLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	return s.familyRepo.ListByOwner(ctx, ownerID, limit, offset)
}

// UpdateFamily changes name and/or description
func (s *familyService) UpdateFamily(ctx context.Context, ownerID, familyID string, req *versionSvc.UpdateFamilyRequest) (*models.Family, error) {
	name := trimmed(req.Name)
	if err := validateFamilyFields(name, req.Description.Value); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	family, err := s.GetFamily(ctx, ownerID, familyID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		family.Name = name
	}
	if req.Description.Present {
		family.Description = req.Description.Value
	}

	if err := s.familyRepo.Update(ctx, family); err != nil {
		return nil, err
	}

	s.logger.Info("family updated",
		"family_id", family.ID,
		"owner_id", ownerID,
	)

	return family, nil
}

// SetHead moves HEAD to a member of the family
func (s *familyService) SetHead(ctx context.Context, ownerID, familyID, entityID string) (*models.Family, error) {
	var result *models.Family
	var headVersion int

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		family, err := s.familyRepo.GetForUpdate(txCtx, familyID)
		if err != nil {
			return err
		}
		if err := checkOwner("family", familyID, family.OwnerID, ownerID); err != nil {
			return err
		}

		entity, err := s.entityRepo.GetByID(txCtx, entityID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if entity == nil || entity.FamilyID == nil || *entity.FamilyID != familyID {
			return &domain.InvalidHeadError{FamilyID: familyID, EntityID: entityID}
		}
		headVersion = *entity.VersionNumber

		if err := s.familyRepo.SetHead(txCtx, familyID, &entityID); err != nil {
			return err
		}

		result, err = s.familyRepo.GetByID(txCtx, familyID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("family head set",
		"family_id", familyID,
		"entity_id", entityID,
		"version_number", headVersion,
	)

	return result, nil
}

// ElectHeadOnRemoval picks the highest remaining version as HEAD, or clears
// HEAD when the family is empty. When it joins a caller's transaction the
// caller reports the outcome after its commit.
func (s *familyService) ElectHeadOnRemoval(ctx context.Context, familyID string) (*models.Family, error) {
	var result *models.Family
	outcome := metrics.HeadCleared
	joined := s.txManager.InTransaction(ctx)

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if _, err := s.familyRepo.GetForUpdate(txCtx, familyID); err != nil {
			return err
		}

		var headID *string
		top, err := s.entityRepo.HighestVersion(txCtx, familyID)
		switch {
		case err == nil:
			headID = &top.ID
			outcome = metrics.HeadElected
		case errors.Is(err, domain.ErrNotFound):
			outcome = metrics.HeadCleared
		default:
			return err
		}

		if err := s.familyRepo.SetHead(txCtx, familyID, headID); err != nil {
			return err
		}

		result, err = s.familyRepo.GetByID(txCtx, familyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if joined {
		return result, nil
	}

	s.metrics.RecordHeadElection(outcome)
	s.logger.Info("family head re-elected",
		"family_id", familyID,
		"outcome", outcome,
		"head_id", result.HeadID,
	)

	return result, nil
}

// DeleteFamily detaches all members and removes the family
func (s *familyService) DeleteFamily(ctx context.Context, ownerID, familyID string) error {
	var detached int64

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		family, err := s.familyRepo.GetByID(txCtx, familyID)
		if err != nil {
			return err
		}
		if err := checkOwner("family", familyID, family.OwnerID, ownerID); err != nil {
			return err
		}

		// Member rows before the family row, the same order allocation uses
		if err := s.entityRepo.LockMembers(txCtx, familyID); err != nil {
			return err
		}
		if _, err := s.familyRepo.GetForUpdate(txCtx, familyID); err != nil {
			return err
		}

		// Members must be standalone before the row goes, otherwise the
		// family_id foreign key would null family_id and leave version_number set
		detached, err = s.entityRepo.DetachFamily(txCtx, familyID)
		if err != nil {
			return err
		}

		return s.familyRepo.Delete(txCtx, familyID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("family deleted",
		"family_id", familyID,
		"owner_id", ownerID,
		"detached_entities", detached,
	)

	return nil
}

// GetTimeline lists members ordered by version number
func (s *familyService) GetTimeline(ctx context.Context, ownerID, familyID string) ([]models.Entity, error) {
	if _, err := s.GetFamily(ctx, ownerID, familyID); err != nil {
		return nil, err
	}
	return s.entityRepo.ListByFamily(ctx, familyID)
}
