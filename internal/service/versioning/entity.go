package versioning

import (
	"context"
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

// entityService implements the EntityService interface
type entityService struct {
	entityRepo    versionRepo.EntityRepository
	familyRepo    versionRepo.FamilyRepository
	familyService versionSvc.FamilyService
	txManager     repositories.TransactionManager
	metrics       *metrics.Metrics
	logger        *slog.Logger

	// maxWalkDepth bounds lineage walks
	maxWalkDepth int
}

// NewEntityService creates a new entity service
func NewEntityService(
	entityRepo versionRepo.EntityRepository,
	familyRepo versionRepo.FamilyRepository,
	familyService versionSvc.FamilyService,
	txManager repositories.TransactionManager,
	m *metrics.Metrics,
	logger *slog.Logger,
) versionSvc.EntityService {
	return &entityService{
		entityRepo:    entityRepo,
		familyRepo:    familyRepo,
		familyService: familyService,
		txManager:     txManager,
		metrics:       m,
		logger:        logger,
		maxWalkDepth:  config.MaxChainWalkDepth,
	}
}

// GetEntity retrieves an entity
func (s *entityService) GetEntity(ctx context.Context, ownerID, entityID string) (*models.Entity, error) {
	entity, err := s.entityRepo.GetByID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner("entity", entityID, entity.OwnerID, ownerID); err != nil {
		return nil, err
	}
	return entity, nil
}

// DeleteEntity removes an entity and repairs HEAD in the same transaction.
// Children keep existing with parent_id cleared by the store.
func (s *entityService) DeleteEntity(ctx context.Context, ownerID, entityID string) error {
	var familyID *string
	var wasHead bool
	var elected *models.Family

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		entity, err := s.entityRepo.GetForUpdate(txCtx, entityID)
		if err != nil {
			return err
		}
		if err := checkOwner("entity", entityID, entity.OwnerID, ownerID); err != nil {
			return err
		}
		familyID = entity.FamilyID

		// Deleting nulls the children's parent_id, so their rows are locked
		// before the family row
		if err := s.entityRepo.LockChildren(txCtx, entityID); err != nil {
			return err
		}

		if familyID != nil {
			family, err := s.familyRepo.GetForUpdate(txCtx, *familyID)
			if err != nil {
				return err
			}
			wasHead = family.HeadID != nil && *family.HeadID == entityID

			// Keep the high-water mark past this number so it is never reused
			if err := s.familyRepo.SetLastAllocated(txCtx, *familyID, *entity.VersionNumber); err != nil {
				return err
			}
		}

		if err := s.entityRepo.Delete(txCtx, entityID); err != nil {
			return err
		}

		if wasHead {
			elected, err = s.familyService.ElectHeadOnRemoval(txCtx, *familyID)
			if err != nil {
				return fmt.Errorf("elect head: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("entity deleted",
		"entity_id", entityID,
		"family_id", familyID,
		"was_head", wasHead,
		"owner_id", ownerID,
	)

	// ElectHeadOnRemoval joined this transaction, so it left reporting to us
	if elected != nil {
		outcome := metrics.HeadCleared
		if elected.HeadID != nil {
			outcome = metrics.HeadElected
		}
		s.metrics.RecordHeadElection(outcome)
		s.logger.Info("family head re-elected",
			"family_id", elected.ID,
			"outcome", outcome,
			"head_id", elected.HeadID,
		)
	}

	return nil
}

// ReparentEntity sets or clears the lineage parent. A parent that descends
// from the entity would close a cycle and is rejected.
func (s *entityService) ReparentEntity(ctx context.Context, ownerID, entityID string, req *versionSvc.ReparentRequest) (*models.Entity, error) {
	parentID := req.ParentID
	if parentID != nil && *parentID == entityID {
		return nil, fmt.Errorf("%w: entity cannot be its own parent", domain.ErrValidation)
	}

	var result *models.Entity

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		entity, err := s.entityRepo.GetForUpdate(txCtx, entityID)
		if err != nil {
			return err
		}
		if err := checkOwner("entity", entityID, entity.OwnerID, ownerID); err != nil {
			return err
		}

		if parentID != nil {
			parent, err := s.entityRepo.GetByID(txCtx, *parentID)
			if err != nil {
				return err
			}
			if err := checkOwner("entity", parent.ID, parent.OwnerID, ownerID); err != nil {
				return err
			}

			ancestors, err := s.entityRepo.GetAncestry(txCtx, parent.ID, s.maxWalkDepth)
			if err != nil {
				return err
			}
			// A walk cut off by the depth cap cannot rule out a cycle
			if n := len(ancestors); n >= s.maxWalkDepth && ancestors[n-1].ParentID != nil {
				return fmt.Errorf("%w: lineage above %s is deeper than %d; cannot check for cycles",
					domain.ErrValidation, *parentID, s.maxWalkDepth)
			}
			for _, a := range ancestors {
				if a.ID == entityID {
					return fmt.Errorf("%w: %s descends from %s; re-parenting would create a cycle",
						domain.ErrValidation, *parentID, entityID)
				}
			}
		}

		if err := s.entityRepo.UpdateParent(txCtx, entityID, parentID); err != nil {
			return err
		}

		result, err = s.entityRepo.GetByID(txCtx, entityID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entity re-parented",
		"entity_id", entityID,
		"parent_id", parentID,
		"owner_id", ownerID,
	)

	return result, nil
}

// GetAncestry returns the parent chain, nearest parent first
func (s *entityService) GetAncestry(ctx context.Context, ownerID, entityID string) ([]models.Entity, error) {
	if _, err := s.GetEntity(ctx, ownerID, entityID); err != nil {
		return nil, err
	}
	return s.entityRepo.GetAncestry(ctx, entityID, s.maxWalkDepth)
}

// GetDescendants returns everything derived from the entity, breadth first
func (s *entityService) GetDescendants(ctx context.Context, ownerID, entityID string) ([]models.Entity, error) {
	if _, err := s.GetEntity(ctx, ownerID, entityID); err != nil {
		return nil, err
	}
	return s.entityRepo.GetDescendants(ctx, entityID, s.maxWalkDepth)
}
