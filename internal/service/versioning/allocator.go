package versioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Sakenfor/pixsim7-sub004/internal/config"
	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories"
	versionRepo "github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories/versioning"
	versionSvc "github.com/Sakenfor/pixsim7-sub004/internal/domain/services/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/kinds"
	"github.com/Sakenfor/pixsim7-sub004/internal/metrics"
)

// forkSuffix is appended to a derived family name when forking
const forkSuffix = " (fork)"

// allocator implements the VersionAllocator interface.
//
// Lock order is entity rows, then the family row. Resolve locks the source,
// entity deletion locks the entity and its children, and family deletion
// locks every member before taking the family lock.
type allocator struct {
	familyRepo versionRepo.FamilyRepository
	entityRepo versionRepo.EntityRepository
	txManager  repositories.TransactionManager
	kinds      *kinds.Registry
	retry      *retrier
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewVersionAllocator creates a new version allocator
func NewVersionAllocator(
	familyRepo versionRepo.FamilyRepository,
	entityRepo versionRepo.EntityRepository,
	txManager repositories.TransactionManager,
	kindRegistry *kinds.Registry,
	retryConfig RetryConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) versionSvc.VersionAllocator {
	return &allocator{
		familyRepo: familyRepo,
		entityRepo: entityRepo,
		txManager:  txManager,
		kinds:      kindRegistry,
		retry: &retrier{
			config:    retryConfig,
			txManager: txManager,
			metrics:   m,
			logger:    logger,
		},
		metrics: m,
		logger:  logger,
	}
}

// ResolveIntent resolves an intent on its own. A standalone source is
// upgraded to v1 of a new family. The returned number is not reserved:
// CreateEntity with the same intent and source allocates it, unless another
// writer takes it first.
func (s *allocator) ResolveIntent(ctx context.Context, req *versionSvc.ResolveIntentRequest) (*models.VersionContext, error) {
	if err := validateIntent(req.Intent, req.SourceIDs); err != nil {
		return nil, err
	}

	start := time.Now()
	var vc *models.VersionContext
	var path string

	err := s.retry.do(ctx, "resolve_intent", func() error {
		return s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
			var err error
			vc, path, err = s.resolve(txCtx, req.OwnerID, req.Intent, req.SourceIDs, false)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAllocation(path)
	s.metrics.ObserveAllocation(start)
	s.logResolved(req.Intent, path, vc)

	return vc, nil
}

// CreateEntity resolves the intent and inserts the entity while still
// holding the family lock, so the number cannot be taken in between
func (s *allocator) CreateEntity(ctx context.Context, req *versionSvc.CreateEntityRequest) (*versionSvc.CreateEntityResult, error) {
	if err := validateIntent(req.Intent, req.SourceIDs); err != nil {
		return nil, err
	}
	if err := validateCreateEntity(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := s.kinds.ValidateMetadata(req.Kind, req.Metadata); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	start := time.Now()
	var result *versionSvc.CreateEntityResult
	var path string

	err := s.retry.do(ctx, "create_entity", func() error {
		return s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
			vc, resolvedPath, err := s.resolve(txCtx, req.OwnerID, req.Intent, req.SourceIDs, true)
			if err != nil {
				return err
			}

			entity := &models.Entity{
				Kind:           req.Kind,
				OwnerID:        req.OwnerID,
				Name:           strings.TrimSpace(req.Name),
				Content:        req.Content,
				Metadata:       req.Metadata.Clone(),
				FamilyID:       vc.FamilyID,
				VersionNumber:  vc.VersionNumber,
				ParentID:       vc.ParentID,
				VersionMessage: req.VersionMessage,
			}
			if err := entity.ValidateVersioning(); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrValidation, err)
			}

			if err := s.entityRepo.Create(txCtx, entity); err != nil {
				return err
			}

			if req.AdvanceHead && entity.FamilyID != nil {
				if err := s.familyRepo.SetHead(txCtx, *entity.FamilyID, &entity.ID); err != nil {
					return err
				}
			}

			result = &versionSvc.CreateEntityResult{Entity: entity, Context: vc}
			path = resolvedPath
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAllocation(path)
	s.metrics.ObserveAllocation(start)
	s.logResolved(req.Intent, path, result.Context)
	s.logger.Info("entity created",
		"entity_id", result.Entity.ID,
		"kind", result.Entity.Kind,
		"family_id", result.Entity.FamilyID,
		"version_number", result.Entity.VersionNumber,
		"owner_id", req.OwnerID,
	)

	return result, nil
}

// Fork copies the source into v1 of a new family with HEAD on the copy.
// The copy's parent is the source, so lineage walks cross the fork.
func (s *allocator) Fork(ctx context.Context, req *versionSvc.ForkRequest) (*versionSvc.ForkResult, error) {
	req.NewName = trimmed(req.NewName)
	if err := validateFork(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var result *versionSvc.ForkResult

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		source, err := s.entityRepo.GetByID(txCtx, req.SourceEntityID)
		if err != nil {
			return err
		}
		if err := checkOwner("entity", source.ID, source.OwnerID, req.OwnerID); err != nil {
			return err
		}

		name := req.NewName
		if name == nil {
			derived, err := s.forkName(txCtx, source)
			if err != nil {
				return err
			}
			name = &derived
		}

		family := &models.Family{Name: name, OwnerID: req.OwnerID}
		if err := s.familyRepo.Create(txCtx, family); err != nil {
			return err
		}

		first := 1
		copied := &models.Entity{
			Kind:          source.Kind,
			OwnerID:       req.OwnerID,
			Name:          source.Name,
			Content:       source.Content,
			Metadata:      source.Metadata.Clone(),
			FamilyID:      &family.ID,
			VersionNumber: &first,
			ParentID:      &source.ID,
			// VersionMessage is not carried over: it described the source's change
		}
		if err := s.entityRepo.Create(txCtx, copied); err != nil {
			return err
		}
		if err := s.familyRepo.SetHead(txCtx, family.ID, &copied.ID); err != nil {
			return err
		}
		if err := s.familyRepo.SetLastAllocated(txCtx, family.ID, first); err != nil {
			return err
		}

		forked, err := s.familyRepo.GetByID(txCtx, family.ID)
		if err != nil {
			return err
		}
		result = &versionSvc.ForkResult{Family: forked, Entity: copied}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ForksTotal.Inc()
	s.logger.Info("entity forked",
		"source_entity_id", req.SourceEntityID,
		"family_id", result.Family.ID,
		"entity_id", result.Entity.ID,
		"owner_id", req.OwnerID,
	)

	return result, nil
}

// resolve runs inside a transaction. It returns the version context and
// which allocation path produced it. With reserve set the high-water mark
// moves to the returned number; callers set it only when they insert with
// that number in the same transaction.
func (s *allocator) resolve(ctx context.Context, ownerID string, intent models.Intent, sourceIDs []string, reserve bool) (*models.VersionContext, string, error) {
	if intent == models.IntentNew {
		return &models.VersionContext{}, metrics.PathNew, nil
	}

	// Lock and re-read the source: a concurrent caller may have upgraded it
	// since any earlier read
	source, err := s.entityRepo.GetForUpdate(ctx, sourceIDs[0])
	if err != nil {
		return nil, "", err
	}
	if err := checkOwner("entity", source.ID, source.OwnerID, ownerID); err != nil {
		return nil, "", err
	}

	if source.FamilyID != nil {
		vc, err := s.continueFamily(ctx, source, reserve)
		return vc, metrics.PathContinue, err
	}
	vc, err := s.upgradeStandalone(ctx, source, ownerID, reserve)
	return vc, metrics.PathUpgrade, err
}

// continueFamily allocates the next number in the source's family under the family row lock
func (s *allocator) continueFamily(ctx context.Context, source *models.Entity, reserve bool) (*models.VersionContext, error) {
	family, err := s.familyRepo.GetForUpdate(ctx, *source.FamilyID)
	if err != nil {
		return nil, err
	}

	currentMax, err := s.entityRepo.MaxVersionNumber(ctx, family.ID)
	if err != nil {
		return nil, err
	}
	next := family.NextVersionNumber(currentMax)

	if reserve {
		if err := s.familyRepo.SetLastAllocated(ctx, family.ID, next); err != nil {
			return nil, err
		}
	}

	return &models.VersionContext{
		FamilyID:      &family.ID,
		VersionNumber: &next,
		ParentID:      &source.ID,
	}, nil
}

// upgradeStandalone makes the source v1 of a new family with HEAD on it.
// The caller's new entity becomes v2.
func (s *allocator) upgradeStandalone(ctx context.Context, source *models.Entity, ownerID string, reserve bool) (*models.VersionContext, error) {
	name := s.kinds.DeriveFamilyName(source)
	family := &models.Family{Name: &name, OwnerID: ownerID}
	if err := s.familyRepo.Create(ctx, family); err != nil {
		return nil, err
	}

	first := 1
	if err := s.entityRepo.AssignVersion(ctx, source.ID, &models.VersionContext{
		FamilyID:      &family.ID,
		VersionNumber: &first,
	}); err != nil {
		return nil, err
	}
	if err := s.familyRepo.SetHead(ctx, family.ID, &source.ID); err != nil {
		return nil, err
	}

	next := 2
	allocated := first
	if reserve {
		allocated = next
	}
	if err := s.familyRepo.SetLastAllocated(ctx, family.ID, allocated); err != nil {
		return nil, err
	}

	s.logger.Info("standalone entity upgraded to family",
		"entity_id", source.ID,
		"family_id", family.ID,
		"family_name", name,
	)

	return &models.VersionContext{
		FamilyID:      &family.ID,
		VersionNumber: &next,
		ParentID:      &source.ID,
		Upgraded:      true,
	}, nil
}

// forkName derives "<family or source name> (fork)"
func (s *allocator) forkName(ctx context.Context, source *models.Entity) (string, error) {
	if source.FamilyID != nil {
		family, err := s.familyRepo.GetByID(ctx, *source.FamilyID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return "", err
		}
		if family != nil && family.Name != nil && *family.Name != "" {
			return withForkSuffix(*family.Name), nil
		}
	}
	return withForkSuffix(s.kinds.DeriveFamilyName(source)), nil
}

// withForkSuffix appends forkSuffix, shortening base to keep the result
// within the family name limit
func withForkSuffix(base string) string {
	limit := config.MaxFamilyNameLength - len(forkSuffix)
	if runes := []rune(base); len(runes) > limit {
		base = string(runes[:limit])
	}
	return base + forkSuffix
}

func (s *allocator) logResolved(intent models.Intent, path string, vc *models.VersionContext) {
	s.logger.Debug("intent resolved",
		"intent", intent,
		"path", path,
		"family_id", vc.FamilyID,
		"version_number", vc.VersionNumber,
		"parent_id", vc.ParentID,
	)
}
