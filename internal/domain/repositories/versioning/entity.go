package versioning

import (
	"context"

	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
)

// EntityRepository defines data access operations for entities and their
// versioning columns
type EntityRepository interface {
	// Create inserts a new entity and fills in its ID and timestamps.
	// A duplicate (family_id, version_number) yields domain.VersionConflictError.
	Create(ctx context.Context, entity *models.Entity) error

	// GetByID retrieves an entity
	GetByID(ctx context.Context, id string) (*models.Entity, error)

	// GetForUpdate retrieves an entity and locks its row until the surrounding
	// transaction ends. Must be called inside a transaction.
	GetForUpdate(ctx context.Context, id string) (*models.Entity, error)

	// LockMembers locks every member row of the family. Must be called inside
	// a transaction, before the family row lock.
	LockMembers(ctx context.Context, familyID string) error

	// LockChildren locks every entity whose parent is parentID. Must be called
	// inside a transaction, before the family row lock.
	LockChildren(ctx context.Context, parentID string) error

	// AssignVersion sets the versioning columns of an existing entity
	AssignVersion(ctx context.Context, id string, vc *models.VersionContext) error

	// UpdateParent sets or clears the lineage parent
	UpdateParent(ctx context.Context, id string, parentID *string) error

	// Delete removes an entity. The store nulls parent_id of its children and
	// head_id of a family pointing at it.
	Delete(ctx context.Context, id string) error

	// MaxVersionNumber returns the highest version_number in the family, or 0
	MaxVersionNumber(ctx context.Context, familyID string) (int, error)

	// HighestVersion returns the member with the highest version_number.
	// Returns domain.ErrNotFound when the family has no members.
	HighestVersion(ctx context.Context, familyID string) (*models.Entity, error)

	// ListByFamily returns members ordered by version_number ascending
	ListByFamily(ctx context.Context, familyID string) ([]models.Entity, error)

	// DetachFamily clears family_id and version_number on every member
	DetachFamily(ctx context.Context, familyID string) (int64, error)

	// GetAncestry walks parent_id upwards from id, nearest parent first.
	// The entity itself is not included.
	GetAncestry(ctx context.Context, id string, maxDepth int) ([]models.Entity, error)

	// GetDescendants walks parent_id downwards from id, breadth first.
	// The entity itself is not included.
	GetDescendants(ctx context.Context, id string, maxDepth int) ([]models.Entity, error)
}
