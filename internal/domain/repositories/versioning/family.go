package versioning

import (
	"context"

	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
)

// FamilyRepository defines data access operations for families
type FamilyRepository interface {
	// Create inserts a new family and fills in its ID and timestamps
	Create(ctx context.Context, family *models.Family) error

	// GetByID retrieves a family with its derived version_count and latest_version_number
	GetByID(ctx context.Context, id string) (*models.Family, error)

	// GetForUpdate retrieves a family and locks its row until the surrounding
	// transaction ends. Must be called inside a transaction.
	GetForUpdate(ctx context.Context, id string) (*models.Family, error)

	// Update writes name and description
	Update(ctx context.Context, family *models.Family) error

	// SetHead points the family's HEAD at entityID (nil clears it)
	SetHead(ctx context.Context, familyID string, entityID *string) error

	// SetLastAllocated records the allocation high-water mark.
	// Callers must hold the family row lock.
	SetLastAllocated(ctx context.Context, familyID string, version int) error

	// ListByOwner lists families owned by ownerID, newest first
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Family, error)

	// Delete removes the family row. Members must be detached first.
	Delete(ctx context.Context, id string) error
}
