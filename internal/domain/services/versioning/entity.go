package versioning

import (
	"context"

	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
)

// EntityService handles entity reads and the integrity rules that apply when
// entities are removed or re-parented
type EntityService interface {
	// GetEntity retrieves an entity
	GetEntity(ctx context.Context, ownerID, entityID string) (*models.Entity, error)

	// DeleteEntity removes an entity. If it was HEAD, a new HEAD is elected in
	// the same transaction; children lose their parent link.
	DeleteEntity(ctx context.Context, ownerID, entityID string) error

	// ReparentEntity sets or clears the lineage parent, rejecting cycles
	ReparentEntity(ctx context.Context, ownerID, entityID string, req *ReparentRequest) (*models.Entity, error)

	// GetAncestry returns the parent chain, nearest parent first
	GetAncestry(ctx context.Context, ownerID, entityID string) ([]models.Entity, error)

	// GetDescendants returns all entities derived from entityID, breadth first
	GetDescendants(ctx context.Context, ownerID, entityID string) ([]models.Entity, error)
}

// ReparentRequest represents a re-parent request. A nil ParentID detaches.
type ReparentRequest struct {
	ParentID *string `json:"parent_id"`
}
