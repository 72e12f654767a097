package versioning

import (
	"context"

	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
)

// FamilyService owns family lifecycle and the HEAD pointer
type FamilyService interface {
	// CreateFamily creates an empty family with no HEAD
	CreateFamily(ctx context.Context, req *CreateFamilyRequest) (*models.Family, error)

	// GetFamily retrieves a family with derived counts
	// ownerID is used for authorization check
	GetFamily(ctx context.Context, ownerID, familyID string) (*models.Family, error)

	// ListFamilies lists the caller's families
	ListFamilies(ctx context.Context, ownerID string, req *ListFamiliesRequest) ([]models.Family, error)

	// UpdateFamily changes name and/or description
	UpdateFamily(ctx context.Context, ownerID, familyID string, req *UpdateFamilyRequest) (*models.Family, error)

	// SetHead moves HEAD to a member entity.
	// Returns domain.InvalidHeadError if the entity is not in the family.
	SetHead(ctx context.Context, ownerID, familyID, entityID string) (*models.Family, error)

	// ElectHeadOnRemoval points HEAD at the remaining member with the highest
	// version number, or clears it. Joins the caller's transaction.
	ElectHeadOnRemoval(ctx context.Context, familyID string) (*models.Family, error)

	// DeleteFamily detaches every member and removes the family.
	// Member entities are kept as standalone entities.
	DeleteFamily(ctx context.Context, ownerID, familyID string) error

	// GetTimeline lists the family's members ordered by version number
	GetTimeline(ctx context.Context, ownerID, familyID string) ([]models.Entity, error)
}

// CreateFamilyRequest represents a family creation request
type CreateFamilyRequest struct {
	OwnerID     string  `json:"-"` // Set by handler from auth context
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// OptionalDescription tracks tri-state semantics for description updates (RFC 7396 PATCH).
// Transport-agnostic - handler maps from httputil.OptionalString.
//   - Present=false: field absent from request (don't change)
//   - Present=true, Value=nil: clear
//   - Present=true, Value=&"text": set
type OptionalDescription struct {
	Present bool
	Value   *string
}

// UpdateFamilyRequest represents a family update request
type UpdateFamilyRequest struct {
	Name        *string             // nil = don't change
	Description OptionalDescription // no json tag - mapped from handler DTO
}

// ListFamiliesRequest carries paging for ListFamilies
type ListFamiliesRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// SetHeadRequest is the body of a set-head call
type SetHeadRequest struct {
	EntityID string `json:"entity_id"`
}
