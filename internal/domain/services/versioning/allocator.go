package versioning

import (
	"context"

	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
)

// VersionAllocator turns creation intents into family/version assignments.
// Allocation for a family is serialised on the family row lock.
type VersionAllocator interface {
	// ResolveIntent decides the family, version number and parent for a new
	// entity. A "version" intent on a standalone source upgrades the source to
	// v1 of a new family as a side effect. The number is not reserved; CreateEntity
	// allocates it while holding the family lock.
	ResolveIntent(ctx context.Context, req *ResolveIntentRequest) (*models.VersionContext, error)

	// CreateEntity resolves the intent and inserts the entity in one transaction
	CreateEntity(ctx context.Context, req *CreateEntityRequest) (*CreateEntityResult, error)

	// Fork copies an entity into v1 of a new family and makes the copy HEAD.
	// The source entity and its family are not modified.
	Fork(ctx context.Context, req *ForkRequest) (*ForkResult, error)
}

// ResolveIntentRequest represents an intent resolution request
type ResolveIntentRequest struct {
	OwnerID   string        `json:"-"`
	Intent    models.Intent `json:"intent"`
	SourceIDs []string      `json:"source_ids"`
}

// CreateEntityRequest represents an entity creation request
type CreateEntityRequest struct {
	OwnerID        string          `json:"-"`
	Intent         models.Intent   `json:"intent"`
	SourceIDs      []string        `json:"source_ids,omitempty"`
	Kind           string          `json:"kind"`
	Name           string          `json:"name"`
	Content        string          `json:"content"`
	Metadata       models.Metadata `json:"metadata,omitempty"`
	VersionMessage *string         `json:"version_message,omitempty"`
	AdvanceHead    bool            `json:"advance_head,omitempty"` // Move HEAD to the new version
}

// CreateEntityResult is the created entity plus how its version was resolved
type CreateEntityResult struct {
	Entity  *models.Entity         `json:"entity"`
	Context *models.VersionContext `json:"version_context"`
}

// ForkRequest represents a fork request
type ForkRequest struct {
	OwnerID        string  `json:"-"`
	SourceEntityID string  `json:"-"` // From the URL
	NewName        *string `json:"new_name,omitempty"`
}

// ForkResult is the new family and its v1 copy
type ForkResult struct {
	Family *models.Family `json:"family"`
	Entity *models.Entity `json:"entity"`
}
