package versioning

import (
	"fmt"
	"time"
)

// Entity is a content item that can optionally belong to a family as one
// numbered version of it.
type Entity struct {
	ID      string `json:"id" db:"id"`
	Kind    string `json:"kind" db:"kind"`
	OwnerID string `json:"owner_id" db:"owner_id"`
	Name    string `json:"name" db:"name"`
	Content string `json:"content" db:"content"` // Opaque payload or external reference

	Metadata Metadata `json:"metadata" db:"metadata"`

	FamilyID       *string `json:"family_id" db:"family_id"`           // NULL = standalone
	VersionNumber  *int    `json:"version_number" db:"version_number"` // Set iff FamilyID is set
	ParentID       *string `json:"parent_id" db:"parent_id"`           // Lineage edge, may cross families
	VersionMessage *string `json:"version_message,omitempty" db:"version_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsVersioned reports whether the entity belongs to a family.
func (e *Entity) IsVersioned() bool {
	return e.FamilyID != nil
}

// ValidateVersioning checks that family membership and version number are
// set together and that the version number is positive.
func (e *Entity) ValidateVersioning() error {
	switch {
	case e.FamilyID == nil && e.VersionNumber == nil:
		return nil
	case e.FamilyID == nil:
		return fmt.Errorf("version_number %d set without family_id", *e.VersionNumber)
	case e.VersionNumber == nil:
		return fmt.Errorf("family_id %s set without version_number", *e.FamilyID)
	case *e.VersionNumber <= 0:
		return fmt.Errorf("version_number must be positive, got %d", *e.VersionNumber)
	}
	return nil
}
