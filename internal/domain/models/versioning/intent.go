package versioning

// Intent says whether a new entity starts a fresh lineage or continues one.
type Intent string

const (
	IntentNew     Intent = "new"
	IntentVersion Intent = "version"
)

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	return i == IntentNew || i == IntentVersion
}

// VersionContext is the outcome of intent resolution: the family, version
// number and parent a new entity should be created with. All fields are nil
// for a standalone entity.
type VersionContext struct {
	FamilyID      *string `json:"family_id"`
	VersionNumber *int    `json:"version_number"`
	ParentID      *string `json:"parent_id"`

	// Upgraded is true when this resolution turned a standalone source into
	// v1 of a new family.
	Upgraded bool `json:"upgraded"`
}

// IsStandalone reports whether the context describes an unversioned entity.
func (vc *VersionContext) IsStandalone() bool {
	return vc.FamilyID == nil
}
