package versioning

import "time"

// Family groups the versions of one logical item. HeadID is the only
// record of which version is current.
type Family struct {
	ID          string  `json:"id" db:"id"`
	Name        *string `json:"name" db:"name"`
	Description *string `json:"description" db:"description"`
	HeadID      *string `json:"head_id" db:"head_id"`
	OwnerID     string  `json:"owner_id" db:"owner_id"`

	// LastAllocatedVersion is the highest number ever handed out, including
	// versions since deleted. Only written while the family row is locked.
	LastAllocatedVersion int `json:"-" db:"last_allocated_version"`

	// Derived from member rows on read, never stored.
	VersionCount        int  `json:"version_count"`
	LatestVersionNumber *int `json:"latest_version_number"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NextVersionNumber returns the number the next allocation must use, given
// the current maximum version_number among members (0 when empty).
func (f *Family) NextVersionNumber(currentMax int) int {
	high := f.LastAllocatedVersion
	if currentMax > high {
		high = currentMax
	}
	return high + 1
}
