package config

const (
	// MaxFamilyNameLength is the maximum length for family names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxFamilyNameLength = 255

	// MaxFamilyDescriptionLength is the maximum length for family descriptions.
	MaxFamilyDescriptionLength = 2000

	// MaxEntityNameLength is the maximum length for entity names.
	MaxEntityNameLength = 255

	// MaxVersionMessageLength is the maximum length for a version message.
	// Messages are one-line notes ("tweaked lighting"), not changelogs.
	MaxVersionMessageLength = 500

	// MaxMetadataEntries caps the number of metadata tags per entity.
	MaxMetadataEntries = 64

	// MaxMetadataKeyLength is the maximum length for a metadata key.
	MaxMetadataKeyLength = 64

	// MaxChainWalkDepth bounds ancestry/descendant walks so a corrupted
	// parent chain cannot loop forever.
	MaxChainWalkDepth = 1000

	// DefaultListLimit and MaxListLimit page family listings.
	DefaultListLimit = 50
	MaxListLimit     = 200
)
