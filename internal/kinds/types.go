package kinds

import (
	"fmt"

	"gopkg.in/yaml.v3"

	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
)

// Kind describes one entity kind and the metadata tags it accepts
type Kind struct {
	// Kind identifier (set during YAML unmarshaling)
	ID string `yaml:"-" json:"id"`

	DisplayName string `yaml:"display_name" json:"display_name"`
	Description string `yaml:"description" json:"description"`

	// FallbackFamilyName names a family created from a source that has no name
	FallbackFamilyName string `yaml:"fallback_family_name" json:"fallback_family_name"`

	// StrictMetadata rejects keys not declared in Metadata
	StrictMetadata bool `yaml:"strict_metadata" json:"strict_metadata"`

	// Metadata maps tag key -> scalar type
	Metadata map[string]models.ValueType `yaml:"metadata" json:"metadata"`
}

// kindsFile is the top-level YAML document
type kindsFile struct {
	Kinds []Kind `yaml:"-"` // Ordered slice, populated by custom unmarshaler
}

// UnmarshalYAML preserves kind order from the YAML file and checks metadata types
func (f *kindsFile) UnmarshalYAML(node *yaml.Node) error {
	var m struct {
		Kinds map[string]Kind `yaml:"kinds"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}

	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value != "kinds" {
			continue
		}
		kindsNode := node.Content[i+1]
		for j := 0; j < len(kindsNode.Content); j += 2 {
			id := kindsNode.Content[j].Value
			kind, ok := m.Kinds[id]
			if !ok {
				continue
			}
			kind.ID = id
			for key, typ := range kind.Metadata {
				if _, err := models.ParseValueType(string(typ)); err != nil {
					return fmt.Errorf("kind %s, metadata key %s: %w", id, key, err)
				}
			}
			f.Kinds = append(f.Kinds, kind)
		}
		break
	}

	return nil
}
