package kinds

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Sakenfor/pixsim7-sub004/internal/config"
	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
)

//go:embed config/*.yaml
var configFiles embed.FS

// DefaultFamilyName is used when neither the source nor its kind supply one
const DefaultFamilyName = "Untitled"

// Registry holds the entity kinds loaded from embedded YAML
type Registry struct {
	kinds map[string]*Kind
	order []string
	mu    sync.RWMutex
}

// NewRegistry creates a registry from the embedded kinds.yaml
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/kinds.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read kinds.yaml: %w", err)
	}
	return NewRegistryFromYAML(data)
}

// NewRegistryFromYAML creates a registry from a kinds document
func NewRegistryFromYAML(data []byte) (*Registry, error) {
	var file kindsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kinds: %w", err)
	}
	if len(file.Kinds) == 0 {
		return nil, fmt.Errorf("no entity kinds defined")
	}

	r := &Registry{kinds: make(map[string]*Kind, len(file.Kinds))}
	for i := range file.Kinds {
		kind := file.Kinds[i]
		r.kinds[kind.ID] = &kind
		r.order = append(r.order, kind.ID)
	}
	return r, nil
}

// Get returns the kind with the given ID
func (r *Registry) Get(id string) (*Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, ok := r.kinds[id]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind: %s", id)
	}
	return kind, nil
}

// List returns all kinds in the order they are declared
func (r *Registry) List() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Kind, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.kinds[id])
	}
	return out
}

// ValidateMetadata checks tag count, key length and each value's declared type
func (r *Registry) ValidateMetadata(kindID string, metadata models.Metadata) error {
	kind, err := r.Get(kindID)
	if err != nil {
		return err
	}

	if len(metadata) > config.MaxMetadataEntries {
		return fmt.Errorf("too many metadata entries: %d (max %d)", len(metadata), config.MaxMetadataEntries)
	}

	for _, key := range metadata.Keys() {
		if key == "" || len(key) > config.MaxMetadataKeyLength {
			return fmt.Errorf("metadata key %q must be 1-%d characters", key, config.MaxMetadataKeyLength)
		}
		want, declared := kind.Metadata[key]
		if !declared {
			if kind.StrictMetadata {
				return fmt.Errorf("metadata key %q is not allowed for kind %s", key, kind.ID)
			}
			continue
		}
		if got := metadata[key].Type(); got != want {
			return fmt.Errorf("metadata key %q must be %s, got %s", key, want, got)
		}
	}

	return nil
}

// DeriveFamilyName names a family created from source: the source's own
// name, else the kind's fallback, else DefaultFamilyName
func (r *Registry) DeriveFamilyName(source *models.Entity) string {
	if source.Name != "" {
		return source.Name
	}
	if kind, err := r.Get(source.Kind); err == nil && kind.FallbackFamilyName != "" {
		return kind.FallbackFamilyName
	}
	return DefaultFamilyName
}
