package kinds

import (
	"testing"

	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
)

func TestNewRegistry_LoadsEmbeddedKinds(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	list := r.List()
	if len(list) < 2 {
		t.Fatalf("expected at least 2 kinds, got %d", len(list))
	}
	if list[0].ID != "asset" || list[1].ID != "prompt" {
		t.Errorf("kinds out of YAML order: %s, %s", list[0].ID, list[1].ID)
	}

	asset, err := r.Get("asset")
	if err != nil {
		t.Fatalf("Get(asset): %v", err)
	}
	if asset.Metadata["width"] != models.ValueInt {
		t.Errorf("asset width type = %s, want int", asset.Metadata["width"])
	}

	if _, err := r.Get("spreadsheet"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestNewRegistryFromYAML_RejectsBadType(t *testing.T) {
	doc := []byte(`
kinds:
  note:
    display_name: Note
    metadata:
      tags: list
`)
	if _, err := NewRegistryFromYAML(doc); err == nil {
		t.Error("expected error for unknown metadata type")
	}

	if _, err := NewRegistryFromYAML([]byte(`kinds: {}`)); err == nil {
		t.Error("expected error for empty kinds")
	}
}

func TestRegistry_ValidateMetadata(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	tests := []struct {
		name     string
		kind     string
		metadata models.Metadata
		wantErr  bool
	}{
		{name: "empty", kind: "asset", metadata: nil},
		{name: "declared types match", kind: "asset", metadata: models.Metadata{
			"width": models.IntValue(512), "mime_type": models.StringValue("image/png"), "nsfw": models.BoolValue(false),
		}},
		{name: "wrong type", kind: "asset", metadata: models.Metadata{"width": models.StringValue("512")}, wantErr: true},
		{name: "undeclared key on lenient kind", kind: "asset", metadata: models.Metadata{"style": models.StringValue("noir")}},
		{name: "undeclared key on strict kind", kind: "prompt", metadata: models.Metadata{"style": models.StringValue("noir")}, wantErr: true},
		{name: "float accepted", kind: "prompt", metadata: models.Metadata{"temperature": models.FloatValue(0.7)}},
		{name: "int for float rejected", kind: "prompt", metadata: models.Metadata{"temperature": models.IntValue(1)}, wantErr: true},
		{name: "unknown kind", kind: "spreadsheet", metadata: nil, wantErr: true},
		{name: "empty key", kind: "asset", metadata: models.Metadata{"": models.BoolValue(true)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateMetadata(tt.kind, tt.metadata)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMetadata() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_DeriveFamilyName(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	tests := []struct {
		name   string
		source models.Entity
		want   string
	}{
		{name: "source name wins", source: models.Entity{Kind: "asset", Name: "sunset"}, want: "sunset"},
		{name: "kind fallback", source: models.Entity{Kind: "prompt"}, want: "Untitled prompt"},
		{name: "unknown kind", source: models.Entity{Kind: "mystery"}, want: DefaultFamilyName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.DeriveFamilyName(&tt.source); got != tt.want {
				t.Errorf("DeriveFamilyName() = %q, want %q", got, tt.want)
			}
		})
	}
}
