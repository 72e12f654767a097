package httputil

import (
	"bytes"
	"encoding/json"
)

// OptionalString distinguishes an absent JSON field from an explicit null,
// which a *string cannot (RFC 7396 merge patch):
//   - Present=false: field absent, leave unchanged
//   - Present=true, Value=nil: null, clear it
//   - Present=true, Value=&s: set to s
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON is only called when the field is present
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true

	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}
