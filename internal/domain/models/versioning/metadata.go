package versioning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ValueType is one of the scalar types a metadata value may hold.
type ValueType string

const (
	ValueString ValueType = "string"
	ValueInt    ValueType = "int"
	ValueFloat  ValueType = "float"
	ValueBool   ValueType = "bool"
)

// ParseValueType converts a type name (as used in the kinds registry) to a ValueType.
func ParseValueType(s string) (ValueType, error) {
	switch t := ValueType(s); t {
	case ValueString, ValueInt, ValueFloat, ValueBool:
		return t, nil
	}
	return "", fmt.Errorf("unknown metadata type %q", s)
}

// MetadataValue holds exactly one scalar. The zero value is an empty string.
//
// JSON form is tagged so int and float survive a round trip:
//
//	{"type": "int", "value": 42}
type MetadataValue struct {
	typ ValueType
	s   string
	i   int64
	f   float64
	b   bool
}

func StringValue(v string) MetadataValue { return MetadataValue{typ: ValueString, s: v} }
func IntValue(v int64) MetadataValue     { return MetadataValue{typ: ValueInt, i: v} }
func FloatValue(v float64) MetadataValue { return MetadataValue{typ: ValueFloat, f: v} }
func BoolValue(v bool) MetadataValue     { return MetadataValue{typ: ValueBool, b: v} }

// Type returns the scalar type held by v.
func (v MetadataValue) Type() ValueType {
	if v.typ == "" {
		return ValueString
	}
	return v.typ
}

func (v MetadataValue) String() string {
	switch v.Type() {
	case ValueInt:
		return fmt.Sprintf("%d", v.i)
	case ValueFloat:
		return fmt.Sprintf("%g", v.f)
	case ValueBool:
		return fmt.Sprintf("%t", v.b)
	}
	return v.s
}

// AsString returns the value if v holds a string.
func (v MetadataValue) AsString() (string, bool) { return v.s, v.Type() == ValueString }

// AsInt returns the value if v holds an int.
func (v MetadataValue) AsInt() (int64, bool) { return v.i, v.typ == ValueInt }

// AsFloat returns the value if v holds a float.
func (v MetadataValue) AsFloat() (float64, bool) { return v.f, v.typ == ValueFloat }

// AsBool returns the value if v holds a bool.
func (v MetadataValue) AsBool() (bool, bool) { return v.b, v.typ == ValueBool }

type taggedValue struct {
	Type  ValueType       `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v MetadataValue) MarshalJSON() ([]byte, error) {
	var raw any
	switch v.Type() {
	case ValueInt:
		raw = v.i
	case ValueFloat:
		raw = v.f
	case ValueBool:
		raw = v.b
	default:
		raw = v.s
	}
	value, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taggedValue{Type: v.Type(), Value: value})
}

func (v *MetadataValue) UnmarshalJSON(data []byte) error {
	var tv taggedValue
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tv); err != nil {
		return fmt.Errorf("metadata value: %w", err)
	}
	if len(tv.Value) == 0 {
		return fmt.Errorf("metadata value: missing value")
	}

	typ, err := ParseValueType(string(tv.Type))
	if err != nil {
		return err
	}

	switch typ {
	case ValueString:
		var s string
		if err := json.Unmarshal(tv.Value, &s); err != nil {
			return fmt.Errorf("metadata value: expected string: %w", err)
		}
		*v = StringValue(s)
	case ValueInt:
		var i int64
		if err := json.Unmarshal(tv.Value, &i); err != nil {
			return fmt.Errorf("metadata value: expected int: %w", err)
		}
		*v = IntValue(i)
	case ValueFloat:
		var f float64
		if err := json.Unmarshal(tv.Value, &f); err != nil {
			return fmt.Errorf("metadata value: expected float: %w", err)
		}
		*v = FloatValue(f)
	case ValueBool:
		var b bool
		if err := json.Unmarshal(tv.Value, &b); err != nil {
			return fmt.Errorf("metadata value: expected bool: %w", err)
		}
		*v = BoolValue(b)
	}
	return nil
}

// Metadata is a flat map of typed scalar tags attached to an entity.
type Metadata map[string]MetadataValue

// Clone returns an independent copy of m. A nil map clones to an empty one.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes a nil map as {} so stored rows never hold null.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]MetadataValue(m))
}
