package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// RawValueKey holds value text that could not be reproduced from structured
// attributes. EncodeValue returns it verbatim when present.
const RawValueKey = "_raw"

// Attributes are the per-category attribute values of a component, keyed by
// the attribute's display name. Stored as a JSON object.
type Attributes map[string]string

func (a *Attributes) Scan(src any) error {
	if src == nil {
		*a = Attributes{}
		return nil
	}

	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Attributes: %T", src)
	}

	result := Attributes{}
	if len(source) > 0 {
		if err := json.Unmarshal(source, &result); err != nil {
			return fmt.Errorf("decoding attributes: %w", err)
		}
	}
	*a = result
	return nil
}

func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Clone returns a copy that can be modified independently.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Raw returns the verbatim value text, if any.
func (a Attributes) Raw() (string, bool) {
	v, ok := a[RawValueKey]
	return v, ok
}

// Keys returns the structured attribute names in sorted order, excluding RawValueKey.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		if k == RawValueKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
