package catalog

import (
	"strings"
)

// EncodeValue flattens attributes into "Key: v, Key2: v2". Declared
// attributes come first in schema order, then any extras sorted by name.
// Empty values are skipped. A RawValueKey entry is returned verbatim.
func EncodeValue(attrs Attributes, declared []string) string {
	if raw, ok := attrs.Raw(); ok {
		return raw
	}

	seen := make(map[string]bool, len(declared))
	parts := make([]string, 0, len(attrs))
	for _, name := range declared {
		seen[name] = true
		if v := attrs[name]; v != "" {
			parts = append(parts, name+": "+v)
		}
	}
	for _, k := range attrs.Keys() {
		if seen[k] || attrs[k] == "" {
			continue
		}
		parts = append(parts, k+": "+attrs[k])
	}
	return strings.Join(parts, ", ")
}

// ParseValue is the inverse of EncodeValue. Keys are matched against the
// declared attribute names case-insensitively, accepting a prefix of the
// declared name. If the parsed attributes do not encode back to the exact
// input, the input is also kept under RawValueKey.
func ParseValue(text string, declared []string) Attributes {
	text = strings.TrimSpace(text)
	if text == "" {
		return Attributes{}
	}

	attrs := Attributes{}
	for _, part := range strings.Split(text, ",") {
		key, val, found := strings.Cut(part, ":")
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if !found || key == "" || key == RawValueKey {
			return Attributes{RawValueKey: text}
		}
		name := matchAttribute(key, declared)
		if _, dup := attrs[name]; dup {
			return Attributes{RawValueKey: text}
		}
		attrs[name] = val
	}

	if EncodeValue(attrs, declared) != text {
		attrs[RawValueKey] = text
	}
	return attrs
}

// reconcileRaw removes RawValueKey from attrs when the raw text no longer
// parses to the structured attributes next to it. Raw-only attributes are
// left alone.
func reconcileRaw(attrs Attributes, declared []string) {
	raw, ok := attrs.Raw()
	if !ok || len(attrs) == 1 {
		return
	}
	parsed := ParseValue(raw, declared)
	delete(parsed, RawValueKey)
	if len(parsed) != len(attrs)-1 {
		delete(attrs, RawValueKey)
		return
	}
	for k, v := range parsed {
		if got, ok := attrs[k]; !ok || got != v {
			delete(attrs, RawValueKey)
			return
		}
	}
}

// matchAttribute resolves key to a declared attribute name. An exact
// case-insensitive match wins over a prefix match; unknown keys are kept as written.
func matchAttribute(key string, declared []string) string {
	lk := strings.ToLower(key)
	for _, name := range declared {
		if strings.ToLower(name) == lk {
			return name
		}
	}
	for _, name := range declared {
		if strings.HasPrefix(strings.ToLower(name), lk) {
			return name
		}
	}
	return key
}
