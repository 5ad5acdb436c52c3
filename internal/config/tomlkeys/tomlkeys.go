// Package tomlkeys decodes config documents into a key store that is
// indifferent to key spelling: LOG_LEVEL, log_level and log-level are the
// same key.
package tomlkeys

import (
	"maps"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// Store keeps the decoded document twice: as written, and flattened to
// dotted normalized keys.
type Store struct {
	raw  map[string]any
	flat map[string]any
}

// Decode parses a TOML document.
func Decode(data []byte) (Store, error) {
	raw := map[string]any{}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return Store{}, err
	}
	return FromRaw(raw), nil
}

// FromRaw builds a Store from an already decoded document, such as YAML.
// When two spellings collide the one that sorts first wins.
func FromRaw(raw map[string]any) Store {
	if raw == nil {
		raw = map[string]any{}
	}
	leaves := map[string]any{}
	collectLeaves(nil, raw, leaves)

	flat := make(map[string]any, len(leaves))
	for _, key := range slices.Sorted(maps.Keys(leaves)) {
		normalized := NormalizeKey(key)
		if _, taken := flat[normalized]; !taken {
			flat[normalized] = leaves[key]
		}
	}
	return Store{raw: raw, flat: flat}
}

// Flat returns a copy of the flattened keys.
func (s Store) Flat() map[string]any {
	return maps.Clone(s.flat)
}

// Lookup returns the leaf stored under a dotted key.
func (s Store) Lookup(key string) (any, bool) {
	value, ok := s.flat[NormalizeKey(key)]
	return value, ok
}

// Value returns the raw value stored under a top-level key, tables included.
func (s Store) Value(key string) (any, bool) {
	want := NormalizeKey(key)
	for rawKey, value := range s.raw {
		if NormalizeKey(rawKey) == want {
			return value, true
		}
	}
	return nil, false
}

// Table is Value restricted to tables. Keys inside the table are left as
// written, so entries such as paths keep their dots.
func (s Store) Table(key string) (map[string]any, bool) {
	value, ok := s.Value(key)
	if !ok {
		return nil, false
	}
	table, ok := value.(map[string]any)
	return table, ok
}

// TopLevelKeys lists the normalized top-level keys in sorted order.
func (s Store) TopLevelKeys() []string {
	keys := make([]string, 0, len(s.raw))
	for key := range s.raw {
		keys = append(keys, NormalizeKey(key))
	}
	slices.Sort(keys)
	return keys
}

// NormalizeKey lowercases each dotted segment and turns underscores into
// dashes.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(key), "_", "-")
}

func collectLeaves(path []string, table map[string]any, out map[string]any) {
	for key, value := range table {
		next := append(slices.Clip(path), key)
		if nested, ok := value.(map[string]any); ok {
			collectLeaves(next, nested, out)
			continue
		}
		out[strings.Join(next, ".")] = value
	}
}
