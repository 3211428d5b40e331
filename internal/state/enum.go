package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// EnumEntry is one key/label pair of an Enumeration.
type EnumEntry struct {
	Key   int
	Label string
}

// Enumeration is an append-only ordered mapping of integer keys to labels.
// The zero value is an empty enumeration ready for use.
type Enumeration struct {
	entries []EnumEntry
}

// NewEnumeration builds an enumeration keyed 0..len(labels)-1.
func NewEnumeration(labels ...string) *Enumeration {
	e := &Enumeration{entries: make([]EnumEntry, 0, len(labels))}
	for i, l := range labels {
		e.entries = append(e.entries, EnumEntry{Key: i, Label: l})
	}
	return e
}

// NewEnumerationFromMap builds an enumeration from explicit keys.
func NewEnumerationFromMap(m map[int]string) *Enumeration {
	e := &Enumeration{entries: make([]EnumEntry, 0, len(m))}
	for k, l := range m {
		e.entries = append(e.entries, EnumEntry{Key: k, Label: l})
	}
	sort.Slice(e.entries, func(i, j int) bool { return e.entries[i].Key < e.entries[j].Key })
	return e
}

// Entries returns a copy of the entries in key order.
func (e *Enumeration) Entries() []EnumEntry {
	if e == nil {
		return nil
	}
	out := make([]EnumEntry, len(e.entries))
	copy(out, e.entries)
	return out
}

// Len returns the number of entries.
func (e *Enumeration) Len() int {
	if e == nil {
		return 0
	}
	return len(e.entries)
}

// Label returns the label for key.
func (e *Enumeration) Label(key int) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, en := range e.entries {
		if en.Key == key {
			return en.Label, true
		}
	}
	return "", false
}

// Key returns the key whose label equals label exactly.
func (e *Enumeration) Key(label string) (int, bool) {
	if e == nil {
		return 0, false
	}
	for _, en := range e.entries {
		if en.Label == label {
			return en.Key, true
		}
	}
	return 0, false
}

// HasLabel reports whether label is present.
func (e *Enumeration) HasLabel(label string) bool {
	_, ok := e.Key(label)
	return ok
}

// Extend appends label at max(key)+1 and returns its key.
// A label already present returns its existing key unchanged.
func (e *Enumeration) Extend(label string) int {
	if k, ok := e.Key(label); ok {
		return k
	}
	next := 0
	for _, en := range e.entries {
		if en.Key >= next {
			next = en.Key + 1
		}
	}
	e.entries = append(e.entries, EnumEntry{Key: next, Label: label})
	return next
}

// Clone returns an independent copy.
func (e *Enumeration) Clone() *Enumeration {
	if e == nil {
		return nil
	}
	return &Enumeration{entries: e.Entries()}
}

// Merge returns a copy of e with every label of other that e lacks
// appended. Keys already in e are never removed or renumbered.
func (e *Enumeration) Merge(other *Enumeration) *Enumeration {
	if e == nil {
		return other.Clone()
	}
	merged := e.Clone()
	for _, en := range other.Entries() {
		merged.Extend(en.Label)
	}
	return merged
}

// MarshalJSON encodes the enumeration as {"0":"PHONO","1":"CD"}.
func (e *Enumeration) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, e.Len())
	if e != nil {
		for _, en := range e.entries {
			m[strconv.Itoa(en.Key)] = en.Label
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes the object form written by MarshalJSON.
func (e *Enumeration) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m := make(map[int]string, len(raw))
	for k, l := range raw {
		key, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("enumeration key %q: %w", k, err)
		}
		m[key] = l
	}
	*e = *NewEnumerationFromMap(m)
	return nil
}
