package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Set is an unordered collection of string identifiers.
type Set map[string]struct{}

// NewSet returns a Set holding items.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Add inserts item.
func (s Set) Add(item string) {
	s[item] = struct{}{}
}

// Has reports whether item is a member.
func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the members in ascending order. Never nil.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for it := range s {
		out = append(out, it)
	}
	slices.Sort(out)
	return out
}

// Equal reports whether s and other hold exactly the same members.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for it := range s {
		if !other.Has(it) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted array of strings.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of scalars. Numbers and booleans are kept
// as their JSON text, so a hand-edited [1,"a"] loads as {"1","a"}; nulls
// are skipped. Anything other than an array of scalars is an error.
func (s *Set) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Set, len(raw))
	for i, r := range raw {
		r = bytes.TrimSpace(r)
		switch {
		case len(r) == 0 || string(r) == "null":
			continue
		case r[0] == '"':
			var str string
			if err := json.Unmarshal(r, &str); err != nil {
				return err
			}
			out.Add(str)
		case r[0] == '[' || r[0] == '{':
			return fmt.Errorf("snapshot: element %d is not a scalar", i)
		default:
			// number, true or false
			out.Add(string(r))
		}
	}
	*s = out
	return nil
}
