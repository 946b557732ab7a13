package model

import (
	"sort"

	jsoniter "github.com/json-iterator/go"
)

// StringSet is an unordered set of strings with set-algebra helpers. It
// marshals as a sorted JSON array so persisted sets are byte-stable.
type StringSet map[string]struct{}

// NewStringSet builds a set from the given members.
func NewStringSet(members ...string) StringSet {
	s := make(StringSet, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// StringSetFromAny coerces the JSON decoded forms of a set ([]interface{},
// []string, map, or a StringSet itself). The second return is false when the
// value has none of those shapes.
func StringSetFromAny(v interface{}) (StringSet, bool) {
	switch t := v.(type) {
	case nil:
		return StringSet{}, true
	case StringSet:
		return t, true
	case []string:
		return NewStringSet(t...), true
	case []interface{}:
		s := make(StringSet, len(t))
		for _, e := range t {
			str, ok := e.(string)
			if !ok {
				return StringSet{}, false
			}
			s[str] = struct{}{}
		}
		return s, true
	case map[string]struct{}:
		return StringSet(t), true
	}
	return StringSet{}, false
}

// Add inserts a member.
func (s StringSet) Add(member string) {
	s[member] = struct{}{}
}

// Has tells if member is in the set.
func (s StringSet) Has(member string) bool {
	_, ok := s[member]
	return ok
}

// Len returns the member count.
func (s StringSet) Len() int {
	return len(s)
}

// Union adds all members of other to s.
func (s StringSet) Union(other StringSet) {
	for m := range other {
		s[m] = struct{}{}
	}
}

// SubsetOf tells if every member of s is in other. The empty set is a subset
// of everything, including itself.
func (s StringSet) SubsetOf(other StringSet) bool {
	for m := range s {
		if !other.Has(m) {
			return false
		}
	}
	return true
}

// Equal tells if both sets have exactly the same members.
func (s StringSet) Equal(other StringSet) bool {
	return len(s) == len(other) && s.SubsetOf(other)
}

// Copy returns an independent copy of the set.
func (s StringSet) Copy() StringSet {
	out := make(StringSet, len(s))
	for m := range s {
		out[m] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON renders the set as a sorted array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return jsoniter.Marshal(s.Sorted())
}

// UnmarshalJSON reads the set back from an array.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var members []string
	if err := jsoniter.Unmarshal(data, &members); err != nil {
		return err
	}
	*s = NewStringSet(members...)
	return nil
}
