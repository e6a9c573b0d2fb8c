package label

import "encoding/json"

// Set is an unordered set of labels. Sets handed out by the build graph are
// shared and must be treated as read-only.
type Set map[Label]struct{}

// NewSet returns a set containing the given labels.
func NewSet(labels ...Label) Set {
	s := make(Set, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Add inserts l into the set.
func (s Set) Add(l Label) {
	s[l] = struct{}{}
}

// AddAll inserts every label of other into the set.
func (s Set) AddAll(other Set) {
	for l := range other {
		s[l] = struct{}{}
	}
}

// Has reports whether l is in the set. It is safe to call on a nil set.
func (s Set) Has(l Label) bool {
	_, ok := s[l]
	return ok
}

// Len returns the number of labels in the set.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the members of the set in Compare order.
func (s Set) Sorted() []Label {
	out := make([]Label, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	Sort(out)
	return out
}

// Clone returns a copy of the set that the caller may modify.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for l := range s {
		out[l] = struct{}{}
	}
	return out
}

// Union returns a new set with the members of s and other.
func (s Set) Union(other Set) Set {
	out := s.Clone()
	out.AddAll(other)
	return out
}

// Intersect returns a new set with the members present in both s and other.
func (s Set) Intersect(other Set) Set {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	out := make(Set)
	for l := range small {
		if large.Has(l) {
			out[l] = struct{}{}
		}
	}
	return out
}

// Disjoint reports whether s and other share no members.
func (s Set) Disjoint(other Set) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for l := range small {
		if large.Has(l) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets have exactly the same members.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for l := range s {
		if !other.Has(l) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted array of label strings.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(Strings(s.Sorted()))
}
