// Package inheritance validates and walks the product-class inheritance graph.
//
// Nodes are product class ids and an edge base -> subclass means the subclass
// inherits from base. The edge set is kept acyclic at write time by
// ValidateRelation, which lets the resolvers walk it without cycle guards
// beyond a visited set.
package inheritance

import "sort"

// Graph exposes the direct neighbours of a product class.
type Graph interface {
	Bases(id string) []string
	Subclasses(id string) []string
}

// Edge is one persisted relation.
type Edge struct {
	Base     string `db:"base_id"`
	Subclass string `db:"subclass_id"`
}

// EdgeSet is an in-memory adjacency index over persisted edges.
type EdgeSet struct {
	bases      map[string][]string
	subclasses map[string][]string
	size       int
}

func NewEdgeSet(edges []Edge) *EdgeSet {
	s := &EdgeSet{
		bases:      make(map[string][]string),
		subclasses: make(map[string][]string),
	}
	for _, e := range edges {
		s.Add(e.Base, e.Subclass)
	}
	return s
}

// Add records base -> subclass. Adding an existing edge is a no-op.
func (s *EdgeSet) Add(base, subclass string) {
	if s.Has(base, subclass) {
		return
	}
	s.bases[subclass] = append(s.bases[subclass], base)
	s.subclasses[base] = append(s.subclasses[base], subclass)
	s.size++
}

func (s *EdgeSet) Remove(base, subclass string) {
	if !s.Has(base, subclass) {
		return
	}
	s.bases[subclass] = without(s.bases[subclass], base)
	s.subclasses[base] = without(s.subclasses[base], subclass)
	s.size--
}

// RemoveBases drops every edge pointing into subclass and returns the removed bases.
func (s *EdgeSet) RemoveBases(subclass string) []string {
	removed := append([]string(nil), s.bases[subclass]...)
	for _, base := range removed {
		s.Remove(base, subclass)
	}
	return removed
}

func (s *EdgeSet) Has(base, subclass string) bool {
	for _, b := range s.bases[subclass] {
		if b == base {
			return true
		}
	}
	return false
}

// Bases returns the direct bases of id. The slice stays valid after later
// mutations of the set and must not be modified by the caller.
func (s *EdgeSet) Bases(id string) []string {
	return capped(s.bases[id])
}

// Subclasses returns the direct subclasses of id, with the same guarantees as Bases.
func (s *EdgeSet) Subclasses(id string) []string {
	return capped(s.subclasses[id])
}

func (s *EdgeSet) Len() int {
	return s.size
}

// Nodes returns every node touching an edge, sorted.
func (s *EdgeSet) Nodes() []string {
	seen := make(IDSet)
	for sub, bases := range s.bases {
		if len(bases) == 0 {
			continue
		}
		seen.Add(sub)
		for _, b := range bases {
			seen.Add(b)
		}
	}
	return seen.Slice()
}

// Edges returns the edge list sorted by base then subclass.
func (s *EdgeSet) Edges() []Edge {
	out := make([]Edge, 0, s.size)
	for sub, bases := range s.bases {
		for _, b := range bases {
			out = append(out, Edge{Base: b, Subclass: sub})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Base != out[j].Base {
			return out[i].Base < out[j].Base
		}
		return out[i].Subclass < out[j].Subclass
	})
	return out
}

// capped limits capacity so an append by the caller reallocates.
func capped(ids []string) []string {
	return ids[:len(ids):len(ids)]
}

// without returns a fresh slice so slices handed out earlier keep their contents.
func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// IDSet is a set of product class ids.
type IDSet map[string]struct{}

func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the members sorted.
func (s IDSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
