package inheritance

import "time"

// ValidateRelation checks every constraint on a new edge base -> subclass:
// no self relation, no reverse of a stored edge, no duplicate, no cycle.
// An empty subclass stands for a class that has not been stored yet.
func ValidateRelation(g Graph, base, subclass string) error {
	if base == "" {
		return ErrInvalidNode
	}
	if base == subclass {
		rejected("self")
		return &CycleError{Node: base}
	}
	if subclass != "" {
		if contains(g.Bases(base), subclass) {
			rejected(string(RelationReverse))
			return &RelationError{Kind: RelationReverse, Base: base, Subclass: subclass}
		}
		if contains(g.Bases(subclass), base) {
			rejected(string(RelationDuplicate))
			return &RelationError{Kind: RelationDuplicate, Base: base, Subclass: subclass}
		}
	}
	return ValidateNoCycles(g, base, subclass)
}

// ValidateNoCycles returns a *CycleError if adding base -> subclass would
// make subclass reachable from itself. It has no side effects on g.
//
// The walk follows bases upward from subclass. The proposed edge only exists
// while expanding subclass itself; every other node uses stored edges.
func ValidateNoCycles(g Graph, base, subclass string) error {
	defer observe("validate", time.Now())

	if base == "" {
		return ErrInvalidNode
	}
	if base == subclass {
		rejected("self")
		return &CycleError{Node: base}
	}

	v := &cycleVisitor{
		graph:    g,
		base:     base,
		subclass: subclass,
		visited:  make(IDSet),
		path:     make(IDSet),
	}
	if err := v.visit(subclass); err != nil {
		rejected("cycle")
		return err
	}
	return nil
}

type cycleVisitor struct {
	graph    Graph
	base     string
	subclass string
	visited  IDSet // fully explored
	path     IDSet // on the current DFS stack
}

func (v *cycleVisitor) visit(id string) error {
	if v.path.Has(id) {
		return &CycleError{Node: id}
	}
	if v.visited.Has(id) {
		return nil
	}
	v.visited.Add(id)
	v.path.Add(id)
	for _, next := range v.bases(id) {
		if err := v.visit(next); err != nil {
			return err
		}
	}
	delete(v.path, id)
	return nil
}

func (v *cycleVisitor) bases(id string) []string {
	if id == "" {
		// unsaved class: it owns no stored edges yet
		return []string{v.base}
	}
	stored := v.graph.Bases(id)
	if id != v.subclass {
		return stored
	}
	out := make([]string, 0, len(stored)+1)
	out = append(out, stored...)
	return append(out, v.base)
}

// FindCycle returns one cycle of s as a path of node ids, or nil when s is
// acyclic. Used to audit stored data, which write-time validation keeps clean.
func FindCycle(s *EdgeSet) []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int)
	var (
		stack []string
		found []string
	)

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, b := range s.Bases(id) {
			switch color[b] {
			case gray:
				for i, n := range stack {
					if n == b {
						found = append([]string(nil), stack[i:]...)
						break
					}
				}
				return true
			case white:
				if visit(b) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, n := range s.Nodes() {
		if color[n] == white && visit(n) {
			return found
		}
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
