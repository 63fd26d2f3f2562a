package inheritance

import "time"

// Ancestors returns every class id reachable from id through base edges.
// A class reached over several paths is visited once.
func Ancestors(g Graph, id string, includeSelf bool) IDSet {
	defer observe("ancestors", time.Now())
	return walk(g.Bases, id, includeSelf)
}

// Descendants is the mirror of Ancestors over subclass edges.
func Descendants(g Graph, id string, includeSelf bool) IDSet {
	defer observe("descendants", time.Now())
	return walk(g.Subclasses, id, includeSelf)
}

func walk(next func(string) []string, id string, includeSelf bool) IDSet {
	out := make(IDSet)
	visited := IDSet{id: {}}
	work := []string{id}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		for _, nb := range next(n) {
			if visited.Has(nb) {
				continue
			}
			visited.Add(nb)
			out.Add(nb)
			work = append(work, nb)
		}
	}
	if includeSelf {
		out.Add(id)
	}
	return out
}
