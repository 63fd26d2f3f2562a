package inheritance

import (
	"errors"
	"fmt"
)

// ErrInvalidNode is returned when a relation names an empty base.
var ErrInvalidNode = errors.New("invalid product class")

// CycleError reports that a relation would make the graph cyclic. Node is the
// class found twice on the traversal path.
type CycleError struct {
	Node string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic inheritance detected involving node %s", e.Node)
}

// RelationKind classifies a rejected relation that is not a plain cycle.
type RelationKind string

const (
	RelationReverse   RelationKind = "reverse"
	RelationDuplicate RelationKind = "duplicate"
)

// RelationError rejects base -> subclass before any traversal runs.
type RelationError struct {
	Kind     RelationKind
	Base     string
	Subclass string
}

func (e *RelationError) Error() string {
	switch e.Kind {
	case RelationReverse:
		return fmt.Sprintf("relation %s -> %s conflicts with existing relation %s -> %s", e.Base, e.Subclass, e.Subclass, e.Base)
	default:
		return fmt.Sprintf("relation %s -> %s already exists", e.Base, e.Subclass)
	}
}
