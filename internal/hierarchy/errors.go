package hierarchy

import (
	"errors"
	"fmt"
)

var (
	// ErrNodeNotFound is returned when an operation names an id the store
	// does not hold. Callers treat it as a stale reference, not a failure.
	ErrNodeNotFound = errors.New("node not found")

	// ErrCircularReference is returned when a reparent would create a cycle.
	ErrCircularReference = errors.New("circular reference")

	// ErrDuplicateNode is returned when inserting an id that already exists.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrInvalidOrder is returned by Reorder when the given ids are not
	// exactly the children of the parent.
	ErrInvalidOrder = errors.New("invalid sibling order")
)

// CircularReferenceError describes a refused reparent.
type CircularReferenceError struct {
	Child  NodeID
	Parent NodeID
}

func (e *CircularReferenceError) Error() string {
	if e.Child == e.Parent {
		return fmt.Sprintf("circular reference: %s cannot be its own parent", e.Child)
	}
	return fmt.Sprintf("circular reference: %s is a descendant of %s", e.Parent, e.Child)
}

// Is reports ErrCircularReference as a match.
func (e *CircularReferenceError) Is(target error) bool {
	return target == ErrCircularReference
}

func notFound(id NodeID) error {
	return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}
