package track

import (
	"errors"
	"fmt"

	"github.com/getgrove/grove/pkg/path"
)

// AddressConflictError is raised when a container already owned at one
// address is inserted at another. Each live container has exactly one
// address; remove it from its current position first.
type AddressConflictError struct {
	// Existing is the address the container currently lives at.
	Existing path.Path
	// Attempted is the address the insertion targeted.
	Attempted path.Path
}

func (e *AddressConflictError) Error() string {
	return fmt.Sprintf("container already tracked at %s, cannot insert at %s", e.Existing, e.Attempted)
}

// UnsupportedValueError is raised when a value of a type the tracker
// cannot represent is written into the tree. State values are plain
// objects (map[string]any), lists ([]any), models, strings, booleans,
// numbers, and nil.
type UnsupportedValueError struct {
	// Path is the address the write targeted.
	Path path.Path
	// Value is the rejected value.
	Value any
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("unsupported state value of type %T at %s", e.Value, e.Path)
}

// ErrDetachedModel is returned when mutating a model that has not been
// inserted into a tree yet. Build the model's fields at construction.
var ErrDetachedModel = errors.New("model is not attached to a tree")

// ErrUnknownMethod is returned by Model.Call for a method name the
// model's type does not declare.
var ErrUnknownMethod = errors.New("model type does not declare this method")
