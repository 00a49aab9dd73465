package join

import (
	"errors"
	"fmt"
)

// User input errors. All abort the operation before any edit is committed.
var (
	// ErrNothingToJoin is returned for an empty selection.
	ErrNothingToJoin = errors.New("select at least one closed way to join")

	// ErrOpenWay is returned when a selected way is not closed.
	ErrOpenWay = errors.New("way is not closed and therefore cannot be joined")

	// ErrMultipleOuterWays is returned for multipolygon relations with more
	// than one outer member.
	ErrMultipleOuterWays = errors.New("cannot handle multipolygon relations with multiple outer ways")

	// ErrOuterInMultipleRelations is returned when a way is the outer member
	// of several multipolygon relations.
	ErrOuterInMultipleRelations = errors.New("cannot handle way that is outer in multiple multipolygon relations")

	// ErrInnerAndOuter is returned when a way is both an inner and an outer
	// member across multipolygon relations.
	ErrInnerAndOuter = errors.New("cannot handle way that is both inner and outer in multipolygon relations")

	// ErrInnerInMultipleRelations is returned when a way is an inner member
	// of several multipolygon relations.
	ErrInnerInMultipleRelations = errors.New("cannot handle way that is inner in multiple multipolygon relations")

	// ErrTagConflict is returned when the configured resolver declines to
	// unify differing tags.
	ErrTagConflict = errors.New("tag conflict not resolved")
)

// InternalError reports an internal consistency failure of the traversal or
// assembly. It carries the traversal state so the defect can be reproduced.
// Whenever an InternalError surfaces, every edit committed so far has been
// rolled back.
type InternalError struct {
	Message     string
	Diagnostics string
}

func (e *InternalError) Error() string {
	if e.Diagnostics == "" {
		return "join internal error: " + e.Message
	}
	return fmt.Sprintf("join internal error: %s (%s)", e.Message, e.Diagnostics)
}

func internalErrorf(diag string, format string, args ...any) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...), Diagnostics: diag}
}
