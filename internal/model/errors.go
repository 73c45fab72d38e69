package model

import (
	"errors"
	"fmt"
)

// Recoverable business errors. Nothing in this package is fatal: the worst
// outcome of any operation is a rejected mutation with the prior state intact.
var (
	ErrNotFound       = errors.New("post not found")
	ErrUnauthorized   = errors.New("authoring mode required")
	ErrInvalidSlug    = errors.New("slug may only contain lowercase letters, digits and hyphens")
	ErrIncompletePost = errors.New("post is not complete enough to publish")
)

// ValidationError reports the first cell whose content does not match its
// declared type's shape. Cell is the zero-based position in the list.
type ValidationError struct {
	Cell   int
	Type   CellType
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("invalid cell %d: %s", e.Cell, e.Reason)
	}
	if e.Field == "" {
		return fmt.Sprintf("invalid content for %s cell %d: %s", e.Type, e.Cell, e.Reason)
	}
	return fmt.Sprintf("invalid content for %s cell %d: %s %s", e.Type, e.Cell, e.Field, e.Reason)
}

// SlugConflictError is returned when a save or rename would reuse a slug that
// another published post already owns.
type SlugConflictError struct {
	Slug string
}

func (e *SlugConflictError) Error() string {
	return fmt.Sprintf("slug already in use: %q", e.Slug)
}
