package views

import (
	"errors"
	"fmt"
)

var (
	// ErrViewNotFound is returned when no template backs a view path.
	ErrViewNotFound = errors.New("view not found")
	// ErrInvalidState is returned when section operations are called out of order.
	ErrInvalidState = errors.New("invalid section state")
	// ErrCyclicInheritance is returned when a view transitively extends itself.
	ErrCyclicInheritance = errors.New("cyclic inheritance")
	// ErrIncludeDepth is returned when includes nest deeper than the configured limit.
	ErrIncludeDepth = errors.New("include depth exceeded")
	// ErrNoCacheStore is returned when caching is enabled on a factory without a store.
	ErrNoCacheStore = errors.New("no cache store configured")
)

// ViewError ties a failure to the view path that produced it.
type ViewError struct {
	Path string
	Err  error
}

func (e *ViewError) Error() string {
	return fmt.Sprintf("[%s] %v", e.Path, e.Err)
}

func (e *ViewError) Unwrap() error {
	return e.Err
}

func viewErrorf(path string, sentinel error, format string, args ...any) error {
	return &ViewError{Path: path, Err: fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)}
}
