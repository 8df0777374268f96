package views

import (
	"io"
)

// Handle is what a renderer sees of the composer while it executes a view.
// Text written to the handle lands in the open section or in the document.
type Handle interface {
	io.Writer

	// Path returns the normalized path of the view being rendered.
	Path() string
	// Data returns the data context of the view being rendered.
	Data() Data

	// Extend declares the parent view.
	Extend(path string) error
	// Open starts a section.
	Open(name string) error
	// Close ends the open section and returns its name.
	Close() (string, error)
	// Super marks where the parent's content goes inside the open section.
	Super() error
	// Commit returns the resolved content of a section.
	Commit(name string) string
	// Show closes the open section and returns its resolved content.
	Show() (string, error)
	// HasSection reports whether a section is known at this level.
	HasSection(name string) bool
	// Include renders another view and returns it wrapped in line breaks.
	Include(path string, data Data, merge bool) (string, error)
}

// Renderer executes the template behind a path against a handle.
// It must return an error wrapping ErrViewNotFound when no template exists.
type Renderer interface {
	Render(h Handle, path string, data Data) error
}

// TemplateFunc is a view written in Go.
type TemplateFunc func(h Handle, data Data) error

// Templates is a Renderer backed by Go functions keyed by view path.
type Templates map[string]TemplateFunc

// Render runs the function registered for path.
func (t Templates) Render(h Handle, path string, data Data) error {
	fn, ok := t[normalizeName(path)]
	if !ok {
		return ErrViewNotFound
	}
	return fn(h, data)
}
