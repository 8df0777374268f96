package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var reLineBreaks = regexp.MustCompile(`\n+\s*`) // blank lines and indentation

// Composer renders one view of an inheritance chain. It owns the view's
// section store and output buffer for the duration of a single render.
type Composer struct {
	set      *settings
	path     string
	data     Data
	sections *SectionStore
	doc      strings.Builder
	parent   string
	extends  chain
	depth    int
}

var _ Handle = (*Composer)(nil)

func newComposer(set *settings, path string, data Data, overrides map[string][]Part, extends chain, depth int) *Composer {
	if data == nil {
		data = Data{}
	}
	return &Composer{
		set:      set,
		path:     normalizeName(path),
		data:     data,
		sections: NewSectionStore(overrides),
		extends:  extends,
		depth:    depth,
	}
}

// Path returns the normalized view path.
func (c *Composer) Path() string {
	return c.path
}

// Data returns the data context of this render.
func (c *Composer) Data() Data {
	return c.data
}

// Write appends p to the open section, or to the document when none is open.
func (c *Composer) Write(p []byte) (int, error) {
	if c.sections.IsOpen() {
		return c.sections.Write(p)
	}
	return c.doc.Write(p)
}

// Extend declares path as the parent of this view.
func (c *Composer) Extend(path string) error {
	path = normalizeName(path)
	if c.parent != "" {
		return fmt.Errorf("%w: already extends %q, cannot extend %q", ErrInvalidState, c.parent, path)
	}
	c.parent = path
	return nil
}

// Open starts capturing output into section name.
func (c *Composer) Open(name string) error {
	return c.sections.Open(name)
}

// Close ends the open section.
func (c *Composer) Close() (string, error) {
	return c.sections.Close()
}

// Super places the parent's original content at the current point of the open section.
func (c *Composer) Super() error {
	return c.sections.MarkParent()
}

// Commit returns the resolved content of section name.
func (c *Composer) Commit(name string) string {
	return c.sections.Commit(name)
}

// Show closes the open section and returns its resolved content.
func (c *Composer) Show() (string, error) {
	name, err := c.sections.Close()
	if err != nil {
		return "", err
	}
	return c.sections.Commit(name), nil
}

// HasSection reports whether name is captured here or overridden by a child.
func (c *Composer) HasSection(name string) bool {
	return c.sections.Has(name)
}

// Include renders path with its own composer. A nil data passes the current
// context through; otherwise data either overlays the current context (merge)
// or replaces it.
func (c *Composer) Include(path string, data Data, merge bool) (string, error) {
	if c.depth >= c.set.maxIncludeDepth {
		return "", fmt.Errorf("%w: %d levels deep including %q", ErrIncludeDepth, c.depth, path)
	}
	ctx := c.data
	if data != nil {
		if merge {
			ctx = c.data.Merge(data)
		} else {
			ctx = data
		}
	}
	out, err := newComposer(c.set, path, ctx, nil, nil, c.depth+1).render()
	if err != nil {
		return "", err
	}
	return "\n" + out + "\n", nil
}

// render executes the view, composes it with its ancestors and normalizes the result.
func (c *Composer) render() (string, error) {
	if c.extends.contains(c.path) {
		return "", viewErrorf(c.path, ErrCyclicInheritance, "%s", c.extends.with(c.path))
	}

	if err := c.set.renderer.Render(c, c.path, c.data); err != nil {
		var viewErr *ViewError
		if errors.As(err, &viewErr) {
			return "", err
		}
		return "", &ViewError{Path: c.path, Err: err}
	}
	if c.sections.IsOpen() {
		return "", viewErrorf(c.path, ErrInvalidState, "section %q was never closed", c.sections.Current())
	}

	content := c.doc.String()
	if c.parent != "" {
		parentContent, err := c.inherit()
		if err != nil {
			return "", err
		}
		content = parentContent + "\n" + content
	}

	if c.set.logger.Enabled(context.Background(), slog.LevelDebug) {
		c.set.logger.Debug("view composed",
			"path", c.path,
			"parent", c.parent,
			"sections", len(c.sections.Names()),
			"depth", c.depth,
		)
	}
	return normalize(content), nil
}

// inherit renders the parent view with this level's sections as its overrides.
func (c *Composer) inherit() (string, error) {
	parent := newComposer(c.set, c.parent, c.data, c.sections.Overrides(), c.extends.with(c.path), c.depth)
	return parent.render()
}

// normalize collapses blank lines and leading indentation, then trims the document.
func normalize(content string) string {
	return reLineBreaks.ReplaceAllString(strings.TrimSpace(content), "\n")
}
