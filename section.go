package views

import (
	"fmt"
	"slices"
	"strings"
)

// Part is one captured piece of a section: either literal text or the parent marker.
type Part struct {
	text   string
	parent bool
}

// ParentMarker stands in for the parent's original section content.
var ParentMarker = Part{parent: true}

// Literal returns a text part.
func Literal(text string) Part {
	return Part{text: text}
}

// IsParent reports whether p is the parent marker.
func (p Part) IsParent() bool {
	return p.parent
}

// Text returns the literal value of p. The parent marker has no text.
func (p Part) Text() string {
	return p.text
}

func (p Part) String() string {
	if p.parent {
		return "@parent"
	}
	return fmt.Sprintf("%q", p.text)
}

// SectionStore records the sections captured by one view, along with the
// overrides handed down by the view that extends it.
type SectionStore struct {
	sections  map[string][]Part
	overrides map[string][]Part
	current   string
	isOpen    bool
	buf       strings.Builder
}

// NewSectionStore creates a store. overrides may be nil.
func NewSectionStore(overrides map[string][]Part) *SectionStore {
	if overrides == nil {
		overrides = map[string][]Part{}
	}
	return &SectionStore{
		sections:  map[string][]Part{},
		overrides: overrides,
	}
}

// IsOpen reports whether a section is currently capturing output.
func (s *SectionStore) IsOpen() bool {
	return s.isOpen
}

// Current returns the name of the open section, or "".
func (s *SectionStore) Current() string {
	return s.current
}

// Open starts capturing output for name.
func (s *SectionStore) Open(name string) error {
	if s.isOpen {
		return fmt.Errorf("%w: cannot open section %q while %q is open", ErrInvalidState, name, s.current)
	}
	s.current = name
	s.isOpen = true
	s.buf.Reset()
	if _, ok := s.sections[name]; !ok {
		s.sections[name] = nil
	}
	return nil
}

// Write buffers p for the open section.
func (s *SectionStore) Write(p []byte) (int, error) {
	if !s.isOpen {
		return 0, fmt.Errorf("%w: no open section", ErrInvalidState)
	}
	return s.buf.Write(p)
}

// Close appends the buffered output to the open section and returns its name.
func (s *SectionStore) Close() (string, error) {
	if !s.isOpen {
		return "", fmt.Errorf("%w: no open section to close", ErrInvalidState)
	}
	name := s.current
	s.flush()
	s.current = ""
	s.isOpen = false
	return name, nil
}

// MarkParent appends the buffered output followed by the parent marker and
// keeps the section open.
func (s *SectionStore) MarkParent() error {
	if !s.isOpen {
		return fmt.Errorf("%w: @parent outside of a section", ErrInvalidState)
	}
	s.flush()
	s.sections[s.current] = append(s.sections[s.current], ParentMarker)
	return nil
}

func (s *SectionStore) flush() {
	s.sections[s.current] = append(s.sections[s.current], Literal(s.buf.String()))
	s.buf.Reset()
}

// Has reports whether name was captured here or overridden by a child.
func (s *SectionStore) Has(name string) bool {
	if _, ok := s.sections[name]; ok {
		return true
	}
	_, ok := s.overrides[name]
	return ok
}

// Names returns every section known at this level, sorted.
func (s *SectionStore) Names() []string {
	names := make([]string, 0, len(s.sections)+len(s.overrides))
	for name := range s.sections {
		names = append(names, name)
	}
	for name := range s.overrides {
		if _, ok := s.sections[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Resolve merges the child's override for name with this view's own capture.
// Each parent marker in the override is replaced by the own parts as captured,
// so markers in the own parts survive and keep travelling up the chain. A view
// that never opened name forwards the override untouched, markers included.
func (s *SectionStore) Resolve(name string) []Part {
	own, captured := s.sections[name]
	override, ok := s.overrides[name]
	if !ok {
		return slices.Clone(own)
	}
	if !captured {
		return slices.Clone(override)
	}
	result := make([]Part, 0, len(override)+len(own))
	for _, part := range override {
		if part.parent {
			result = append(result, own...)
			continue
		}
		result = append(result, part)
	}
	return result
}

// Overrides resolves every known section, ready to hand to the parent view.
func (s *SectionStore) Overrides() map[string][]Part {
	names := s.Names()
	resolved := make(map[string][]Part, len(names))
	for _, name := range names {
		resolved[name] = s.Resolve(name)
	}
	return resolved
}

// Commit returns the printable content of name. Unexpanded markers print nothing.
func (s *SectionStore) Commit(name string) string {
	return joinParts(s.Resolve(name))
}

func joinParts(parts []Part) string {
	var b strings.Builder
	for _, part := range parts {
		if !part.parent {
			b.WriteString(part.text)
		}
	}
	return b.String()
}
