package config

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/ardanlabs/cextract/pipeline"
)

// pattern is a compiled glob and the text it was compiled from.
type pattern struct {
	text string
	glob glob.Glob
}

// IncludeSet is an allow-list of glob patterns per include kind. An empty
// set includes everything.
type IncludeSet struct {
	globs map[pipeline.IncludeKind][]pattern
}

var _ pipeline.Includes = (*IncludeSet)(nil)

func NewIncludeSet() *IncludeSet {
	return &IncludeSet{globs: make(map[pipeline.IncludeKind][]pattern)}
}

// Add allows the symbols of kind whose names match the glob text.
func (s *IncludeSet) Add(kind pipeline.IncludeKind, text string) error {
	g, err := glob.Compile(text)
	if err != nil {
		return fmt.Errorf("--%s %q: %w", kind.OptionName(), text, err)
	}
	s.globs[kind] = append(s.globs[kind], pattern{text: text, glob: g})
	return nil
}

func (s *IncludeSet) Enabled() bool {
	return s != nil && len(s.globs) > 0
}

func (s *IncludeSet) Included(kind pipeline.IncludeKind, name string) bool {
	if s == nil {
		return true
	}
	for _, g := range s.globs[kind] {
		if g.glob.Match(name) {
			return true
		}
	}
	return false
}

// Patterns returns the patterns of kind in the order they were added.
func (s *IncludeSet) Patterns(kind pipeline.IncludeKind) []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, g := range s.globs[kind] {
		out = append(out, g.text)
	}
	return out
}
