package ir

import "fmt"

// Position is a source coordinate of a declaration.
type Position struct {
	Path string
	Line int
	Col  int
}

// NoPosition marks synthetic declarations, such as macros defined on the
// command line.
var NoPosition = Position{}

func (p Position) IsValid() bool {
	return p != NoPosition
}

func (p Position) String() string {
	if !p.IsValid() {
		return "<no position>"
	}
	return fmt.Sprintf("%s:%d:%d", p.Path, p.Line, p.Col)
}
