package pipeline

import "github.com/ardanlabs/cextract/ir"

// LiftEnumConstants returns a toplevel where the constants of every enum
// take the enum's place, tagged with the enum's name. C puts enum constants
// in the enclosing scope, not in the enum. The enum declarations stay
// reachable through the types that name them.
func LiftEnumConstants(top *ir.Scoped) *ir.Scoped {
	members := make([]ir.Declaration, 0, len(top.Members))

	for _, m := range top.Members {
		s, ok := m.(*ir.Scoped)
		if !ok || s.Kind != ir.ScopedEnum {
			members = append(members, m)
			continue
		}

		for _, c := range s.Members {
			if s.Name() != "" {
				ir.SetEnumConstant(c, s.Name())
			}
			members = append(members, c)
		}
	}

	return top.WithMembers(members...)
}
