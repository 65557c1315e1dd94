package forkres

import (
	"github.com/rhansen/forkres/internal/markers"
)

// A MarkerTree is a [PEP 508 environment marker]: a Boolean predicate over environment attributes
// (interpreter version, platform, implementation, and so on).  The zero value matches every
// environment.  MarkerTree values are immutable and safe to share between goroutines.
//
// [PEP 508 environment marker]: https://peps.python.org/pep-0508/#environment-markers
type MarkerTree struct {
	t markers.Tree
}

// ParseMarkerTree parses marker text such as `python_version < '3.9' and sys_platform == "linux"`.
// The empty string parses to the marker that matches every environment.
func ParseMarkerTree(s string) (MarkerTree, error) {
	t, err := markers.Parse(s)
	if err != nil {
		return MarkerTree{}, err
	}
	return MarkerTree{t}, nil
}

// MustParseMarkerTree is like [ParseMarkerTree] but panics on error.
func MustParseMarkerTree(s string) MarkerTree {
	m, err := ParseMarkerTree(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String renders the marker in a canonical form.  Markers with equal renderings are equal.
func (m MarkerTree) String() string {
	return m.t.String()
}

// And returns the conjunction of m and o.
func (m MarkerTree) And(o MarkerTree) MarkerTree {
	return MarkerTree{markers.And(m.t, o.t)}
}

// Or returns the disjunction of m and o.
func (m MarkerTree) Or(o MarkerTree) MarkerTree {
	return MarkerTree{markers.Or(m.t, o.t)}
}

// Not returns the negation of m.
func (m MarkerTree) Not() MarkerTree {
	return MarkerTree{markers.Not(m.t)}
}

// IsTrue reports whether m matches every environment.
func (m MarkerTree) IsTrue() bool {
	return m.t.IsTrivialTrue() || !markers.Satisfiable(markers.Not(m.t))
}

// IsFalse reports whether m matches no environment.
func (m MarkerTree) IsFalse() bool {
	return m.t.IsTrivialFalse() || !markers.Satisfiable(m.t)
}

// IsDisjoint reports whether no environment matches both m and o.
func (m MarkerTree) IsDisjoint(o MarkerTree) bool {
	return markers.Disjoint(m.t, o.t)
}

// Evaluate reports whether the concrete environment matches m.
func (m MarkerTree) Evaluate(env MarkerEnvironment) (bool, error) {
	return m.t.Evaluate(env)
}
