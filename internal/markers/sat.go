package markers

import (
	"maps"
	"slices"

	"github.com/crillab/gophersat/solver"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rhansen/forkres/internal/itertools"
)

// Satisfiable reports whether at least one environment satisfies the marker.
//
// The marker is translated to a pseudo-Boolean problem.  Every variable that is compared with an
// ordering or equality operator is modeled as taking exactly one of a finite set of representative
// values: each literal the marker compares it with, plus one value strictly between each pair of
// adjacent literals, plus one below the smallest and one above the largest.  Every comparison is
// decided by the representative, so the problem is satisfiable iff the marker is.  Membership
// comparisons are only related to their own negation (x in 'a' vs. x not in 'a'); they are otherwise
// unconstrained, which can only make this report true for an unsatisfiable marker, never the
// reverse.
func Satisfiable(t Tree) bool {
	switch t.node().kind {
	case kindTrue:
		return true
	case kindFalse:
		return false
	}
	p := &satProblem{atomVars: map[Atom]int{}}
	atoms := t.Atoms()
	byVar := map[string][]Atom{}
	for _, a := range atoms {
		if a.Op == "not in" {
			// Shares a variable with its in counterpart; see atomLit.
			a = a.negate()
		}
		if _, ok := p.atomVars[a]; ok {
			continue
		}
		p.atomVars[a] = p.newVar()
		if !a.isMembership() {
			byVar[a.Var] = append(byVar[a.Var], a)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(byVar)) {
		p.constrainVariable(name, byVar[name])
	}
	p.constrs = append(p.constrs, solver.PropClause(p.encode(t.node())))
	s := solver.New(solver.ParsePBConstrs(p.constrs))
	return s.Solve() == solver.Sat
}

// Disjoint reports whether no environment satisfies both markers.
func Disjoint(a, b Tree) bool {
	return !Satisfiable(And(a, b))
}

type satProblem struct {
	nVars    int
	atomVars map[Atom]int
	constrs  []solver.PBConstr
}

// newVar allocates a new DIMACS-style (1-based) variable.
func (p *satProblem) newVar() int {
	p.nVars++
	return p.nVars
}

func (p *satProblem) constrainVariable(name string, atoms []Atom) {
	values := mapset.NewThreadUnsafeSet[string]()
	for _, a := range atoms {
		values.Add(a.Value)
	}
	cmp := func(a, b string) int { return compareValues(name, a, b) }
	sorted := slices.SortedFunc(mapset.Elements(values), cmp)
	// "3.9" and "3.9.0" are the same version.
	sorted = slices.CompactFunc(sorted, func(a, b string) bool { return cmp(a, b) == 0 })
	// Literal k sits at position 2k+1; even positions are the gaps around and between literals.
	nPos := uint(2*len(sorted) + 1)
	reps := make([]int, 0, nPos)
	for range itertools.Range(0, nPos) {
		reps = append(reps, p.newVar())
	}
	p.constrs = append(p.constrs, solver.PropClause(reps...), solver.AtMost(reps, 1))
	for _, a := range atoms {
		k, found := slices.BinarySearchFunc(sorted, a.Value, cmp)
		if !found {
			panic("bug: atom value missing from the sorted literals")
		}
		litPos := 2*k + 1
		av := p.atomVars[a]
		for pos := range itertools.Range(0, nPos) {
			// The representative at pos compares with the literal at litPos the way pos compares
			// with litPos.
			holds := a.holdsForCmp(int(pos) - litPos)
			lit := av
			if !holds {
				lit = -av
			}
			p.constrs = append(p.constrs, solver.PropClause(-reps[pos], lit))
		}
	}
}

func (p *satProblem) atomLit(a Atom) int {
	if a.Op == "not in" {
		return -p.atomVars[a.negate()]
	}
	return p.atomVars[a]
}

// encode returns a variable that can only be true if the (negation normal form) subtree is true.
// One direction of the usual Tseitin equivalence suffices because no subtree appears negated.
func (p *satProblem) encode(n *node) int {
	switch n.kind {
	case kindAtom:
		return p.atomLit(n.atom)
	case kindTrue, kindFalse:
		v := p.newVar()
		if n.kind == kindTrue {
			p.constrs = append(p.constrs, solver.PropClause(v))
		} else {
			p.constrs = append(p.constrs, solver.PropClause(-v))
		}
		return v
	}
	v := p.newVar()
	children := make([]int, len(n.children))
	for i, c := range n.children {
		children[i] = p.encode(c)
	}
	if n.kind == kindAnd {
		for _, c := range children {
			p.constrs = append(p.constrs, solver.PropClause(-v, c))
		}
	} else {
		p.constrs = append(p.constrs, solver.PropClause(append([]int{-v}, children...)...))
	}
	return v
}
