// Package markers implements the subset of [PEP 508] environment markers needed to partition the
// environment space into resolver forks: parsing, canonical rendering, evaluation against a
// concrete environment, and satisfiability (and thus disjointness) checks.
//
// Trees are kept in negation normal form.  [Not] pushes the negation down to the comparisons,
// inverting each operator, so a [Tree] only ever contains conjunctions, disjunctions, constants,
// and comparisons.
//
// [PEP 508]: https://peps.python.org/pep-0508/#environment-markers
package markers

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
)

// Variables lists every marker variable accepted by [Parse].
var Variables = []string{
	"extra",
	"implementation_name",
	"implementation_version",
	"os_name",
	"platform_machine",
	"platform_python_implementation",
	"platform_release",
	"platform_system",
	"platform_version",
	"python_full_version",
	"python_version",
	"sys_platform",
}

// IsVersionVariable reports whether the named variable holds a version and is therefore compared
// by version ordering instead of lexicographically.
func IsVersionVariable(name string) bool {
	switch name {
	case "python_version", "python_full_version", "implementation_version":
		return true
	}
	return false
}

type kind uint8

const (
	kindTrue kind = iota
	kindFalse
	kindAtom
	kindAnd
	kindOr
)

// An Atom is a single comparison between a marker variable and a string literal.
type Atom struct {
	Var   string
	Op    string // One of ==, !=, <, <=, >, >=, in, not in.
	Value string
	// Reversed is only meaningful for the in and not in operators.  When true the literal is on
	// the left ('linux' in sys_platform: the variable contains the literal); otherwise the variable
	// is on the left (sys_platform in 'linux darwin': the literal contains the variable).
	Reversed bool
}

func (a Atom) String() string {
	if a.Reversed {
		return fmt.Sprintf("%s %s %s", quote(a.Value), a.Op, a.Var)
	}
	return fmt.Sprintf("%s %s %s", a.Var, a.Op, quote(a.Value))
}

func quote(s string) string {
	if strings.Contains(s, "'") {
		return `"` + s + `"`
	}
	return "'" + s + "'"
}

func (a Atom) negate() Atom {
	switch a.Op {
	case "==":
		a.Op = "!="
	case "!=":
		a.Op = "=="
	case "<":
		a.Op = ">="
	case "<=":
		a.Op = ">"
	case ">":
		a.Op = "<="
	case ">=":
		a.Op = "<"
	case "in":
		a.Op = "not in"
	case "not in":
		a.Op = "in"
	default:
		panic(fmt.Errorf("unknown marker operator %q", a.Op))
	}
	return a
}

func (a Atom) isMembership() bool {
	return a.Op == "in" || a.Op == "not in"
}

// compareValues orders two values of the given variable.  Version variables use version ordering;
// everything else is compared as strings.
func compareValues(variable, a, b string) int {
	if IsVersionVariable(variable) {
		return semver.Compare(toSemver(a), toSemver(b))
	}
	return strings.Compare(a, b)
}

// toSemver converts a release-only version such as "3.9" or "3.12.1" into the form understood by
// [semver].  Returns the empty string (which semver treats as invalid) if the conversion fails.
func toSemver(v string) string {
	sv := "v" + strings.TrimSpace(v)
	if !semver.IsValid(sv) {
		return ""
	}
	return sv
}

func (a Atom) holdsForCmp(cmp int) bool {
	switch a.Op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	panic(fmt.Errorf("operator %q is not an ordering operator", a.Op))
}

// Eval evaluates the atom given the variable's value.
func (a Atom) Eval(value string) bool {
	if a.isMembership() {
		var in bool
		if a.Reversed {
			in = strings.Contains(value, a.Value)
		} else {
			in = strings.Contains(a.Value, value)
		}
		return in == (a.Op == "in")
	}
	return a.holdsForCmp(compareValues(a.Var, value, a.Value))
}

type node struct {
	kind     kind
	atom     Atom
	children []*node
	str      string // Canonical rendering, computed at construction.
}

var (
	trueNode  = &node{kind: kindTrue, str: "true"}
	falseNode = &node{kind: kindFalse, str: "false"}
)

// A Tree is an immutable marker expression.  The zero value is the always-true marker.
type Tree struct {
	n *node
}

// True returns the marker that matches every environment.
func True() Tree { return Tree{} }

// False returns the marker that matches no environment.
func False() Tree { return Tree{falseNode} }

// FromAtom returns a marker consisting of the single comparison.
func FromAtom(a Atom) Tree {
	return Tree{&node{kind: kindAtom, atom: a, str: a.String()}}
}

func (t Tree) node() *node {
	if t.n == nil {
		return trueNode
	}
	return t.n
}

// String renders the marker in canonical form: operands of a conjunction or disjunction are
// sorted, duplicates are removed, and literals are single-quoted where possible.  Two markers with
// the same rendering are the same marker.
func (t Tree) String() string {
	return t.node().str
}

// IsTrivialTrue reports whether the marker is syntactically the always-true marker.  See
// [Satisfiable] for a semantic check.
func (t Tree) IsTrivialTrue() bool {
	return t.node().kind == kindTrue
}

// IsTrivialFalse reports whether the marker is syntactically the never-true marker.
func (t Tree) IsTrivialFalse() bool {
	return t.node().kind == kindFalse
}

// Atoms returns the distinct comparisons in the marker, in rendering order.
func (t Tree) Atoms() []Atom {
	seen := map[Atom]bool{}
	var ret []Atom
	var visit func(n *node)
	visit = func(n *node) {
		if n.kind == kindAtom {
			if !seen[n.atom] {
				seen[n.atom] = true
				ret = append(ret, n.atom)
			}
			return
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(t.node())
	return ret
}

// And returns the conjunction of the given markers.
func And(ts ...Tree) Tree {
	return combine(kindAnd, ts)
}

// Or returns the disjunction of the given markers.
func Or(ts ...Tree) Tree {
	return combine(kindOr, ts)
}

func combine(k kind, ts []Tree) Tree {
	identity, absorbing := kindTrue, kindFalse
	if k == kindOr {
		identity, absorbing = kindFalse, kindTrue
	}
	byStr := map[string]*node{}
	for _, t := range ts {
		n := t.node()
		switch n.kind {
		case identity:
			continue
		case absorbing:
			return Tree{n}
		case k:
			for _, c := range n.children {
				byStr[c.str] = c
			}
		default:
			byStr[n.str] = n
		}
	}
	switch len(byStr) {
	case 0:
		if identity == kindTrue {
			return True()
		}
		return False()
	case 1:
		for _, n := range byStr {
			return Tree{n}
		}
	}
	strs := slices.Sorted(maps.Keys(byStr))
	sep := " and "
	if k == kindOr {
		sep = " or "
	}
	children := make([]*node, 0, len(strs))
	rendered := make([]string, 0, len(strs))
	for _, s := range strs {
		c := byStr[s]
		children = append(children, c)
		if k == kindAnd && c.kind == kindOr {
			s = "(" + s + ")"
		}
		rendered = append(rendered, s)
	}
	return Tree{&node{kind: k, children: children, str: strings.Join(rendered, sep)}}
}

// Not returns the negation of the marker.
func Not(t Tree) Tree {
	n := t.node()
	switch n.kind {
	case kindTrue:
		return False()
	case kindFalse:
		return True()
	case kindAtom:
		return FromAtom(n.atom.negate())
	}
	negated := make([]Tree, len(n.children))
	for i, c := range n.children {
		negated[i] = Not(Tree{c})
	}
	if n.kind == kindAnd {
		return Or(negated...)
	}
	return And(negated...)
}

// An UnsetVariableError is returned from [Tree.Evaluate] when the environment lacks a variable the
// marker refers to.
type UnsetVariableError struct {
	Var string
}

func (e *UnsetVariableError) Error() string {
	return fmt.Sprintf("marker variable %s is not set in the environment", e.Var)
}

// Evaluate reports whether the environment satisfies the marker.  The environment maps marker
// variable names to their values.
func (t Tree) Evaluate(env map[string]string) (bool, error) {
	var eval func(n *node) (bool, error)
	eval = func(n *node) (bool, error) {
		switch n.kind {
		case kindTrue:
			return true, nil
		case kindFalse:
			return false, nil
		case kindAtom:
			v, ok := env[n.atom.Var]
			if !ok {
				return false, &UnsetVariableError{Var: n.atom.Var}
			}
			if IsVersionVariable(n.atom.Var) && !n.atom.isMembership() && toSemver(v) == "" {
				return false, fmt.Errorf("environment value %q for %s is not a valid version", v, n.atom.Var)
			}
			return n.atom.Eval(v), nil
		}
		short := n.kind == kindOr
		for _, c := range n.children {
			v, err := eval(c)
			if err != nil {
				return false, err
			}
			if v == short {
				return short, nil
			}
		}
		return !short, nil
	}
	return eval(t.node())
}
