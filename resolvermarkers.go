package forkres

import (
	"fmt"
)

// ResolverMarkers identifies the scope of one resolution pass (one fork).  It is a closed sum type:
// the only implementations are [Universal], [SpecificEnvironment], and [Fork].  Code that consumes a
// ResolverMarkers should use an exhaustive type switch (with a panicking default case) so that
// every consumer decides explicitly how to treat each scope.
type ResolverMarkers interface {
	fmt.Stringer
	isResolverMarkers()
}

// Universal is the scope of a pass that applies to every environment the resolution targets.  No
// further forking has happened (or will happen).
type Universal struct{}

// SpecificEnvironment is the scope of a pass pinned to one concrete environment.  Like [Universal]
// there is nothing left to fork over, and index conflicts are reported the same way.
type SpecificEnvironment struct {
	Env MarkerEnvironment
}

// Fork is the scope of a pass restricted to the environments matched by Markers.
type Fork struct {
	Markers MarkerTree
}

func (Universal) isResolverMarkers()           {}
func (SpecificEnvironment) isResolverMarkers() {}
func (Fork) isResolverMarkers()                {}

func (Universal) String() string {
	return "universal"
}

func (e SpecificEnvironment) String() string {
	return fmt.Sprintf("environment %v", e.Env)
}

func (f Fork) String() string {
	return f.Markers.String()
}

// ForkMarkerTree returns the markers that bound a pass with the given scope: the always-true marker
// for [Universal] and [SpecificEnvironment] (the latter filters by evaluation instead), and the
// fork's markers for [Fork].
func ForkMarkerTree(rm ResolverMarkers) MarkerTree {
	switch rm := rm.(type) {
	case Universal, SpecificEnvironment:
		return MarkerTree{}
	case Fork:
		return rm.Markers
	default:
		panic(fmt.Errorf("unknown ResolverMarkers type %T", rm))
	}
}
