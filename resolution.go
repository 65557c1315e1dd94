package forkres

import (
	"iter"
	"slices"
)

// A Resolution is the result of one successful fork: the packages selected for the environments
// matched by Markers, and which package required which.
type Resolution struct {
	Markers ResolverMarkers
	// Packages holds one candidate per selected package, sorted by name.
	Packages []Candidate
	// Roots holds the selected packages named by a root requirement, sorted.
	Roots []PackageName
	// Deps maps a selected package to the selected packages it requires, sorted.  Packages without
	// requirements in this fork have no entry.
	Deps map[PackageName][]PackageName
}

// Package returns the candidate selected for the named package, if any.
func (r *Resolution) Package(name PackageName) (Candidate, bool) {
	i, ok := slices.BinarySearchFunc(r.Packages, name, func(c Candidate, n PackageName) int {
		return PackageNameCompare(c.Name, n)
	})
	if !ok {
		return Candidate{}, false
	}
	return r.Packages[i], true
}

// DepsOf yields the candidates selected for the packages required by the named package.
func (r *Resolution) DepsOf(name PackageName) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, d := range r.Deps[name] {
			c, _ := r.Package(d)
			if !yield(c) {
				return
			}
		}
	}
}

// RootCandidates yields the candidates selected for the root requirements.
func (r *Resolution) RootCandidates() iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, n := range r.Roots {
			c, _ := r.Package(n)
			if !yield(c) {
				return
			}
		}
	}
}
