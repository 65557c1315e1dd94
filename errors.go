package forkres

import (
	"errors"
	"fmt"
	"strings"
)

// A ConflictingIndexesUniversalError reports that a package was assigned two different indexes in
// a resolution that is not partitioned by environment (or is pinned to a single environment).  No
// environment can satisfy both assignments.
type ConflictingIndexesUniversalError struct {
	Package PackageName
	// Indexes holds the conflicting index URLs, sorted.
	Indexes []string
}

func (e *ConflictingIndexesUniversalError) Error() string {
	return fmt.Sprintf("requirements contain conflicting indexes for package `%v`:\n- %s",
		e.Package, strings.Join(e.Indexes, "\n- "))
}

// A ConflictingIndexesForkError reports that a package was assigned two different indexes within
// one fork.  The failure is limited to the environments matched by ForkMarkers; other forks are
// unaffected.
type ConflictingIndexesForkError struct {
	Package PackageName
	// Indexes holds the conflicting index URLs, sorted.
	Indexes     []string
	ForkMarkers MarkerTree
}

func (e *ConflictingIndexesForkError) Error() string {
	return fmt.Sprintf("requirements contain conflicting indexes for package `%v` in split `%v`:\n- %s",
		e.Package, e.ForkMarkers, strings.Join(e.Indexes, "\n- "))
}

// A NoSolutionError reports that no candidate satisfies the requirements for a package.
type NoSolutionError struct {
	Package PackageName
	// Requirements are the requirements on Package in effect when the search gave up, rendered and
	// sorted.
	Requirements []string
	// Index is the index that was searched, or the zero value if no configured index offers the
	// package.
	Index IndexUrl
}

func (e *NoSolutionError) Error() string {
	reqs := strings.Join(e.Requirements, ", ")
	if e.Index.IsZero() {
		return fmt.Sprintf("no configured index provides package `%v` (required by: %s)", e.Package, reqs)
	}
	return fmt.Sprintf("no version of `%v` on %v satisfies all of: %s", e.Package, e.Index, reqs)
}

// A ForkError attributes a resolution failure to the fork in which it happened.
type ForkError struct {
	Markers ResolverMarkers
	Err     error
}

func (e *ForkError) Error() string {
	switch m := e.Markers.(type) {
	case Universal, SpecificEnvironment:
		return e.Err.Error()
	case Fork:
		// This error already names the split.
		var fe *ConflictingIndexesForkError
		if errors.As(e.Err, &fe) {
			return e.Err.Error()
		}
		return fmt.Sprintf("in split `%v`: %v", m.Markers, e.Err)
	default:
		panic(fmt.Errorf("unknown ResolverMarkers type %T", e.Markers))
	}
}

func (e *ForkError) Unwrap() error {
	return e.Err
}

// IsIndexConflict reports whether err is (or wraps) an index conflict of either scope.
func IsIndexConflict(err error) bool {
	var u *ConflictingIndexesUniversalError
	var f *ConflictingIndexesForkError
	return errors.As(err, &u) || errors.As(err, &f)
}
