package forkres

import (
	"fmt"
	"maps"
	"slices"
)

// ForkIndexes records, for a single fork, the index each package has been assigned to.  It enforces
// that within the fork every package comes from exactly one index.
//
// A ForkIndexes is owned by exactly one fork's state and must never be shared with or read by
// another fork, because different forks may legitimately choose different indexes for the same
// package.  Use [ForkIndexes.Clone] to hand a copy to a new fork or to a tentative decision.  There
// is no undo operation; backtracking is done by discarding the copy.
//
// The zero value is an empty tracker ready to use.  A ForkIndexes is not safe for concurrent use,
// which is never needed because it is never shared.
type ForkIndexes struct {
	m map[PackageName]IndexUrl
}

// Get returns the index previously recorded for the package in this fork, if any.
func (fi *ForkIndexes) Get(name PackageName) (IndexUrl, bool) {
	index, ok := fi.m[name]
	return index, ok
}

// Insert records that the package comes from the given index in this fork.  Recording the same
// index again is a no-op.  Recording a different index fails with a
// [*ConflictingIndexesUniversalError] if forkMarkers is [Universal] or [SpecificEnvironment], or
// with a [*ConflictingIndexesForkError] carrying the fork's markers if forkMarkers is a [Fork].
//
// The previous index is compared before anything is written, so a failed Insert leaves the tracker
// unchanged: [ForkIndexes.Get] still returns the first index.
func (fi *ForkIndexes) Insert(name PackageName, index IndexUrl, forkMarkers ResolverMarkers) error {
	previous, ok := fi.m[name]
	if !ok {
		if fi.m == nil {
			fi.m = map[PackageName]IndexUrl{}
		}
		fi.m[name] = index
		return nil
	}
	if previous == index {
		return nil
	}
	conflicts := []string{previous.String(), index.String()}
	slices.Sort(conflicts)
	switch fm := forkMarkers.(type) {
	case Universal, SpecificEnvironment:
		return &ConflictingIndexesUniversalError{Package: name, Indexes: conflicts}
	case Fork:
		return &ConflictingIndexesForkError{Package: name, Indexes: conflicts, ForkMarkers: fm.Markers}
	default:
		panic(fmt.Errorf("unknown ResolverMarkers type %T", forkMarkers))
	}
}

// Len returns the number of packages with a recorded index.
func (fi *ForkIndexes) Len() int {
	return len(fi.m)
}

// Clone returns an independent copy of the tracker.
func (fi *ForkIndexes) Clone() ForkIndexes {
	return ForkIndexes{maps.Clone(fi.m)}
}
