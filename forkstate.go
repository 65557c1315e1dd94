package forkres

import (
	"maps"
	"slices"

	"github.com/rhansen/forkres/internal/itertools"
)

// An activeReq is a requirement that applies in a fork, along with the package that declared it.
// The zero from means the requirement is one of the project's root requirements.
type activeReq struct {
	Requirement
	from PackageName
}

// forkState is the search state of one fork.  Every field is exclusively owned by the fork; a
// tentative decision is made on a clone, and backtracking simply drops the clone.
type forkState struct {
	markers  ResolverMarkers
	indexes  ForkIndexes
	selected map[PackageName]Candidate
	// reqs holds the active requirements on every package that has at least one.  A package with
	// an entry here that is not in selected is pending.
	reqs map[PackageName][]activeReq
}

func newForkState(markers ResolverMarkers) *forkState {
	return &forkState{
		markers:  markers,
		selected: map[PackageName]Candidate{},
		reqs:     map[PackageName][]activeReq{},
	}
}

func (st *forkState) clone() *forkState {
	reqs := make(map[PackageName][]activeReq, len(st.reqs))
	for name, rs := range st.reqs {
		// Clipped so that appending in the clone never writes to the original's backing array.
		reqs[name] = slices.Clip(rs)
	}
	return &forkState{
		markers:  st.markers,
		indexes:  st.indexes.Clone(),
		selected: maps.Clone(st.selected),
		reqs:     reqs,
	}
}

// next returns the pending package that sorts first, or false if every required package has been
// decided.
func (st *forkState) next() (PackageName, bool) {
	pending := slices.SortedFunc(itertools.Filter(maps.Keys(st.reqs), func(name PackageName) bool {
		_, ok := st.selected[name]
		return !ok
	}), PackageNameCompare)
	if len(pending) == 0 {
		return PackageName{}, false
	}
	return pending[0], true
}

// retain drops the pending requirements for which keep returns false.  Requirements on decided
// packages are kept as the record of why they were selected.
func (st *forkState) retain(keep func(Requirement) bool) {
	for name, rs := range st.reqs {
		if _, ok := st.selected[name]; ok {
			continue
		}
		rs = slices.DeleteFunc(slices.Clone(rs), func(r activeReq) bool { return !keep(r.Requirement) })
		if len(rs) == 0 {
			delete(st.reqs, name)
		} else {
			st.reqs[name] = rs
		}
	}
}

// resolution converts a completed fork into a [Resolution].
func (st *forkState) resolution() *Resolution {
	res := &Resolution{
		Markers:  st.markers,
		Packages: slices.SortedFunc(maps.Values(st.selected), CandidateCompare),
		Deps:     map[PackageName][]PackageName{},
	}
	for _, c := range res.Packages {
		for _, r := range st.reqs[c.Name] {
			if r.from == (PackageName{}) {
				if !slices.Contains(res.Roots, c.Name) {
					res.Roots = append(res.Roots, c.Name)
				}
			} else if !slices.Contains(res.Deps[r.from], c.Name) {
				res.Deps[r.from] = append(res.Deps[r.from], c.Name)
			}
		}
	}
	slices.SortFunc(res.Roots, PackageNameCompare)
	for _, deps := range res.Deps {
		slices.SortFunc(deps, PackageNameCompare)
	}
	return res
}
