// Package forkres is the environment-forking core of a Python package resolver.  Given
// requirements whose applicability depends on the target environment ([environment markers]), it
// produces one internally consistent solution per disjoint partition of the environment space
// (a "fork") instead of a single solution that silently ignores environment-conditioned
// divergence.
//
// # Quick Start
//
// (The following is also available as a package-level example.)
//
// Describe the packages available on each index with a [Registry], for example an
// [IndexSnapshot]:
//
//	snap, err := forkres.LoadIndexSnapshot(f)
//	if err != nil {
//		return err
//	}
//
// Parse the requirements, pinning a requirement to a specific index where needed:
//
//	linux, err := forkres.ParseRequirement(`foo==1.0; sys_platform == "linux"`)
//	if err != nil {
//		return err
//	}
//	linux.Index, err = forkres.ParseIndexUrl("https://a.example/simple")
//	if err != nil {
//		return err
//	}
//
// Resolve them, forking where requirements diverge by environment:
//
//	res, err := forkres.Resolve(ctx, reqs, forkres.Options{
//		Registry: snap,
//		Indexes:  indexes,
//		Mode:     forkres.ModeFork,
//	})
//
// Every returned [Resolution] is the solution for one fork.  A non-nil error describes every fork
// that failed; the returned resolutions are the forks that succeeded.
//
// # Forks
//
// A resolution pass is scoped by a [ResolverMarkers] value:
//
//   - [Universal]: the pass applies to every environment the resolution targets.
//   - [SpecificEnvironment]: the pass applies to one fully-pinned environment.  Requirements whose
//     markers do not match the environment are dropped before resolution.
//   - [Fork]: the pass applies only to environments that satisfy a [MarkerTree].
//
// In [ModeFork], resolution starts with a single [Universal] fork.  Whenever the requirements for
// one package carry two or more distinct markers that cannot be true at the same time within the
// current fork (for example `sys_platform == 'linux'` and `sys_platform == 'win32'`), the fork is
// split: one sub-fork per marker, plus a remainder fork covering the environments none of those
// markers match (if any).  Sub-forks are resolved independently and in parallel; each sees only the
// requirements whose markers overlap its own.
//
// # Index Consistency
//
// Within one fork, every package must come from exactly one index.  Each fork's state owns a
// [ForkIndexes] tracker that records the index chosen for each package and rejects any attempt to
// use a second, different index for the same package.  Forks never share trackers: the same
// package may legitimately come from different indexes in different forks, because no single
// installed environment ever sees both forks.
//
// A violation is a hard failure, never retried: there is no candidate ordering under which one
// package can come from two indexes in the same environment.  The error names the package and lists
// both index URLs in sorted order so that repeated runs print byte-identical diagnostics.  The
// error type reflects the scope of the conflict:
//
//   - [ConflictingIndexesUniversalError] when the conflict applies to the whole environment space
//     (or to the single pinned environment);
//   - [ConflictingIndexesForkError] when it applies only to one fork, in which case the error
//     carries the fork's markers.  Sibling forks are unaffected and may succeed.
//
// # Backtracking
//
// The search decides packages one at a time in sorted name order, trying the newest version that
// satisfies every requirement seen so far.  Each decision works on a copy of the fork state, so
// abandoning a decision also discards every index assignment recorded under it.  A [ForkIndexes]
// has no undo operation of its own.
//
// [environment markers]: https://peps.python.org/pep-0508/#environment-markers
package forkres
