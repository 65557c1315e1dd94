package forkres

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rhansen/forkres/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Mode selects how a resolution treats environment markers.
type Mode int

const (
	// ModeUniversal produces a single resolution for every environment.  Markers are ignored: every
	// requirement applies, so requirements meant for different environments can conflict.
	ModeUniversal Mode = iota
	// ModeSpecificEnvironment produces a single resolution for [Options.Environment].  Requirements
	// whose marker does not match the environment are dropped.
	ModeSpecificEnvironment
	// ModeFork produces one resolution per fork.  Whenever the requirements on one package carry
	// distinct, pairwise disjoint markers, the current fork is split by those markers (plus a fork
	// for the environments matched by none of them).
	ModeFork
)

var modeNames = []string{"universal", "env", "fork"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode is the inverse of [Mode.String].
func ParseMode(s string) (Mode, error) {
	if i := slices.Index(modeNames, s); i >= 0 {
		return Mode(i), nil
	}
	return 0, fmt.Errorf("invalid mode %q", s)
}

// Options configures [Resolve].
type Options struct {
	// Registry supplies package metadata.  It is wrapped in a [CachedRegistry] shared by all forks.
	Registry Registry
	// Indexes are searched in order for packages whose requirements do not name an index.
	Indexes []IndexUrl
	Mode    Mode
	// Environment is the target of [ModeSpecificEnvironment] and is otherwise ignored.
	Environment MarkerEnvironment
	// Concurrency bounds how many sibling forks are resolved in parallel.  Values less than 1 mean
	// [runtime.GOMAXPROCS].
	Concurrency int
}

type resolver struct {
	opts Options
	reg  *CachedRegistry
}

// outcome collects the final results of a fork and of every fork split from it.  Failed forks are
// reported as [*ForkError] values.
type outcome struct {
	resolutions []*Resolution
	errs        []error
}

func (o *outcome) merge(other outcome) {
	o.resolutions = append(o.resolutions, other.resolutions...)
	o.errs = append(o.errs, other.errs...)
}

// Resolve selects one version of every package transitively required by reqs.  It returns the
// resolutions of all forks that succeeded, sorted by their markers, along with the [errors.Join] of
// a [*ForkError] for each fork that failed.  A failed fork does not prevent its siblings from
// succeeding, so both return values can be non-empty.
//
// Within a fork each package comes from exactly one index; two requirements that pin the same
// package to different indexes fail the fork with a [*ConflictingIndexesUniversalError] or a
// [*ConflictingIndexesForkError].  Index conflicts are never retried with other candidates.
func Resolve(ctx context.Context, reqs []Requirement, opts Options) ([]*Resolution, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("no registry configured")
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	r := &resolver{opts: opts, reg: NewCachedRegistry(opts.Registry)}
	var markers ResolverMarkers
	switch opts.Mode {
	case ModeUniversal, ModeFork:
		markers = Universal{}
	case ModeSpecificEnvironment:
		markers = SpecificEnvironment{opts.Environment}
	default:
		return nil, fmt.Errorf("unknown mode %v", opts.Mode)
	}
	st := newForkState(markers)
	var o outcome
	if err := r.addReqs(st, PackageName{}, reqs); err != nil {
		o.errs = append(o.errs, &ForkError{Markers: markers, Err: err})
	} else {
		o, err = r.solve(ctx, st)
		if err != nil {
			o.errs = append(o.errs, &ForkError{Markers: markers, Err: err})
		}
	}
	slog.DebugContext(ctx, "resolution finished", "mode", opts.Mode,
		"resolved", len(o.resolutions), "failed", len(o.errs), "cached", r.reg.cache.Len())
	slices.SortFunc(o.resolutions, func(a, b *Resolution) int {
		return cmp.Compare(a.Markers.String(), b.Markers.String())
	})
	slices.SortStableFunc(o.errs, func(a, b error) int {
		return cmp.Compare(a.(*ForkError).Markers.String(), b.(*ForkError).Markers.String())
	})
	return o.resolutions, errors.Join(o.errs...)
}

// applies reports whether a requirement is in effect in the fork.
func (r *resolver) applies(st *forkState, req Requirement) (bool, error) {
	switch m := st.markers.(type) {
	case Universal:
		return true, nil
	case SpecificEnvironment:
		ok, err := req.Marker.Evaluate(m.Env)
		if err != nil {
			return false, fmt.Errorf("requirement %v: %w", req, err)
		}
		return ok, nil
	case Fork:
		return !req.Marker.IsDisjoint(m.Markers), nil
	default:
		panic(fmt.Errorf("unknown ResolverMarkers type %T", st.markers))
	}
}

// addReqs adds the requirements declared by from (or the root requirements if from is the zero
// value) that apply in the fork.  Requirements on an already selected package are checked against
// the selection; a mismatch is a [*NoSolutionError] and the caller should backtrack.
func (r *resolver) addReqs(st *forkState, from PackageName, reqs []Requirement) error {
	for _, req := range reqs {
		ok, err := r.applies(st, req)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		st.reqs[req.Name] = append(st.reqs[req.Name], activeReq{req, from})
		c, ok := st.selected[req.Name]
		if !ok {
			continue
		}
		if !req.Specifiers.Contains(c.Version) {
			return r.noSolution(st, req.Name, c.Index)
		}
		if !req.Index.IsZero() {
			if err := st.indexes.Insert(req.Name, req.Index, st.markers); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *resolver) noSolution(st *forkState, name PackageName, index IndexUrl) *NoSolutionError {
	e := &NoSolutionError{Package: name, Index: index}
	for _, req := range st.reqs[name] {
		s := req.Describe()
		if req.from != (PackageName{}) {
			s += fmt.Sprintf(" from %v", st.selected[req.from])
		}
		e.Requirements = append(e.Requirements, s)
	}
	slices.Sort(e.Requirements)
	return e
}

// solve resolves the remaining pending packages of st.  A returned error means this branch of the
// search has no solution and the caller should backtrack (or, at the top of a fork, report the
// fork as failed).  Failures that must not be retried, such as index conflicts and failures of
// forks split from st, are reported in the outcome instead.
func (r *resolver) solve(ctx context.Context, st *forkState) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}
	name, ok := st.next()
	if !ok {
		slog.Log(ctx, logging.LevelVerbose, "fork resolved", "fork", st.markers, "packages", len(st.selected))
		return outcome{resolutions: []*Resolution{st.resolution()}}, nil
	}
	if r.opts.Mode == ModeFork {
		if splits := r.splits(st, name); splits != nil {
			return r.fork(ctx, st, name, splits), nil
		}
	}
	return r.decide(ctx, st, name)
}

// splits returns the markers to split the fork by before deciding the named package, or nil if the
// fork should not be split.  The fork is split when the package's requirements carry at least two
// distinct markers that are pairwise disjoint within the fork.
func (r *resolver) splits(st *forkState, name PackageName) []MarkerTree {
	seen := mapset.NewThreadUnsafeSet[string]()
	var ms []MarkerTree
	for _, req := range st.reqs[name] {
		if seen.Add(req.Marker.String()) {
			ms = append(ms, req.Marker)
		}
	}
	if len(ms) < 2 {
		return nil
	}
	within := ForkMarkerTree(st.markers)
	for i, a := range ms {
		if a.IsTrue() {
			return nil
		}
		for _, b := range ms[i+1:] {
			if !a.And(within).IsDisjoint(b) {
				return nil
			}
		}
	}
	slices.SortFunc(ms, func(a, b MarkerTree) int { return cmp.Compare(a.String(), b.String()) })
	return ms
}

// fork splits st into one child fork per marker, plus one for the environments that match none of
// them, and resolves the children in parallel.  Children never backtrack into st: a child that
// fails is reported as a failed fork.
func (r *resolver) fork(ctx context.Context, st *forkState, name PackageName, splits []MarkerTree) outcome {
	within := ForkMarkerTree(st.markers)
	rest := within
	var children []*forkState
	for _, m := range splits {
		child := st.clone()
		child.markers = Fork{within.And(m)}
		children = append(children, child)
		rest = rest.And(m.Not())
	}
	if !rest.IsFalse() {
		child := st.clone()
		child.markers = Fork{rest}
		children = append(children, child)
	}
	slog.DebugContext(ctx, "splitting fork", "fork", st.markers, "package", name, "children", len(children))

	results := make([]outcome, len(children))
	var gr errgroup.Group
	gr.SetLimit(r.opts.Concurrency)
	for i, child := range children {
		fm := child.markers.(Fork).Markers
		child.retain(func(req Requirement) bool { return !req.Marker.IsDisjoint(fm) })
		gr.Go(func() error {
			o, err := r.solve(ctx, child)
			if err != nil {
				o.errs = append(o.errs, &ForkError{Markers: child.markers, Err: err})
			}
			results[i] = o
			return nil
		})
	}
	// Children report failures in their outcome, never to the group.
	_ = gr.Wait()
	var o outcome
	for _, res := range results {
		o.merge(res)
	}
	return o
}

// index returns the index to search for the named package, recording it in the fork.  Indexes
// named by requirements are recorded first, so a conflict between them is reported even if some
// other index would offer a satisfying candidate.
func (r *resolver) index(ctx context.Context, st *forkState, name PackageName) (IndexUrl, error) {
	for _, req := range st.reqs[name] {
		if req.Index.IsZero() {
			continue
		}
		if err := st.indexes.Insert(name, req.Index, st.markers); err != nil {
			return IndexUrl{}, err
		}
	}
	if index, ok := st.indexes.Get(name); ok {
		return index, nil
	}
	for _, index := range r.opts.Indexes {
		cs, err := r.reg.Candidates(ctx, index, name)
		if err != nil {
			return IndexUrl{}, err
		}
		if len(cs) > 0 {
			// A fresh package cannot conflict.
			if err := st.indexes.Insert(name, index, st.markers); err != nil {
				panic(err)
			}
			return index, nil
		}
	}
	return IndexUrl{}, nil
}

// decide tries each candidate for the named package, newest first, and resolves the rest of the
// fork with it selected.
func (r *resolver) decide(ctx context.Context, st *forkState, name PackageName) (outcome, error) {
	base := st.clone()
	index, err := r.index(ctx, base, name)
	if IsIndexConflict(err) {
		slog.DebugContext(ctx, "index conflict", "fork", st.markers, "package", name, "error", err)
		return outcome{errs: []error{&ForkError{Markers: st.markers, Err: err}}}, nil
	} else if err != nil {
		return outcome{}, err
	}
	if index.IsZero() {
		return outcome{}, r.noSolution(base, name, index)
	}
	cs, err := r.reg.Candidates(ctx, index, name)
	if err != nil {
		return outcome{}, err
	}
	var lastErr error
	for _, c := range cs {
		if !r.acceptable(base, c) {
			continue
		}
		slog.Log(ctx, logging.LevelTrace, "trying candidate", "fork", st.markers, "candidate", c, "index", index)
		child := base.clone()
		child.selected[name] = c
		if err := r.addReqs(child, name, c.Requires); IsIndexConflict(err) {
			return outcome{errs: []error{&ForkError{Markers: st.markers, Err: err}}}, nil
		} else if err != nil {
			if !isBacktrackable(err) {
				return outcome{}, err
			}
			lastErr = err
			continue
		}
		o, err := r.solve(ctx, child)
		if err == nil {
			return o, nil
		} else if !isBacktrackable(err) {
			return outcome{}, err
		}
		slog.Log(ctx, logging.LevelTrace, "backtracking", "fork", st.markers, "candidate", c, "error", err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = r.noSolution(base, name, index)
	}
	return outcome{}, lastErr
}

// acceptable reports whether c satisfies every active requirement on its package.
func (r *resolver) acceptable(st *forkState, c Candidate) bool {
	for _, req := range st.reqs[c.Name] {
		if !req.Specifiers.Contains(c.Version) {
			return false
		}
	}
	return true
}

func isBacktrackable(err error) bool {
	var nse *NoSolutionError
	return errors.As(err, &nse)
}
