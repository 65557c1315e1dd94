package forkres_test

import (
	"github.com/google/go-cmp/cmp"
	. "github.com/rhansen/forkres"
)

// cmpOpts lets [cmp.Diff] compare this package's opaque value types.
var cmpOpts = cmp.Options{
	cmp.Comparer(func(a, b PackageName) bool { return a == b }),
	cmp.Comparer(func(a, b IndexUrl) bool { return a == b }),
	cmp.Comparer(func(a, b Version) bool { return a == b }),
	cmp.Comparer(func(a, b MarkerTree) bool { return a.String() == b.String() }),
}

// Convenience functions to simplify test code.
var (
	pn = MustParsePackageName
	iu = MustParseIndexUrl
	mt = MustParseMarkerTree
	rq = MustParseRequirement
)

func pinned(req, index string) Requirement {
	r := rq(req)
	r.Index = iu(index)
	return r
}
