package forkres_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rhansen/forkres"
)

func Example() {
	ctx := context.Background()

	// Describe the available packages.  Real callers would implement [forkres.Registry] on top of
	// a package index; a snapshot keeps this example self-contained.
	snapshot, err := forkres.LoadIndexSnapshot(strings.NewReader(`
indexes:
  - url: https://a.example
    packages:
      foo:
        - version: "1.0"
          requires: [bar]
      bar:
        - version: "2.0"
  - url: https://b.example
    packages:
      foo:
        - version: "1.0"
`))
	if err != nil {
		panic(err)
	}

	// The project needs foo from a different index on each platform.
	linux := forkres.MustParseRequirement(`foo==1.0; sys_platform == "linux"`)
	linux.Index = forkres.MustParseIndexUrl("https://a.example")
	win := forkres.MustParseRequirement(`foo==1.0; sys_platform == "win32"`)
	win.Index = forkres.MustParseIndexUrl("https://b.example")
	reqs := []forkres.Requirement{linux, win}
	opts := forkres.Options{
		Registry: snapshot,
		Indexes:  []forkres.IndexUrl{forkres.MustParseIndexUrl("https://a.example")},
	}

	// A single resolution for every environment cannot take foo from two indexes.
	_, err = forkres.Resolve(ctx, reqs, opts)
	var conflict *forkres.ConflictingIndexesUniversalError
	if errors.As(err, &conflict) {
		fmt.Printf("universal conflict: %v %v\n", conflict.Package, conflict.Indexes)
	}

	// Forking resolves each platform on its own.
	opts.Mode = forkres.ModeFork
	res, err := forkres.Resolve(ctx, reqs, opts)
	if err != nil {
		panic(err)
	}
	for _, r := range res {
		fmt.Printf("fork %v:\n", r.Markers)
		// Walk the dependency tree of the fork.
		seen := mapset.NewThreadUnsafeSet[forkres.PackageName]()
		q := slices.Collect(r.RootCandidates())
		for len(q) > 0 {
			c := q[0]
			q = q[1:]
			if !seen.Add(c.Name) {
				continue
			}
			fmt.Printf("  %v from %v\n", c, c.Index)
			q = slices.AppendSeq(q, r.DepsOf(c.Name))
		}
	}

	// Output:
	// universal conflict: foo [https://a.example https://b.example]
	// fork sys_platform != 'linux' and sys_platform != 'win32':
	// fork sys_platform == 'linux':
	//   foo==1.0 from https://a.example
	//   bar==2.0 from https://a.example
	// fork sys_platform == 'win32':
	//   foo==1.0 from https://b.example
}
