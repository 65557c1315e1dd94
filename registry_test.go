package forkres_test

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/rhansen/forkres"
	"github.com/rhansen/forkres/internal/itertools"
	fi "github.com/rhansen/forkres/internal/test/fakeindex"
)

const snapshotYaml = `
indexes:
  - url: https://a.example/simple/
    packages:
      Foo:
        - version: "1.0"
        - version: "2.0"
          requires: ["bar>=1; sys_platform == 'linux'"]
      bar:
        - version: "1.5"
  - url: https://b.example
    packages:
      foo:
        - version: "1.0"
`

func TestLoadIndexSnapshot(t *testing.T) {
	t.Parallel()
	s, err := LoadIndexSnapshot(strings.NewReader(snapshotYaml))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]IndexUrl{iu("https://a.example/simple"), iu("https://b.example")}, s.Indexes(), cmpOpts); diff != "" {
		t.Errorf("unexpected indexes (-want +got):\n%s", diff)
	}
	cs, err := s.Candidates(t.Context(), iu("https://a.example/simple"), pn("foo"))
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, c := range cs {
		got = append(got, c.String())
	}
	// Newest first.
	if diff := cmp.Diff([]string{"foo==2.0", "foo==1.0"}, got); diff != "" {
		t.Errorf("unexpected candidates (-want +got):\n%s", diff)
	}
	if got, want := len(cs[0].Requires), 1; got != want {
		t.Fatalf("got %v requirements, want %v", got, want)
	}
	if got, want := cs[0].Requires[0].String(), "bar>=1; sys_platform == 'linux'"; got != want {
		t.Errorf("got requirement %q, want %q", got, want)
	}
	if cs, _ := s.Candidates(t.Context(), iu("https://b.example"), pn("bar")); len(cs) != 0 {
		t.Errorf("got candidates %v for a package the index does not have", cs)
	}
}

func TestLoadIndexSnapshot_Errors(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		desc string
		yaml string
	}{
		{"unknown field", "indexes:\n  - url: https://a.example\n    pkgs: {}\n"},
		{"bad url", "indexes:\n  - url: https://\n"},
		{"bad name", "indexes:\n  - url: https://a.example\n    packages:\n      '-x': [{version: '1'}]\n"},
		{"bad version", "indexes:\n  - url: https://a.example\n    packages:\n      x: [{version: 'one'}]\n"},
		{"bad requirement", "indexes:\n  - url: https://a.example\n    packages:\n      x: [{version: '1', requires: ['y>>1']}]\n"},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			if _, err := LoadIndexSnapshot(strings.NewReader(tc.yaml)); err == nil {
				t.Error("got nil error")
			}
		})
	}
}

func TestIndexSnapshot_AddReplaces(t *testing.T) {
	t.Parallel()
	var s IndexSnapshot
	idx := iu("https://a.example")
	s.Add(Candidate{Name: pn("foo"), Version: MustParseVersion("1.0"), Index: idx})
	s.Add(Candidate{Name: pn("foo"), Version: MustParseVersion("1.0.0"), Index: idx, Requires: []Requirement{rq("bar")}})
	all := s.All(idx)
	if len(all) != 1 || len(all[0].Requires) != 1 {
		t.Errorf("got %v, want a single replaced candidate", all)
	}
}

func TestCachedRegistry(t *testing.T) {
	t.Parallel()
	fake := fi.TestFakeIndex(t, []fi.Option{fi.Id("foo==1.0")})
	cr := NewCachedRegistry(fake)
	if NewCachedRegistry(cr) != cr {
		t.Error("wrapping a CachedRegistry again created a new cache")
	}
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			cs, err := cr.Candidates(t.Context(), fi.DefaultIndex, pn("foo"))
			if err != nil {
				t.Error(err)
			} else if len(cs) != 1 {
				t.Errorf("got %v candidates, want 1", len(cs))
			}
		})
	}
	wg.Wait()
	if got, want := fake.Calls(), 1; got != want {
		t.Errorf("got %v lookups, want %v", got, want)
	}
}

func TestCachedRegistry_RetryAfterError(t *testing.T) {
	t.Parallel()
	fake := fi.TestFakeIndex(t, []fi.Option{fi.Id("foo==1.0")})
	cr := NewCachedRegistry(fake)
	fake.FailNext(1)
	if _, err := cr.Candidates(t.Context(), fi.DefaultIndex, pn("foo")); !errors.Is(err, fi.ErrInjected) {
		t.Fatalf("got error %v, want %v", err, fi.ErrInjected)
	}
	cs, err := cr.Candidates(t.Context(), fi.DefaultIndex, pn("foo"))
	if err != nil {
		t.Fatalf("failed lookup was cached: %v", err)
	}
	if got := slices.Collect(itertools.Stringify(slices.Values(cs))); !slices.Equal(got, []string{"foo==1.0"}) {
		t.Errorf("got %v", got)
	}
	if got, want := fake.Calls(), 2; got != want {
		t.Errorf("got %v lookups, want %v", got, want)
	}
}

func TestLoadProject(t *testing.T) {
	t.Parallel()
	p, err := LoadProject(strings.NewReader(`
indexes:
  - https://pypi.example/simple
requirements:
  - requirement: "foo==1.0; sys_platform == 'linux'"
    index: https://a.example/
  - requirement: bar>=2
`))
	if err != nil {
		t.Fatal(err)
	}
	want := &Project{
		Indexes: []IndexUrl{iu("https://pypi.example/simple")},
		Requirements: []Requirement{
			pinned("foo==1.0; sys_platform == 'linux'", "https://a.example"),
			rq("bar>=2"),
		},
	}
	if diff := cmp.Diff(want, p, cmpOpts); diff != "" {
		t.Errorf("unexpected project (-want +got):\n%s", diff)
	}
	if _, err := LoadProject(strings.NewReader("requirements:\n  - requirement: foo\n    index: 'https://'\n")); err == nil {
		t.Error("got nil error for an invalid requirement index")
	}
}
