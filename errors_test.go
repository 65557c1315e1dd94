package forkres_test

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/rhansen/forkres"
)

func TestForkError(t *testing.T) {
	t.Parallel()
	linux := mt("sys_platform == 'linux'")
	uc := &ConflictingIndexesUniversalError{Package: pn("foo"), Indexes: []string{"https://a.example", "https://b.example"}}
	fc := &ConflictingIndexesForkError{Package: pn("foo"), Indexes: uc.Indexes, ForkMarkers: linux}
	ns := &NoSolutionError{Package: pn("foo"), Requirements: []string{"foo>=2"}}
	for _, tc := range []struct {
		desc     string
		err      *ForkError
		want     string
		conflict bool
	}{
		{
			desc:     "universal conflict",
			err:      &ForkError{Markers: Universal{}, Err: uc},
			want:     "requirements contain conflicting indexes for package `foo`:\n- https://a.example\n- https://b.example",
			conflict: true,
		},
		{
			desc:     "fork conflict names its split",
			err:      &ForkError{Markers: Fork{Markers: linux}, Err: fc},
			want:     "requirements contain conflicting indexes for package `foo` in split `sys_platform == 'linux'`:\n- https://a.example\n- https://b.example",
			conflict: true,
		},
		{
			desc: "no solution in a fork",
			err:  &ForkError{Markers: Fork{Markers: linux}, Err: ns},
			want: "in split `sys_platform == 'linux'`: no configured index provides package `foo` (required by: foo>=2)",
		},
		{
			desc: "no solution in an environment",
			err:  &ForkError{Markers: SpecificEnvironment{Env: MarkerEnvironment{"os_name": "nt"}}, Err: ns},
			want: "no configured index provides package `foo` (required by: foo>=2)",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			if got := tc.err.Error(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
			wrapped := fmt.Errorf("resolve: %w", errors.Join(tc.err))
			if got := IsIndexConflict(wrapped); got != tc.conflict {
				t.Errorf("IsIndexConflict() = %v, want %v", got, tc.conflict)
			}
		})
	}
}

func TestNoSolutionError(t *testing.T) {
	t.Parallel()
	err := &NoSolutionError{
		Package:      pn("foo"),
		Requirements: []string{"foo<1 from app==1.0", "foo>=2"},
		Index:        iu("https://a.example"),
	}
	want := "no version of `foo` on https://a.example satisfies all of: foo<1 from app==1.0, foo>=2"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
