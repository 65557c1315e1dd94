package forkres

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/rhansen/forkres/internal/logging"
	"github.com/rhansen/forkres/internal/syncmap"
	"gopkg.in/yaml.v3"
)

// A Registry provides package metadata from one or more indexes.
type Registry interface {
	// Candidates returns every release of the named package published by the given index, newest
	// first.  An index that does not know the package returns no candidates and a nil error.
	Candidates(ctx context.Context, index IndexUrl, name PackageName) ([]Candidate, error)
}

// An IndexSnapshot is an in-memory [Registry].  The zero value is an empty snapshot ready to use.
// An IndexSnapshot must not be modified while it is being read by a resolution.
type IndexSnapshot struct {
	pkgs map[IndexUrl]map[PackageName][]Candidate
}

var _ Registry = (*IndexSnapshot)(nil)

// Add publishes a candidate.  Adding the same (index, name, version) twice replaces the earlier
// candidate.
func (s *IndexSnapshot) Add(c Candidate) {
	if s.pkgs == nil {
		s.pkgs = map[IndexUrl]map[PackageName][]Candidate{}
	}
	byName := s.pkgs[c.Index]
	if byName == nil {
		byName = map[PackageName][]Candidate{}
		s.pkgs[c.Index] = byName
	}
	cs := slices.DeleteFunc(byName[c.Name], func(o Candidate) bool {
		return VersionCompare(o.Version, c.Version) == 0
	})
	cs = append(cs, c)
	slices.SortFunc(cs, func(a, b Candidate) int { return -VersionCompare(a.Version, b.Version) })
	byName[c.Name] = cs
}

func (s *IndexSnapshot) Candidates(ctx context.Context, index IndexUrl, name PackageName) ([]Candidate, error) {
	return slices.Clone(s.pkgs[index][name]), nil
}

// All returns every candidate published by the index, sorted by [CandidateCompare].
func (s *IndexSnapshot) All(index IndexUrl) []Candidate {
	var ret []Candidate
	for _, cs := range s.pkgs[index] {
		ret = append(ret, cs...)
	}
	slices.SortFunc(ret, CandidateCompare)
	return ret
}

// Indexes returns the indexes that publish at least one package, sorted.
func (s *IndexSnapshot) Indexes() []IndexUrl {
	var ret []IndexUrl
	for u := range s.pkgs {
		ret = append(ret, u)
	}
	slices.SortFunc(ret, IndexUrlCompare)
	return ret
}

type snapshotFile struct {
	Indexes []struct {
		Url      string `yaml:"url"`
		Packages map[string][]struct {
			Version  string   `yaml:"version"`
			Requires []string `yaml:"requires"`
		} `yaml:"packages"`
	} `yaml:"indexes"`
}

// LoadIndexSnapshot reads an [IndexSnapshot] from YAML of the form:
//
//	indexes:
//	  - url: https://a.example/simple
//	    packages:
//	      foo:
//	        - version: "1.0"
//	          requires: ["bar>=2; python_version >= '3.9'"]
func LoadIndexSnapshot(r io.Reader) (*IndexSnapshot, error) {
	var f snapshotFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode index snapshot: %w", err)
	}
	s := &IndexSnapshot{}
	for _, idx := range f.Indexes {
		u, err := ParseIndexUrl(idx.Url)
		if err != nil {
			return nil, err
		}
		for rawName, releases := range idx.Packages {
			name, err := ParsePackageName(rawName)
			if err != nil {
				return nil, fmt.Errorf("index %v: %w", u, err)
			}
			for _, rel := range releases {
				v, err := ParseVersion(rel.Version)
				if err != nil {
					return nil, fmt.Errorf("index %v: package %v: %w", u, name, err)
				}
				c := Candidate{Name: name, Version: v, Index: u}
				for _, rs := range rel.Requires {
					req, err := ParseRequirement(rs)
					if err != nil {
						return nil, fmt.Errorf("index %v: package %v: %w", u, c, err)
					}
					c.Requires = append(c.Requires, req)
				}
				s.Add(c)
			}
		}
	}
	return s, nil
}

type registryKey struct {
	index IndexUrl
	name  PackageName
}

// A CachedRegistry memoizes the answers of another [Registry].  It is safe for concurrent use and is
// meant to be shared by every fork of a resolution: it holds read-only index metadata, never
// per-fork decisions.  Failed lookups are not cached.
type CachedRegistry struct {
	r     Registry
	cache syncmap.Map[registryKey, func() ([]Candidate, error)]
}

var _ Registry = (*CachedRegistry)(nil)

// NewCachedRegistry wraps r.  If r is already a [*CachedRegistry] it is returned as is.
func NewCachedRegistry(r Registry) *CachedRegistry {
	if cr, ok := r.(*CachedRegistry); ok {
		return cr
	}
	return &CachedRegistry{r: r}
}

func (cr *CachedRegistry) Candidates(ctx context.Context, index IndexUrl, name PackageName) ([]Candidate, error) {
	k := registryKey{index, name}
	for {
		fn, loaded := cr.cache.LoadOrStore(k, sync.OnceValues(func() ([]Candidate, error) {
			slog.Log(ctx, logging.LevelTrace, "fetching candidates", "index", index, "package", name)
			return cr.r.Candidates(ctx, index, name)
		}))
		cs, err := fn()
		if err == nil {
			return slices.Clone(cs), nil
		} else if !loaded {
			// Allow a future (or concurrent) call to retry.
			cr.cache.Delete(k)
			return nil, err
		}
		// The call that stored the failed function deletes it; give it a chance to run.
		runtime.Gosched()
	}
}
