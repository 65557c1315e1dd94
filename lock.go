package forkres

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// LockVersion is the version of the lock file format written by [Lock.Write].
const LockVersion = 1

// A Lock is the serializable form of a set of resolutions.
type Lock struct {
	Version int `yaml:"version"`
	// ContentHash identifies the requirements the lock was resolved from.  See [ContentHash].
	ContentHash string     `yaml:"content-hash"`
	Forks       []LockFork `yaml:"forks"`
}

// A LockFork is one [Resolution] in a [Lock].
type LockFork struct {
	Markers  string        `yaml:"markers"`
	Packages []LockPackage `yaml:"packages"`
}

// A LockPackage is one selected [Candidate] in a [LockFork].
type LockPackage struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Index        string   `yaml:"index"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// ContentHash returns a stable digest of the requirements: the hex xxhash64 of their renderings
// (including any pinned index), sorted and newline-joined.  The order of reqs does not matter.
func ContentHash(reqs []Requirement) string {
	lines := make([]string, len(reqs))
	for i, r := range reqs {
		lines[i] = r.Describe()
	}
	slices.Sort(lines)
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(lines, "\n")))
}

// NewLock builds a [Lock] from the resolutions of reqs, for example as returned by [Resolve].
func NewLock(reqs []Requirement, resolutions []*Resolution) *Lock {
	l := &Lock{Version: LockVersion, ContentHash: ContentHash(reqs)}
	for _, res := range resolutions {
		f := LockFork{Markers: res.Markers.String()}
		for _, c := range res.Packages {
			p := LockPackage{Name: c.Name.String(), Version: c.Version.String(), Index: c.Index.String()}
			for d := range res.DepsOf(c.Name) {
				p.Dependencies = append(p.Dependencies, d.String())
			}
			f.Packages = append(f.Packages, p)
		}
		l.Forks = append(l.Forks, f)
	}
	return l
}

// Write encodes the lock as YAML.
func (l *Lock) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("failed to encode lock: %w", err)
	}
	return enc.Close()
}
