// Package fakeindex makes it easy to populate in-memory package indexes to facilitate testing.
package fakeindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/rhansen/forkres"
)

// DefaultIndex is the index a fake release is published to unless [Index] says otherwise.
var DefaultIndex = forkres.MustParseIndexUrl("https://pypi.example/simple")

type config struct {
	forkres.Candidate
}

func (cfg *config) Check() error {
	if cfg.Name == (forkres.PackageName{}) {
		return fmt.Errorf("package name not set")
	}
	if cfg.Version == (forkres.Version{}) {
		return fmt.Errorf("package %v: version not set", cfg.Name)
	}
	return nil
}

// An Option controls the creation of a fake release.
type Option func(*config) error

// Index returns an option that sets the index the release is published to.
func Index(url string) Option {
	return func(cfg *config) error {
		u, err := forkres.ParseIndexUrl(url)
		if err != nil {
			return err
		}
		cfg.Index = u
		return nil
	}
}

// Id returns an option that sets the release's name and version.  The given string has the form
// name==version, e.g., "foo==1.2".
func Id(nameVer string) Option {
	return func(cfg *config) error {
		name, ver, ok := strings.Cut(nameVer, "==")
		if !ok {
			return fmt.Errorf("invalid release %q; expected name==version", nameVer)
		}
		var err error
		if cfg.Name, err = forkres.ParsePackageName(name); err != nil {
			return err
		}
		cfg.Version, err = forkres.ParseVersion(ver)
		return err
	}
}

// Require returns an option that adds a requirement (e.g., "bar>=2; sys_platform == 'linux'") to the
// release.
func Require(req string) Option {
	return func(cfg *config) error {
		r, err := forkres.ParseRequirement(req)
		if err != nil {
			return err
		}
		cfg.Requires = append(cfg.Requires, r)
		return nil
	}
}

// RequireFrom is like [Require] but also pins the required package to the given index.  Index
// snapshot files cannot express such requirements.
func RequireFrom(req, index string) Option {
	return func(cfg *config) error {
		if err := Require(req)(cfg); err != nil {
			return err
		}
		u, err := forkres.ParseIndexUrl(index)
		if err != nil {
			return err
		}
		cfg.Requires[len(cfg.Requires)-1].Index = u
		return nil
	}
}

// A FakeIndex is a set of fake indexes backed by a [forkres.IndexSnapshot].  It also counts
// lookups and can be told to fail them, which is handy for testing caches.
type FakeIndex struct {
	snapshot forkres.IndexSnapshot

	mu    sync.Mutex
	calls int
	fail  int
}

var _ forkres.Registry = (*FakeIndex)(nil)

// New returns an empty [FakeIndex].
func New() *FakeIndex {
	return &FakeIndex{}
}

// Add publishes a fake release.  By default the release is published to [DefaultIndex] and has no
// requirements.
func (fi *FakeIndex) Add(opts ...Option) error {
	cfg := &config{forkres.Candidate{Index: DefaultIndex}}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return err
		}
	}
	if err := cfg.Check(); err != nil {
		return err
	}
	slog.Debug("adding fake release", "release", cfg.Candidate, "index", cfg.Index)
	fi.snapshot.Add(cfg.Candidate)
	return nil
}

// AddAll is a convenience method to make it easier to add many releases at a time.
func (fi *FakeIndex) AddAll(optss ...[]Option) error {
	for _, opts := range optss {
		if err := fi.Add(opts...); err != nil {
			return err
		}
	}
	return nil
}

// AddFromDir reads every *.yaml file in the given directory with [forkres.LoadIndexSnapshot] and
// publishes all of the releases it describes.
func (fi *FakeIndex) AddFromDir(ctx context.Context, dataDir string) (retErr error) {
	r, err := os.OpenRoot(dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); retErr == nil {
			retErr = err
		}
	}()
	ents, err := fs.ReadDir(r.FS(), ".")
	if err != nil {
		return err
	}
	for _, e := range ents {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		if err := fi.addFile(ctx, r, e.Name()); err != nil {
			return fmt.Errorf("%v: %w", e.Name(), err)
		}
	}
	return nil
}

func (fi *FakeIndex) addFile(ctx context.Context, r *os.Root, name string) (retErr error) {
	f, err := r.Open(name)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); retErr == nil {
			retErr = err
		}
	}()
	s, err := forkres.LoadIndexSnapshot(f)
	if err != nil {
		return err
	}
	for _, u := range s.Indexes() {
		for _, c := range s.All(u) {
			fi.snapshot.Add(c)
		}
	}
	return nil
}

// ErrInjected is returned by lookups that [FakeIndex.FailNext] told to fail.
var ErrInjected = errors.New("injected lookup failure")

// FailNext makes the next n lookups fail with [ErrInjected].
func (fi *FakeIndex) FailNext(n int) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.fail = n
}

// Calls returns the number of lookups so far, including failed ones.
func (fi *FakeIndex) Calls() int {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.calls
}

func (fi *FakeIndex) Candidates(ctx context.Context, index forkres.IndexUrl, name forkres.PackageName) ([]forkres.Candidate, error) {
	fi.mu.Lock()
	fi.calls++
	fail := fi.fail > 0
	if fail {
		fi.fail--
	}
	fi.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return fi.snapshot.Candidates(ctx, index, name)
}

// TestFakeIndex returns a [FakeIndex] populated with the given releases, failing the test on error.
func TestFakeIndex(t *testing.T, optss ...[]Option) *FakeIndex {
	t.Helper()
	fi := New()
	if err := fi.AddAll(optss...); err != nil {
		t.Fatal(err)
	}
	return fi
}
