package forkres

import (
	"fmt"
	"strings"
)

// A Requirement is a dependency on a package: the package name, the acceptable versions, the
// environments in which the requirement applies, and optionally the one index the package must come
// from.
type Requirement struct {
	Name       PackageName
	Specifiers VersionSpecifiers
	// Marker restricts the requirement to matching environments.  The zero value applies
	// everywhere.
	Marker MarkerTree
	// Index pins the package to one index.  The zero value lets the resolver pick the first
	// configured index that provides the package.
	Index IndexUrl
}

// ParseRequirement parses a requirement of the form "name[specifiers][; marker]", for example
// `foo>=1.0,<2; sys_platform == "linux"`.  Specifiers may be wrapped in parentheses.  Extras and
// direct URL references are not supported.
func ParseRequirement(s string) (Requirement, error) {
	spec, marker, _ := strings.Cut(s, ";")
	spec = strings.TrimSpace(spec)
	end := strings.IndexFunc(spec, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			r == '-' || r == '_' || r == '.')
	})
	if end < 0 {
		end = len(spec)
	}
	var r Requirement
	var err error
	if r.Name, err = ParsePackageName(spec[:end]); err != nil {
		return Requirement{}, fmt.Errorf("requirement %q: %w", s, err)
	}
	rest := strings.TrimSpace(spec[end:])
	switch {
	case strings.HasPrefix(rest, "["):
		return Requirement{}, fmt.Errorf("requirement %q: extras are not supported", s)
	case strings.HasPrefix(rest, "@"):
		return Requirement{}, fmt.Errorf("requirement %q: direct URL references are not supported", s)
	case strings.HasPrefix(rest, "("):
		if !strings.HasSuffix(rest, ")") {
			return Requirement{}, fmt.Errorf("requirement %q: unbalanced parentheses", s)
		}
		rest = rest[1 : len(rest)-1]
	}
	if r.Specifiers, err = ParseVersionSpecifiers(rest); err != nil {
		return Requirement{}, fmt.Errorf("requirement %q: %w", s, err)
	}
	if r.Marker, err = ParseMarkerTree(marker); err != nil {
		return Requirement{}, fmt.Errorf("requirement %q: %w", s, err)
	}
	return r, nil
}

// MustParseRequirement is like [ParseRequirement] but panics on error.
func MustParseRequirement(s string) Requirement {
	r, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return r
}

// String renders the requirement in the form accepted by [ParseRequirement].  The index, if any,
// is not included; see [Requirement.Describe].
func (r Requirement) String() string {
	s := r.Name.String() + r.Specifiers.String()
	if !r.Marker.t.IsTrivialTrue() {
		s += "; " + r.Marker.String()
	}
	return s
}

// Describe is like [Requirement.String] but also names the pinned index, if any.
func (r Requirement) Describe() string {
	if r.Index.IsZero() {
		return r.String()
	}
	return fmt.Sprintf("%v (index: %v)", r, r.Index)
}
