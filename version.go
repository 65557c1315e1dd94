package forkres

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// A Version is a package version.  Only the release segment of a [version specifier] is supported:
// one to three dot-separated non-negative integers ("2", "1.0", "2.31.0").  Versions are ordered
// numerically segment by segment with missing segments treated as zero, so "1.0" and "1.0.0" are
// equal (see [VersionCompare]) even though they render differently.
//
// [version specifier]: https://packaging.python.org/en/latest/specifications/version-specifiers/
type Version struct {
	raw string
	sv  string // The same version in the form understood by [semver].
}

// ParseVersion parses a release-only version.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	sv := "v" + s
	if !semver.IsValid(sv) || semver.Prerelease(sv) != "" || semver.Build(sv) != "" {
		return Version{}, fmt.Errorf("invalid version %q; expected N[.N[.N]]", s)
	}
	return Version{raw: s, sv: sv}, nil
}

// MustParseVersion is like [ParseVersion] but panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as it was written.
func (v Version) String() string {
	return v.raw
}

// segments returns the number of release segments as written.
func (v Version) segments() int {
	return strings.Count(v.raw, ".") + 1
}

// VersionCompare returns [semver.Compare] applied to the two versions.
func VersionCompare(a, b Version) int {
	return semver.Compare(a.sv, b.sv)
}

// samePrefix reports whether the first n release segments of a and b are equal.
func samePrefix(a, b Version, n int) bool {
	switch n {
	case 1:
		return semver.Major(a.sv) == semver.Major(b.sv)
	case 2:
		return semver.MajorMinor(a.sv) == semver.MajorMinor(b.sv)
	default:
		return semver.Compare(a.sv, b.sv) == 0
	}
}

// A VersionSpecifier is a single version clause such as ">=1.0" or "==1.4.*".
type VersionSpecifier struct {
	Op      string // One of ==, !=, <, <=, >, >=, ~=.
	Version Version
	// Wildcard is set for "==V.*" and "!=V.*", which match every version with the same leading
	// segments as Version.
	Wildcard bool
}

func (s VersionSpecifier) String() string {
	if s.Wildcard {
		return s.Op + s.Version.String() + ".*"
	}
	return s.Op + s.Version.String()
}

// Contains reports whether v satisfies the specifier.
func (s VersionSpecifier) Contains(v Version) bool {
	cmp := VersionCompare(v, s.Version)
	switch s.Op {
	case "==":
		if s.Wildcard {
			return samePrefix(v, s.Version, s.Version.segments())
		}
		return cmp == 0
	case "!=":
		if s.Wildcard {
			return !samePrefix(v, s.Version, s.Version.segments())
		}
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "~=":
		return cmp >= 0 && samePrefix(v, s.Version, s.Version.segments()-1)
	}
	panic(fmt.Errorf("unknown version operator %q", s.Op))
}

// VersionSpecifiers is a conjunction of [VersionSpecifier] clauses.  The empty set matches every
// version.
type VersionSpecifiers []VersionSpecifier

// Operators are listed longest first so that prefix matching picks the right one.
var versionOps = []string{"~=", "==", "!=", "<=", ">=", "<", ">"}

// ParseVersionSpecifiers parses a comma-separated list of clauses, for example ">=1.0, <2".
func ParseVersionSpecifiers(s string) (VersionSpecifiers, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var ret VersionSpecifiers
	for clause := range strings.SplitSeq(s, ",") {
		clause = strings.TrimSpace(clause)
		var spec VersionSpecifier
		for _, op := range versionOps {
			if rest, ok := strings.CutPrefix(clause, op); ok {
				spec.Op = op
				clause = strings.TrimSpace(rest)
				break
			}
		}
		if spec.Op == "" {
			return nil, fmt.Errorf("invalid version specifier %q: missing operator", clause)
		}
		if rest, ok := strings.CutSuffix(clause, ".*"); ok {
			if spec.Op != "==" && spec.Op != "!=" {
				return nil, fmt.Errorf("invalid version specifier %q: wildcards require == or !=", spec.Op+clause)
			}
			spec.Wildcard = true
			clause = rest
		}
		v, err := ParseVersion(clause)
		if err != nil {
			return nil, fmt.Errorf("invalid version specifier %q: %w", spec.Op+clause, err)
		}
		if spec.Op == "~=" && v.segments() < 2 {
			return nil, fmt.Errorf("invalid version specifier %q: ~= requires at least two release segments", spec.Op+clause)
		}
		spec.Version = v
		ret = append(ret, spec)
	}
	return ret, nil
}

func (vs VersionSpecifiers) String() string {
	parts := make([]string, len(vs))
	for i, s := range vs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// Contains reports whether v satisfies every clause.
func (vs VersionSpecifiers) Contains(v Version) bool {
	for _, s := range vs {
		if !s.Contains(v) {
			return false
		}
	}
	return true
}
