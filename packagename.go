package forkres

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	validName     = regexp.MustCompile(`(?i)^([a-z0-9]|[a-z0-9][a-z0-9._-]*[a-z0-9])$`)
	nameSeparator = regexp.MustCompile(`[-_.]+`)
)

// A PackageName is a [normalized] package name.  Two spellings of the same name ("Foo_Bar",
// "foo-bar", "FOO.bar") parse to equal values, so a PackageName can be used directly as a map key.
// The zero value is not a valid name.
//
// [normalized]: https://packaging.python.org/en/latest/specifications/name-normalization/
type PackageName struct {
	name string
}

// ParsePackageName validates and normalizes a package name.
func ParsePackageName(s string) (PackageName, error) {
	if !validName.MatchString(s) {
		return PackageName{}, fmt.Errorf("invalid package name %q", s)
	}
	return PackageName{nameSeparator.ReplaceAllString(strings.ToLower(s), "-")}, nil
}

// MustParsePackageName is like [ParsePackageName] but panics on error.
func MustParsePackageName(s string) PackageName {
	n, err := ParsePackageName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the normalized name.
func (n PackageName) String() string {
	return n.name
}

// PackageNameCompare returns [strings.Compare] applied to the normalized names.
func PackageNameCompare(a, b PackageName) int {
	return strings.Compare(a.name, b.name)
}
