package forkres

import (
	"cmp"
	"fmt"
)

// A Candidate is one release of a package as published by one index, together with the
// requirements that release declares.
type Candidate struct {
	Name     PackageName
	Version  Version
	Index    IndexUrl
	Requires []Requirement
}

// String returns "name==version".
func (c Candidate) String() string {
	return fmt.Sprintf("%v==%v", c.Name, c.Version)
}

// CandidateCompare orders candidates by name, then version (oldest first), then index.
func CandidateCompare(a, b Candidate) int {
	return cmp.Or(
		PackageNameCompare(a.Name, b.Name),
		VersionCompare(a.Version, b.Version),
		IndexUrlCompare(a.Index, b.Index))
}
