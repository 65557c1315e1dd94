package forkres

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// A Project is the input to a resolution: the configured indexes in priority order and the root
// requirements.
type Project struct {
	Indexes      []IndexUrl
	Requirements []Requirement
}

type projectFile struct {
	Indexes      []string `yaml:"indexes"`
	Requirements []struct {
		Requirement string `yaml:"requirement"`
		Index       string `yaml:"index"`
	} `yaml:"requirements"`
}

// LoadProject reads a [Project] from YAML of the form:
//
//	indexes:
//	  - https://pypi.example/simple
//	requirements:
//	  - requirement: "foo==1.0; sys_platform == 'linux'"
//	    index: https://a.example/simple
//	  - requirement: bar>=2
//
// A requirement's index, if given, does not have to be listed under indexes.
func LoadProject(r io.Reader) (*Project, error) {
	var f projectFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	p := &Project{}
	for _, s := range f.Indexes {
		u, err := ParseIndexUrl(s)
		if err != nil {
			return nil, err
		}
		p.Indexes = append(p.Indexes, u)
	}
	for _, fr := range f.Requirements {
		req, err := ParseRequirement(fr.Requirement)
		if err != nil {
			return nil, err
		}
		if fr.Index != "" {
			if req.Index, err = ParseIndexUrl(fr.Index); err != nil {
				return nil, fmt.Errorf("requirement %q: %w", fr.Requirement, err)
			}
		}
		p.Requirements = append(p.Requirements, req)
	}
	return p, nil
}
