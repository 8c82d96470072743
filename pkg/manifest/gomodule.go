package manifest

import (
	"fmt"
	"path"

	"golang.org/x/mod/modfile"
)

type goParser struct{}

func newGoParser() Parser { return goParser{} }

func (goParser) Ecosystem() string { return "go" }

func (goParser) Hints() []string { return []string{"go.mod"} }

func (goParser) Matches(p string) (Kind, bool) {
	if path.Base(p) == "go.mod" {
		return KindManifest, true
	}

	return "", false
}

func (goParser) Parse(_ string, data []byte) ([]Dependency, error) {
	file, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return nil, fmt.Errorf("parse go.mod: %w", err)
	}

	deps := make([]Dependency, 0, len(file.Require))

	for _, req := range file.Require {
		depType := DependencyRuntime
		if req.Indirect {
			depType = DependencyIndirect
		}

		deps = append(deps, Dependency{
			Name:           req.Mod.Path,
			Requirement:    req.Mod.Version,
			DependencyType: depType,
		})
	}

	return deps, nil
}
