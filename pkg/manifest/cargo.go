package manifest

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

type cargoParser struct{}

func newCargoParser() Parser { return cargoParser{} }

func (cargoParser) Ecosystem() string { return "cargo" }

func (cargoParser) Hints() []string { return []string{"Cargo.toml", "Cargo.lock"} }

func (cargoParser) Matches(p string) (Kind, bool) {
	switch path.Base(p) {
	case "Cargo.toml":
		return KindManifest, true
	case "Cargo.lock":
		return KindLockfile, true
	default:
		return "", false
	}
}

func (cargoParser) Parse(p string, data []byte) ([]Dependency, error) {
	if path.Base(p) == "Cargo.lock" {
		return parseCargoLock(data)
	}

	return parseCargoTOML(data)
}

type cargoTOML struct {
	Dependencies    map[string]toml.Primitive `toml:"dependencies"`
	DevDependencies map[string]toml.Primitive `toml:"dev-dependencies"`
	BuildDependencies map[string]toml.Primitive `toml:"build-dependencies"`
}

func parseCargoTOML(data []byte) ([]Dependency, error) {
	var doc cargoTOML

	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, fmt.Errorf("parse Cargo.toml: %w", err)
	}

	var deps []Dependency

	deps = append(deps, cargoDeps(md, doc.Dependencies, DependencyRuntime)...)
	deps = append(deps, cargoDeps(md, doc.DevDependencies, DependencyDevelopment)...)
	deps = append(deps, cargoDeps(md, doc.BuildDependencies, DependencyBuild)...)

	return deps, nil
}

func cargoDeps(md toml.MetaData, m map[string]toml.Primitive, depType DependencyType) []Dependency {
	if len(m) == 0 {
		return nil
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	sort.Strings(names)

	deps := make([]Dependency, 0, len(names))
	for _, name := range names {
		deps = append(deps, Dependency{Name: name, Requirement: cargoRequirement(md, m[name]), DependencyType: depType})
	}

	return deps
}

// cargoRequirement decodes a Cargo dependency spec, which is either a bare
// version string ("1.2") or a table ({version = "1.2", features = [...]}).
func cargoRequirement(md toml.MetaData, prim toml.Primitive) string {
	var asString string
	if err := md.PrimitiveDecode(prim, &asString); err == nil {
		return asString
	}

	var asTable struct {
		Version string `toml:"version"`
	}

	_ = md.PrimitiveDecode(prim, &asTable)

	return asTable.Version
}

type cargoLock struct {
	Package []struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
}

func parseCargoLock(data []byte) ([]Dependency, error) {
	var doc cargoLock
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("parse Cargo.lock: %w", err)
	}

	deps := make([]Dependency, 0, len(doc.Package))
	for _, pkg := range doc.Package {
		deps = append(deps, Dependency{Name: pkg.Name, Requirement: pkg.Version, DependencyType: DependencyRuntime})
	}

	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })

	return dedupeByName(deps), nil
}

// dedupeByName keeps the first entry for each name; Cargo.lock can list the
// same crate multiple times across a dependency graph with identical
// resolved versions once deduplicated by name at this layer.
func dedupeByName(deps []Dependency) []Dependency {
	seen := make(map[string]bool, len(deps))

	out := make([]Dependency, 0, len(deps))

	for _, d := range deps {
		if seen[strings.ToLower(d.Name)] {
			continue
		}

		seen[strings.ToLower(d.Name)] = true

		out = append(out, d)
	}

	return out
}
