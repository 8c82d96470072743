package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

type pypiParser struct{}

func newPyPIParser() Parser { return pypiParser{} }

func (pypiParser) Ecosystem() string { return "pypi" }

func (pypiParser) Hints() []string { return []string{"pyproject.toml", "requirements.txt"} }

func (pypiParser) Matches(p string) (Kind, bool) {
	switch path.Base(p) {
	case "pyproject.toml":
		return KindManifest, true
	case "requirements.txt":
		return KindManifest, true
	default:
		return "", false
	}
}

func (pypiParser) Parse(p string, data []byte) ([]Dependency, error) {
	if path.Base(p) == "requirements.txt" {
		return parseRequirementsTxt(data), nil
	}

	return parsePyprojectTOML(data)
}

// pep621Spec is a PEP 621 "name (extras) requirement" dependency string
// such as "requests>=2.0" or "black ; extra == 'dev'" (the marker suffix is
// kept as part of the requirement field verbatim).
var pep621Spec = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(.*)$`)

type pyprojectTOML struct {
	Project struct {
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies    map[string]toml.Primitive `toml:"dependencies"`
			DevDependencies map[string]toml.Primitive `toml:"dev-dependencies"`
			Group           map[string]struct {
				Dependencies map[string]toml.Primitive `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func parsePyprojectTOML(data []byte) ([]Dependency, error) {
	var doc pyprojectTOML

	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, fmt.Errorf("parse pyproject.toml: %w", err)
	}

	var deps []Dependency

	for _, spec := range doc.Project.Dependencies {
		if d, ok := parsePEP621Dep(spec, DependencyRuntime); ok {
			deps = append(deps, d)
		}
	}

	optionalGroups := make([]string, 0, len(doc.Project.OptionalDependencies))
	for group := range doc.Project.OptionalDependencies {
		optionalGroups = append(optionalGroups, group)
	}

	sort.Strings(optionalGroups)

	for _, group := range optionalGroups {
		for _, spec := range doc.Project.OptionalDependencies[group] {
			if d, ok := parsePEP621Dep(spec, DependencyDevelopment); ok {
				deps = append(deps, d)
			}
		}
	}

	deps = append(deps, poetryDeps(md, doc.Tool.Poetry.Dependencies, DependencyRuntime)...)
	deps = append(deps, poetryDeps(md, doc.Tool.Poetry.DevDependencies, DependencyDevelopment)...)

	groupNames := make([]string, 0, len(doc.Tool.Poetry.Group))
	for name := range doc.Tool.Poetry.Group {
		groupNames = append(groupNames, name)
	}

	sort.Strings(groupNames)

	for _, name := range groupNames {
		deps = append(deps, poetryDeps(md, doc.Tool.Poetry.Group[name].Dependencies, DependencyDevelopment)...)
	}

	return deps, nil
}

func parsePEP621Dep(spec string, depType DependencyType) (Dependency, bool) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Dependency{}, false
	}

	m := pep621Spec.FindStringSubmatch(spec)
	if m == nil {
		return Dependency{}, false
	}

	return Dependency{Name: m[1], Requirement: strings.TrimSpace(m[2]), DependencyType: depType}, true
}

func poetryDeps(md toml.MetaData, m map[string]toml.Primitive, depType DependencyType) []Dependency {
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
		if strings.EqualFold(name, "python") {
			continue
		}

		deps = append(deps, Dependency{Name: name, Requirement: poetryRequirement(md, m[name]), DependencyType: depType})
	}

	return deps
}

// poetryRequirement decodes a poetry dependency value, which is either a
// bare version string ("^1.2") or a table with a version key
// ({version = "^1.2", optional = true}).
func poetryRequirement(md toml.MetaData, prim toml.Primitive) string {
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

// requirementLine matches "name==1.2.3", "name>=1.0,<2.0", or bare "name".
var requirementLine = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(.*)$`)

func parseRequirementsTxt(data []byte) []Dependency {
	var deps []Dependency

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}

		m := requirementLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		deps = append(deps, Dependency{
			Name:           m[1],
			Requirement:    strings.TrimSpace(m[2]),
			DependencyType: DependencyRuntime,
		})
	}

	return deps
}
