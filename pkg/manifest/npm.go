package manifest

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
)

type npmParser struct{}

func newNPMParser() Parser { return npmParser{} }

func (npmParser) Ecosystem() string { return "npm" }

func (npmParser) Hints() []string { return []string{"package.json", "package-lock.json"} }

func (npmParser) Matches(p string) (Kind, bool) {
	switch path.Base(p) {
	case "package.json":
		return KindManifest, true
	case "package-lock.json":
		return KindLockfile, true
	default:
		return "", false
	}
}

func (npmParser) Parse(p string, data []byte) ([]Dependency, error) {
	if path.Base(p) == "package-lock.json" {
		return parsePackageLock(data)
	}

	return parsePackageJSON(data)
}

type packageJSON struct {
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

func parsePackageJSON(data []byte) ([]Dependency, error) {
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}

	var deps []Dependency

	deps = append(deps, namedRequirements(pkg.Dependencies, DependencyRuntime)...)
	deps = append(deps, namedRequirements(pkg.DevDependencies, DependencyDevelopment)...)
	deps = append(deps, namedRequirements(pkg.PeerDependencies, DependencyPeer)...)
	deps = append(deps, namedRequirements(pkg.OptionalDependencies, DependencyRuntime)...)

	return deps, nil
}

// packageLock covers the npm v2/v3 lockfile "packages" map; "" is the root
// package, every other key is a node_modules-relative install path.
type packageLock struct {
	Packages map[string]struct {
		Version  string `json:"version"`
		Dev      bool   `json:"dev"`
		Peer     bool   `json:"peer"`
		Optional bool   `json:"optional"`
	} `json:"packages"`
}

func parsePackageLock(data []byte) ([]Dependency, error) {
	var lock packageLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parse package-lock.json: %w", err)
	}

	var deps []Dependency

	for key, entry := range lock.Packages {
		name := lockPackageName(key)
		if name == "" {
			continue
		}

		depType := DependencyRuntime

		switch {
		case entry.Dev:
			depType = DependencyDevelopment
		case entry.Peer:
			depType = DependencyPeer
		}

		deps = append(deps, Dependency{Name: name, Requirement: entry.Version, DependencyType: depType})
	}

	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })

	return deps, nil
}

// lockPackageName extracts a package name from a node_modules install path
// key, e.g. "node_modules/lodash" -> "lodash",
// "node_modules/@scope/pkg" -> "@scope/pkg".
func lockPackageName(key string) string {
	const prefix = "node_modules/"

	idx := strings.LastIndex(key, prefix)
	if idx < 0 {
		return ""
	}

	return key[idx+len(prefix):]
}

func namedRequirements(m map[string]string, depType DependencyType) []Dependency {
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
		deps = append(deps, Dependency{Name: name, Requirement: m[name], DependencyType: depType})
	}

	return deps
}
