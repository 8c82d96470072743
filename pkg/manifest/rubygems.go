package manifest

import (
	"bufio"
	"bytes"
	"path"
	"regexp"
)

// gemLine matches `gem "name", "requirement"` (or single-quoted), ignoring
// any further options (`, group: :test`, ...).
var gemLine = regexp.MustCompile(`^\s*gem\s+['"]([^'"]+)['"](?:\s*,\s*['"]([^'"]+)['"])?`)

// lockSpecLine matches a GEM section dependency line in Gemfile.lock, e.g.
// "    rails (7.0.4)".
var lockSpecLine = regexp.MustCompile(`^    ([a-zA-Z0-9_.-]+)\s+\(([^)]+)\)`)

type rubygemsParser struct{}

func newRubygemsParser() Parser { return rubygemsParser{} }

func (rubygemsParser) Ecosystem() string { return "rubygems" }

func (rubygemsParser) Matches(p string) (Kind, bool) {
	base := path.Base(p)

	switch {
	case base == "Gemfile":
		return KindManifest, true
	case base == "Gemfile.lock":
		return KindLockfile, true
	case path.Ext(base) == ".gemspec":
		return KindManifest, true
	default:
		return "", false
	}
}

func (rubygemsParser) Hints() []string {
	return []string{"Gemfile", "Gemfile.lock", ".gemspec"}
}

func (rubygemsParser) Parse(p string, data []byte) ([]Dependency, error) {
	base := path.Base(p)
	if base == "Gemfile.lock" {
		return parseGemfileLock(data), nil
	}

	return parseGemfile(data), nil
}

func parseGemfile(data []byte) []Dependency {
	var deps []Dependency

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := gemLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		deps = append(deps, Dependency{
			Name:           m[1],
			Requirement:    m[2],
			DependencyType: DependencyRuntime,
		})
	}

	return deps
}

func parseGemfileLock(data []byte) []Dependency {
	var (
		deps   []Dependency
		inGems bool
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "GEM":
			inGems = true
			continue
		case line != "" && line[0] != ' ' && line[0] != '\t':
			inGems = false
		}

		if !inGems {
			continue
		}

		m := lockSpecLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		deps = append(deps, Dependency{
			Name:           m[1],
			Requirement:    m[2],
			DependencyType: DependencyRuntime,
		})
	}

	return deps
}
