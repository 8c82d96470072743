package manifest

import (
	"bufio"
	"bytes"
	"path"
	"regexp"
	"strings"
)

// fromLine matches a Dockerfile `FROM image[:tag|@digest] [AS stage]`
// instruction. One dependency per build stage, except a stage that starts
// from an earlier stage.
var fromLine = regexp.MustCompile(`(?i)^\s*FROM\s+(\S+)`)

type dockerParser struct{}

func newDockerParser() Parser { return dockerParser{} }

func (dockerParser) Ecosystem() string { return "docker" }

func (dockerParser) Hints() []string { return []string{"Dockerfile"} }

func (dockerParser) Matches(p string) (Kind, bool) {
	base := path.Base(p)
	if base == "Dockerfile" || strings.HasPrefix(base, "Dockerfile.") {
		return KindManifest, true
	}

	return "", false
}

func (dockerParser) Parse(_ string, data []byte) ([]Dependency, error) {
	var deps []Dependency

	stages := map[string]bool{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := fromLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		image := m[1]
		isStage := stages[strings.ToLower(image)]

		if fields := strings.Fields(scanner.Text()); len(fields) >= 4 && strings.EqualFold(fields[2], "AS") {
			stages[strings.ToLower(fields[3])] = true
		}

		// Skip referencing an earlier build stage by name ("FROM builder").
		if isStage {
			continue
		}

		name, ref := splitImageRef(image)
		deps = append(deps, Dependency{Name: name, Requirement: ref, DependencyType: DependencyBuild})
	}

	return deps, nil
}

// splitImageRef splits "name:tag" or "name@digest" into (name, ref). A bare
// name with neither gets ref "latest".
func splitImageRef(image string) (name, ref string) {
	if idx := strings.LastIndex(image, "@"); idx >= 0 {
		return image[:idx], image[idx+1:]
	}

	// A registry host may itself contain a colon (host:port/name), so only
	// split on the colon after the last slash.
	slash := strings.LastIndex(image, "/")

	colon := strings.LastIndex(image, ":")
	if colon > slash {
		return image[:colon], image[colon+1:]
	}

	return image, "latest"
}
