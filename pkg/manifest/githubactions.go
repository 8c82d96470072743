package manifest

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type githubActionsParser struct{}

func newGitHubActionsParser() Parser { return githubActionsParser{} }

func (githubActionsParser) Ecosystem() string { return "github-actions" }

func (githubActionsParser) Hints() []string { return []string{".github/workflows/"} }

func (githubActionsParser) Matches(p string) (Kind, bool) {
	dir := path.Dir(p)
	ext := path.Ext(p)

	if (strings.HasSuffix(dir, ".github/workflows") || strings.Contains(dir, ".github/workflows")) &&
		(ext == ".yml" || ext == ".yaml") {
		return KindManifest, true
	}

	return "", false
}

type workflowFile struct {
	Jobs map[string]struct {
		Steps []struct {
			Uses string `yaml:"uses"`
		} `yaml:"steps"`
	} `yaml:"jobs"`
}

func (githubActionsParser) Parse(_ string, data []byte) ([]Dependency, error) {
	var wf workflowFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow file: %w", err)
	}

	jobNames := make([]string, 0, len(wf.Jobs))
	for name := range wf.Jobs {
		jobNames = append(jobNames, name)
	}

	sort.Strings(jobNames)

	var deps []Dependency

	seen := make(map[string]bool)

	for _, jobName := range jobNames {
		for _, step := range wf.Jobs[jobName].Steps {
			if step.Uses == "" || seen[step.Uses] {
				continue
			}

			seen[step.Uses] = true

			name, ref := splitActionRef(step.Uses)
			deps = append(deps, Dependency{Name: name, Requirement: ref, DependencyType: DependencyAction})
		}
	}

	return deps, nil
}

// splitActionRef splits "owner/action@ref" (or "owner/action/sub@ref" for a
// subdirectory action) into (name, ref).
func splitActionRef(uses string) (name, ref string) {
	if idx := strings.LastIndex(uses, "@"); idx >= 0 {
		return uses[:idx], uses[idx+1:]
	}

	return uses, ""
}
