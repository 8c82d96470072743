// Package manifest identifies and parses dependency manifests and
// lockfiles across ecosystems. Identification and parsing are pure
// functions of (path, bytes): no I/O, no global state.
package manifest

// Kind distinguishes a human-authored manifest from a resolver-generated
// lockfile.
type Kind string

const (
	KindManifest Kind = "manifest"
	KindLockfile Kind = "lockfile"
)

// DependencyType classifies a dependency within its ecosystem.
type DependencyType string

const (
	DependencyRuntime     DependencyType = "runtime"
	DependencyDevelopment DependencyType = "development"
	DependencyPeer        DependencyType = "peer"
	DependencyIndirect    DependencyType = "indirect"
	DependencyBuild       DependencyType = "build"
	DependencyAction      DependencyType = "action"
)

// Dependency is one package declaration found in a manifest or lockfile.
type Dependency struct {
	Name           string
	Requirement    string
	DependencyType DependencyType
}

// Result is C1's parse output for one recognized manifest file.
type Result struct {
	Ecosystem    string
	Kind         Kind
	Dependencies []Dependency
}

// Parser recognizes and parses one ecosystem's manifest/lockfile shapes.
type Parser interface {
	// Ecosystem names the package-manager identity this parser produces
	// (e.g. "npm", "rubygems").
	Ecosystem() string
	// Matches reports whether path looks like a manifest or lockfile this
	// parser understands, by name/extension shape only (no content read).
	Matches(path string) (kind Kind, ok bool)
	// Parse turns file content into a dependency list. A returned error is
	// always a recoverable parse failure, never a structural one.
	Parse(path string, data []byte) ([]Dependency, error)
}

// Hinter is implemented by parsers that can report literal path fragments
// for the analyzer's quick prefilter regex, so it need not call Matches on
// every changed path of every commit.
type Hinter interface {
	Hints() []string
}

// EcosystemFilter reports whether results for the given ecosystem should be
// kept. A nil filter keeps everything.
type EcosystemFilter func(ecosystem string) bool

// Registry holds an ordered set of ecosystem parsers and implements the C1
// adapter contract: Identify and Parse are deterministic pure functions of
// their inputs.
type Registry struct {
	parsers []Parser
	filter  EcosystemFilter
}

// NewRegistry builds a registry from the given parsers, tried in order.
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Default returns the registry wired with every built-in ecosystem parser,
// matching git-pkgs' out-of-the-box manifest coverage.
func Default() *Registry {
	return NewRegistry(
		newRubygemsParser(),
		newNPMParser(),
		newPyPIParser(),
		newCargoParser(),
		newGoParser(),
		newDockerParser(),
		newGitHubActionsParser(),
	)
}

// WithFilter returns a copy of the registry that rejects parse results for
// ecosystems the filter excludes, built from the repo-config
// pkgs.ecosystems allowlist.
func (reg *Registry) WithFilter(filter EcosystemFilter) *Registry {
	return &Registry{parsers: reg.parsers, filter: filter}
}

// Identify returns the subset of paths recognized as a manifest or
// lockfile by any registered parser.
func (reg *Registry) Identify(paths []string) []string {
	var out []string

	for _, p := range paths {
		if _, _, ok := reg.find(p); ok {
			out = append(out, p)
		}
	}

	return out
}

// Parse parses path's content into a Result, or returns ok=false if no
// parser recognizes the path, or the matching ecosystem is filtered out.
func (reg *Registry) Parse(path string, data []byte) (result *Result, ok bool, err error) {
	parser, kind, found := reg.find(path)
	if !found {
		return nil, false, nil
	}

	if reg.filter != nil && !reg.filter(parser.Ecosystem()) {
		return nil, false, nil
	}

	deps, err := parser.Parse(path, data)
	if err != nil {
		return nil, false, err
	}

	return &Result{Ecosystem: parser.Ecosystem(), Kind: kind, Dependencies: deps}, true, nil
}

// Hints collects every parser's path hints, for building the analyzer's
// quick-prefilter pattern.
func (reg *Registry) Hints() []string {
	var out []string

	for _, p := range reg.parsers {
		if h, ok := p.(Hinter); ok {
			out = append(out, h.Hints()...)
		}
	}

	return out
}

// find returns the first parser (in registration order) that recognizes
// path, per §4.1's "only the first is taken" rule.
func (reg *Registry) find(path string) (Parser, Kind, bool) {
	for _, p := range reg.parsers {
		if kind, ok := p.Matches(path); ok {
			return p, kind, true
		}
	}

	return nil, "", false
}
