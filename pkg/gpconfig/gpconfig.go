// Package gpconfig resolves tunables and settings from four layers —
// explicit CLI flags, GIT_PKGS_* environment variables, git repo-config
// (pkgs.*, color.*, core.pager), and built-in defaults — in that priority
// order, via viper.
package gpconfig

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/codefang/pkg/gitlib"
)

const (
	defaultBatchSize        = 500
	defaultSnapshotInterval = 50
	defaultThreads          = 4
)

// IndexConfig holds the Indexer's (C5) tunables.
type IndexConfig struct {
	BatchSize        int `mapstructure:"batch_size"`
	SnapshotInterval int `mapstructure:"snapshot_interval"`
	Threads          int `mapstructure:"threads"`
}

// StoreConfig holds store location overrides.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds the telemetry package's verbosity settings.
type LoggingConfig struct {
	Verbose bool `mapstructure:"verbose"`
	Quiet   bool `mapstructure:"quiet"`
}

// ColorConfig holds output-coloring preferences.
type ColorConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the fully-resolved, layered configuration passed explicitly
// into every component constructor — no package-level global state.
type Config struct {
	Store      StoreConfig   `mapstructure:"store"`
	Index      IndexConfig   `mapstructure:"index"`
	Logging    LoggingConfig `mapstructure:"logging"`
	Color      ColorConfig   `mapstructure:"color"`
	Ecosystems []string      `mapstructure:"ecosystems"`
	Pager      string        `mapstructure:"pager"`
}

// Overrides carries CLI-flag values the caller actually set; nil fields
// mean "flag not provided" and fall through to the lower layers.
type Overrides struct {
	DBPath           *string
	BatchSize        *int
	SnapshotInterval *int
	Threads          *int
	Verbose          *bool
	Quiet            *bool
	NoColor          *bool
}

// Load resolves a Config for repo, layering flag overrides over
// GIT_PKGS_* env vars, over repo git-config (pkgs.*, color.*,
// core.pager), over built-in defaults. repo may be nil (e.g. `init`
// before a store exists) — repo-config and pager lookups are skipped.
func Load(repo *gitlib.Repository, overrides Overrides) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if repo != nil {
		mergeRepoConfig(v, repo)
	}

	// NO_COLOR's presence, regardless of value, disables color — handled
	// directly rather than through BindEnv since it isn't a plain scalar.
	if _, set := os.LookupEnv("NO_COLOR"); set {
		v.Set("color.enabled", false)
	}

	applyOverrides(v, overrides)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", "")
	v.SetDefault("index.batch_size", defaultBatchSize)
	v.SetDefault("index.snapshot_interval", defaultSnapshotInterval)
	v.SetDefault("index.threads", defaultThreads)
	v.SetDefault("logging.verbose", false)
	v.SetDefault("logging.quiet", false)
	v.SetDefault("color.enabled", true)
	v.SetDefault("ecosystems", []string{})
	v.SetDefault("pager", "")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("store.path", "GIT_PKGS_DB")
	_ = v.BindEnv("index.batch_size", "GIT_PKGS_BATCH_SIZE")
	_ = v.BindEnv("index.snapshot_interval", "GIT_PKGS_SNAPSHOT_INTERVAL")
	_ = v.BindEnv("index.threads", "GIT_PKGS_THREADS")
	_ = v.BindEnv("pager", "GIT_PAGER", "PAGER")
}

// mergeRepoConfig reads pkgs.*/color.*/core.pager from the repository's
// git config and merges them in at viper's "config" precedence tier —
// below explicit env bindings, above defaults.
func mergeRepoConfig(v *viper.Viper, repo *gitlib.Repository) {
	layer := map[string]any{}

	if ecosystems := repo.ConfigStrings("pkgs.ecosystems"); len(ecosystems) > 0 {
		layer["ecosystems"] = ecosystems
	}

	if batchSize, ok := repo.ConfigString("pkgs.batchSize"); ok {
		setNested(layer, "index.batch_size", batchSize)
	}

	if snapshotInterval, ok := repo.ConfigString("pkgs.snapshotInterval"); ok {
		setNested(layer, "index.snapshot_interval", snapshotInterval)
	}

	if threads, ok := repo.ConfigString("pkgs.threads"); ok {
		setNested(layer, "index.threads", threads)
	}

	if colorUI, ok := repo.ConfigString("color.ui"); ok {
		setNested(layer, "color.enabled", colorUI != "false" && colorUI != "never")
	}

	if colorPkgs, ok := repo.ConfigString("color.pkgs"); ok {
		setNested(layer, "color.enabled", colorPkgs != "false" && colorPkgs != "never")
	}

	if pager, ok := repo.ConfigString("core.pager"); ok {
		layer["pager"] = pager
	}

	if len(layer) > 0 {
		_ = v.MergeConfigMap(layer)
	}
}

// setNested writes value at a dotted key path into a nested map[string]any,
// the shape viper.MergeConfigMap expects.
func setNested(root map[string]any, dottedKey string, value any) {
	parts := strings.Split(dottedKey, ".")

	cursor := root
	for _, part := range parts[:len(parts)-1] {
		next, ok := cursor[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cursor[part] = next
		}

		cursor = next
	}

	cursor[parts[len(parts)-1]] = value
}

func applyOverrides(v *viper.Viper, o Overrides) {
	if o.DBPath != nil {
		v.Set("store.path", *o.DBPath)
	}

	if o.BatchSize != nil {
		v.Set("index.batch_size", *o.BatchSize)
	}

	if o.SnapshotInterval != nil {
		v.Set("index.snapshot_interval", *o.SnapshotInterval)
	}

	if o.Threads != nil {
		v.Set("index.threads", *o.Threads)
	}

	if o.Verbose != nil {
		v.Set("logging.verbose", *o.Verbose)
	}

	if o.Quiet != nil {
		v.Set("logging.quiet", *o.Quiet)
	}

	if o.NoColor != nil && *o.NoColor {
		v.Set("color.enabled", false)
	}
}
