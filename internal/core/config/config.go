package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultFileName is looked up in the working directory when --config is not given.
const DefaultFileName = "nyein.toml"

// DefaultBanner is prepended to merged artifacts unless disabled.
const DefaultBanner = "// Bundled by nyein. Edit the sources, not this file."

type Config struct {
	Version       int           `toml:"version"`
	Bundle        Bundle        `toml:"bundle"`
	Graph         Graph         `toml:"graph"`
	Compiler      Compiler      `toml:"compiler"`
	Npm           Npm           `toml:"npm"`
	Watch         Watch         `toml:"watch"`
	History       History       `toml:"history"`
	Observability Observability `toml:"observability"`
}

type Bundle struct {
	OutDir           string `toml:"out_dir"`
	Banner           string `toml:"banner"`
	BannerEnabled    *bool  `toml:"banner_enabled"`
	RenameDuplicates bool   `toml:"rename_duplicates"`
	// Strict turns format violations into fatal errors.
	Strict     *bool  `toml:"strict"`
	TypeCheck  *bool  `toml:"type_check"`
	TSConfig   string `toml:"tsconfig"`
	StagingDir string `toml:"staging_dir"`
	CacheSize  int    `toml:"cache_size"`
}

type Graph struct {
	Root          string   `toml:"root"`
	Skip          []string `toml:"skip"`
	FailOnSkipped bool     `toml:"fail_on_skipped"`
	// FollowRequire adds literal require() calls as graph edges.
	FollowRequire bool `toml:"follow_require"`
}

type Compiler struct {
	Command string        `toml:"command"`
	Args    []string      `toml:"args"`
	Timeout time.Duration `toml:"timeout"`
}

type Npm struct {
	OutDir               string     `toml:"out_dir"`
	TSConfig             string     `toml:"tsconfig"`
	Manifest             string     `toml:"manifest"`
	Entries              []NpmEntry `toml:"entries"`
	Concurrency          int        `toml:"concurrency"`
	PreserveEntryExports *bool      `toml:"preserve_entry_exports"`
}

// NpmEntry maps an export key ("main" or "./sub") to its entry file.
type NpmEntry struct {
	Key  string `toml:"key"`
	Path string `toml:"path"`
}

type Watch struct {
	Paths                []string      `toml:"paths"`
	Exclude              []string      `toml:"exclude"`
	Debounce             time.Duration `toml:"debounce"`
	MaxRebuildsPerSecond float64       `toml:"max_rebuilds_per_second"`
}

type History struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	Retain      int           `toml:"retain"`
}

type Observability struct {
	MetricsAddr   string `toml:"metrics_addr"`
	EnableTracing bool   `toml:"enable_tracing"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	ServiceName   string `toml:"service_name"`
}

// DefaultConfig returns the configuration used when no nyein.toml exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func (b Bundle) BannerText() string {
	if b.BannerEnabled != nil && !*b.BannerEnabled {
		return ""
	}
	return b.Banner
}

func (b Bundle) IsStrict() bool {
	return b.Strict == nil || *b.Strict
}

func (b Bundle) TypeCheckEnabled() bool {
	return b.TypeCheck == nil || *b.TypeCheck
}

func (n Npm) PreserveExports() bool {
	return n.PreserveEntryExports == nil || *n.PreserveEntryExports
}

// MainEntry returns the entry bound to the "main" key.
func (n Npm) MainEntry() (NpmEntry, bool) {
	for _, entry := range n.Entries {
		if entry.Key == "main" {
			return entry, true
		}
	}
	return NpmEntry{}, false
}

// Resolve finds the configuration file to load. An explicit path must exist;
// otherwise nyein.toml in dir is used when present. An empty result means
// defaults apply.
func Resolve(explicit, dir string) (string, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", err
		}
		return p, nil
	}
	candidate := filepath.Join(dir, DefaultFileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", nil
}

// LoadOrDefault loads path, or returns DefaultConfig when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := DefaultConfig()
		ApplyEnvOverrides(cfg)
		return cfg, nil
	}
	return Load(path)
}
