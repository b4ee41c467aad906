package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	ApplyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	normalizeGraph(&cfg)
	normalizeNpm(&cfg)
	normalizeWatch(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateBundle(&cfg); err != nil {
		return nil, err
	}
	if err := validateGraph(&cfg); err != nil {
		return nil, err
	}
	if err := validateCompiler(&cfg); err != nil {
		return nil, err
	}
	if err := validateNpm(&cfg); err != nil {
		return nil, err
	}
	if err := validateWatch(&cfg); err != nil {
		return nil, err
	}
	if err := validateHistory(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Bundle.OutDir) == "" {
		cfg.Bundle.OutDir = "dist"
	}
	if cfg.Bundle.Banner == "" {
		cfg.Bundle.Banner = DefaultBanner
	}
	if strings.TrimSpace(cfg.Bundle.StagingDir) == "" {
		cfg.Bundle.StagingDir = "._nyein"
	}
	if cfg.Bundle.CacheSize <= 0 {
		cfg.Bundle.CacheSize = 256
	}

	if strings.TrimSpace(cfg.Graph.Root) == "" {
		cfg.Graph.Root = "."
	}

	if strings.TrimSpace(cfg.Compiler.Command) == "" {
		cfg.Compiler.Command = "tsc"
	}
	if cfg.Compiler.Timeout <= 0 {
		cfg.Compiler.Timeout = 2 * time.Minute
	}

	if strings.TrimSpace(cfg.Npm.OutDir) == "" {
		cfg.Npm.OutDir = "dist"
	}
	if strings.TrimSpace(cfg.Npm.Manifest) == "" {
		cfg.Npm.Manifest = "package.json"
	}
	if cfg.Npm.Concurrency <= 0 {
		cfg.Npm.Concurrency = 2
	}

	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = []string{"."}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if cfg.Watch.MaxRebuildsPerSecond <= 0 {
		cfg.Watch.MaxRebuildsPerSecond = 2
	}
	if len(cfg.Watch.Exclude) == 0 {
		cfg.Watch.Exclude = []string{"**/node_modules/**", "**/.git/**", "**/._nyein/**"}
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = filepath.Join(".nyein", "history.db")
	}
	if cfg.History.BusyTimeout <= 0 {
		cfg.History.BusyTimeout = 5 * time.Second
	}
	if cfg.History.Retain <= 0 {
		cfg.History.Retain = 200
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "nyein"
	}
}

func normalizeGraph(cfg *Config) {
	cfg.Graph.Root = strings.TrimSpace(cfg.Graph.Root)
	cfg.Graph.Skip = trimNonEmpty(cfg.Graph.Skip)
}

// normalizeNpm accepts both "sub" and "./sub" keys and strips a leading "./"
// from the output directory the way npm paths are usually written.
func normalizeNpm(cfg *Config) {
	cfg.Npm.OutDir = strings.TrimPrefix(strings.TrimSpace(cfg.Npm.OutDir), "./")
	cfg.Npm.TSConfig = strings.TrimSpace(cfg.Npm.TSConfig)
	for i := range cfg.Npm.Entries {
		entry := &cfg.Npm.Entries[i]
		entry.Key = normalizeExportKey(entry.Key)
		entry.Path = strings.TrimSpace(entry.Path)
	}
}

func normalizeExportKey(raw string) string {
	key := strings.TrimSpace(raw)
	if key == "" || key == "main" || key == "." {
		if key == "." {
			return "main"
		}
		return key
	}
	key = strings.TrimSuffix(key, "/")
	if !strings.HasPrefix(key, "./") {
		key = "./" + strings.TrimPrefix(key, "/")
	}
	return key
}

func normalizeWatch(cfg *Config) {
	cfg.Watch.Paths = trimNonEmpty(cfg.Watch.Paths)
	cfg.Watch.Exclude = trimNonEmpty(cfg.Watch.Exclude)
}

func trimNonEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
