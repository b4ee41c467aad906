package config

import (
	"fmt"
	"nyein/internal/core/config/helpers"
	"path/filepath"
	"strings"
)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateBundle(cfg *Config) error {
	if strings.TrimSpace(cfg.Bundle.OutDir) == "" {
		return fmt.Errorf("bundle.out_dir must not be empty")
	}
	staging := filepath.Clean(cfg.Bundle.StagingDir)
	if staging == "." || staging == ".." || filepath.IsAbs(staging) {
		return fmt.Errorf("bundle.staging_dir must be a relative subdirectory, got %q", cfg.Bundle.StagingDir)
	}
	if helpers.IsPathOverlap(filepath.Clean(cfg.Bundle.OutDir), staging) {
		return fmt.Errorf("bundle.staging_dir %q overlaps bundle.out_dir %q", cfg.Bundle.StagingDir, cfg.Bundle.OutDir)
	}
	return nil
}

func validateGraph(cfg *Config) error {
	for i, pattern := range cfg.Graph.Skip {
		if err := helpers.ValidateGlob(pattern); err != nil {
			return fmt.Errorf("graph.skip[%d]: %w", i, err)
		}
	}
	return nil
}

func validateCompiler(cfg *Config) error {
	if strings.ContainsAny(cfg.Compiler.Command, " \t") && !filepath.IsAbs(cfg.Compiler.Command) {
		return fmt.Errorf("compiler.command %q must be a single executable; put flags in compiler.args", cfg.Compiler.Command)
	}
	for i, arg := range cfg.Compiler.Args {
		switch strings.TrimSpace(arg) {
		case "-p", "--project", "--outDir", "--module":
			return fmt.Errorf("compiler.args[%d] %q is managed by nyein", i, arg)
		}
	}
	return nil
}

// validateNpm only checks entries when some are configured; `npm` itself
// rejects a config without a main entry.
func validateNpm(cfg *Config) error {
	entries := cfg.Npm.Entries
	if len(entries) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(entries))
	hasMain := false
	for i, entry := range entries {
		ref := fmt.Sprintf("npm.entries[%d]", i)
		if entry.Key == "" {
			return fmt.Errorf("%s.key must not be empty", ref)
		}
		if entry.Path == "" {
			return fmt.Errorf("%s.path must not be empty", ref)
		}
		if seen[entry.Key] {
			return fmt.Errorf("duplicate npm entry key %q", entry.Key)
		}
		seen[entry.Key] = true
		if entry.Key == "main" {
			hasMain = true
		}
		if helpers.HasWildcard(entry.Key) {
			return fmt.Errorf("%s.key %q must not contain wildcards", ref, entry.Key)
		}
	}
	if !hasMain {
		return fmt.Errorf("npm.entries must include a %q entry", "main")
	}
	if cfg.Npm.OutDir == "" || filepath.IsAbs(cfg.Npm.OutDir) || strings.HasPrefix(filepath.Clean(cfg.Npm.OutDir), "..") {
		return fmt.Errorf("npm.out_dir must be a relative path inside the package, got %q", cfg.Npm.OutDir)
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	for i, pattern := range cfg.Watch.Exclude {
		if err := helpers.ValidateGlob(pattern); err != nil {
			return fmt.Errorf("watch.exclude[%d]: %w", i, err)
		}
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return fmt.Errorf("history.path must not be empty when history is enabled")
	}
	return nil
}

// Validate runs every check and returns all failures instead of the first.
func Validate(cfg *Config) []error {
	var errs []error
	checks := []func(*Config) error{
		validateVersion,
		validateBundle,
		validateGraph,
		validateCompiler,
		validateNpm,
		validateWatch,
		validateHistory,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
