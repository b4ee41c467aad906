package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolvedPaths holds every configured location made absolute against the
// directory that contains nyein.toml (or the working directory).
type ResolvedPaths struct {
	ProjectRoot string
	BundleOut   string
	StagingRoot string
	TSConfig    string
	NpmOut      string
	NpmTSConfig string
	Manifest    string
	HistoryDB   string
	WatchPaths  []string
}

func ResolvePaths(cfg *Config, baseDir string) (ResolvedPaths, error) {
	if strings.TrimSpace(baseDir) == "" {
		return ResolvedPaths{}, fmt.Errorf("base directory must not be empty")
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return ResolvedPaths{}, err
	}

	root := ResolveRelative(base, cfg.Graph.Root)
	out := ResolvedPaths{
		ProjectRoot: root,
		BundleOut:   ResolveRelative(root, cfg.Bundle.OutDir),
		StagingRoot: ResolveRelative(root, cfg.Bundle.StagingDir),
		TSConfig:    ResolveRelative(root, cfg.Bundle.TSConfig),
		NpmOut:      ResolveRelative(root, cfg.Npm.OutDir),
		NpmTSConfig: ResolveRelative(root, cfg.Npm.TSConfig),
		Manifest:    ResolveRelative(root, cfg.Npm.Manifest),
		HistoryDB:   ResolveRelative(root, cfg.History.Path),
	}
	for _, p := range cfg.Watch.Paths {
		out.WatchPaths = append(out.WatchPaths, ResolveRelative(root, p))
	}
	return out, nil
}

// ResolveRelative joins path onto base unless it is already absolute. An
// empty path stays empty.
func ResolveRelative(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
