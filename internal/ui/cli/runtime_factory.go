package cli

import (
	coreapp "nyein/internal/core/app"
	"nyein/internal/core/config"
	"nyein/internal/data/manifest"
	"nyein/internal/engine/compiler"
)

// appFactory builds the App a command runs against. Tests substitute their
// own compiler through it.
type appFactory interface {
	New(cfg *config.Config, baseDir string, opts ...coreapp.Option) (*coreapp.App, error)
}

type coreAppFactory struct{}

func (coreAppFactory) New(cfg *config.Config, baseDir string, opts ...coreapp.Option) (*coreapp.App, error) {
	paths, err := config.ResolvePaths(cfg, baseDir)
	if err != nil {
		return nil, err
	}
	base := []coreapp.Option{
		coreapp.WithCompiler(compiler.NewTSC(cfg.Compiler.Command, cfg.Compiler.Args, cfg.Compiler.Timeout, paths.ProjectRoot)),
		coreapp.WithManifest(manifest.NewStore(paths.Manifest)),
	}
	return coreapp.New(cfg, baseDir, append(base, opts...)...)
}
