package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mengsuenyan/fce"
	"github.com/mengsuenyan/fce/internal/fceerr"
	"github.com/mengsuenyan/fce/internal/moduleset"
)

// asFceError recovers the engine's typed *fceerr.Error from err, if it is
// (or wraps) one.
func asFceError(err error) (*fceerr.Error, bool) {
	var fe *fceerr.Error
	ok := fceerr.As(err, &fe)
	return fe, ok
}

// bootstrap loads the engine configuration (if configPath is set), builds a
// Registry, and loads every module discovered in modulesDir (which, if
// empty, falls back to the config's modules_dir).
func bootstrap(ctx context.Context, configPath, modulesDir string, log *logrus.Logger) (*fce.Registry, error) {
	cfg := fce.NewConfig()
	if configPath != "" {
		body, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fceerr.ConfigParseError(err)
		}
		cfg, err = fce.ConfigFromTOML(body)
		if err != nil {
			return nil, err
		}
	}
	if modulesDir != "" {
		cfg = cfg.WithModulesDir(modulesDir)
	}

	reg, err := fce.NewRegistry(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.ModulesDir() == "" {
		return reg, nil
	}
	sources, err := moduleset.Discover(cfg.ModulesDir())
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return reg, nil
	}
	if err := reg.LoadAll(ctx, sources); err != nil {
		return nil, err
	}
	return reg, nil
}
