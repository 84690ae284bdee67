package main

import (
	"flag"
	"fmt"

	"github.com/jaennil/guide_helper/backend/geodata/internal/app"
	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source/elevation"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/config"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
)

// tileRange is the inclusive range of tile indices a command works on.
type tileRange struct {
	source     string
	minX, minZ int
	maxX, maxZ int
}

func (r *tileRange) setFlags(f *flag.FlagSet) {
	f.StringVar(&r.source, "source", elevation.Name, "Source name (srtm, osm)")
	f.IntVar(&r.minX, "min-x", 0, "Smallest tile X index")
	f.IntVar(&r.minZ, "min-z", 0, "Smallest tile Z index")
	f.IntVar(&r.maxX, "max-x", 0, "Largest tile X index")
	f.IntVar(&r.maxZ, "max-z", 0, "Largest tile Z index")
}

func (r *tileRange) bounds() (lo, hi geo.TilePosition) {
	return geo.TilePosition{X: r.minX, Z: r.minZ}, geo.TilePosition{X: r.maxX, Z: r.maxZ}
}

// env is what every command needs: configuration, a logger and the sources
// built exactly as the API server builds them.
type env struct {
	cfg      *config.Config
	logger   *logger.ZapLogger
	registry *source.Registry
	heights  *elevation.Source
}

func newEnv() (*env, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	l := logger.NewZapLogger(cfg.Logger)

	registry, heights, err := app.NewSources(cfg, l)
	if err != nil {
		l.Sync()
		return nil, err
	}

	return &env{cfg: cfg, logger: l, registry: registry, heights: heights}, nil
}

func (e *env) entry(name string) (source.Entry, error) {
	entry, ok := e.registry.Entry(name)
	if !ok {
		return source.Entry{}, fmt.Errorf("%w: %s", source.ErrUnknown, name)
	}
	return entry, nil
}
