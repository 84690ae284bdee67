package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	v1 "github.com/jaennil/guide_helper/backend/geodata/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/geodata/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/geodata/internal/osm"
	"github.com/jaennil/guide_helper/backend/geodata/internal/raster"
	"github.com/jaennil/guide_helper/backend/geodata/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source/elevation"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source/overpass"
	"github.com/jaennil/guide_helper/backend/geodata/internal/usecase"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/config"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/telemetry"
)

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger)
	defer l.Sync()

	l.Info("app config", "cfg", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithLogger(ctx, l)

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize telemetry", "error", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
		l.Info("telemetry initialized", "service", cfg.Telemetry.ServiceName)
	}

	responses, closeResponses, err := newResponseCache(ctx, cfg, l)
	if err != nil {
		l.Fatal("failed to initialize response cache", "backend", cfg.ResponseCache.Backend, "error", err)
	}
	defer closeResponses()

	registry, heights, err := NewSources(cfg, l)
	if err != nil {
		l.Fatal("failed to initialize sources", "error", err)
	}

	go func() {
		if err := LoadManifest(ctx, cfg, heights, l); err != nil {
			l.Error("failed to load tile manifest, fetching all height tiles on demand", "error", err)
		}
	}()

	tileUseCase, err := usecase.NewTileUseCase(registry, responses, l)
	if err != nil {
		l.Fatal("failed to initialize tile usecase", "error", err)
	}

	h := handler.NewHandler(validator.New(), tileUseCase)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled, cfg.Telemetry.ServiceName)

	httpServer := http_server.NewServer(ctx, cfg.HTTP.Server, router)

	go func() {
		l.Info("starting http server...", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	l.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	l.Info("shutting down http server...", "address", httpServer.Addr)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Error("http server shutdown failed", "error", err)
	} else {
		l.Info("http server shutdown completed")
	}

	l.Info("application shutdown completed")
}

func newResponseCache(ctx context.Context, cfg *config.Config, l logger.Logger) (cache.TileCache, func(), error) {
	noop := func() {}

	switch cfg.ResponseCache.Backend {
	case "memory":
		return cache.NewMapCache(), noop, nil
	case "filesystem":
		c, err := cache.NewFilesystemCache(cfg.ResponseCache.Dir)
		return c, noop, err
	case "sqlite":
		c, err := cache.NewSQLiteCache(cfg.ResponseCache.SQLitePath, l)
		if err != nil {
			return nil, noop, err
		}
		return c, func() { c.Close() }, nil
	case "redis":
		c, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			TTL:       cfg.Redis.TTL,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, noop, err
		}
		return c, func() { c.Close() }, nil
	default:
		return cache.Nop{}, noop, nil
	}
}

// NewSources builds the registry of memoized tile sources.
func NewSources(cfg *config.Config, l logger.Logger) (*source.Registry, *elevation.Source, error) {
	osmState := geo.CoordinateState{
		OriginLat: cfg.Source.OriginLat,
		OriginLng: cfg.Source.OriginLng,
		Scale:     cfg.Source.Scale,
	}
	// Height tiles are whole degrees aligned to the equator and meridian.
	heightState := geo.CoordinateState{Scale: 1.0 / elevation.TileSize}

	osmSource, err := overpass.New(cfg.Overpass, osmState, cfg.Source.CacheRoot, nil, l)
	if err != nil {
		return nil, nil, fmt.Errorf("overpass source: %w", err)
	}
	heights, err := elevation.New(cfg.Elevation, heightState, cfg.Source.CacheRoot, nil, nil, l)
	if err != nil {
		return nil, nil, fmt.Errorf("elevation source: %w", err)
	}

	l.Info("sources initialized",
		"osm_cache", osmSource.Cache().CacheRoot(),
		"osm_sampled", osmSource.ShouldSample(),
		"srtm_cache", heights.Cache().CacheRoot(),
	)

	registry := source.NewRegistry()
	err = registry.Register(source.Entry{
		Name:   overpass.Name,
		Source: source.Memoize[*osm.Tile](osmSource, osmSource.Cache(), memoConfig(cfg, cfg.Overpass.MemoryTiles)),
		Cache:  osmSource.Cache(),
		Bounds: osmSource.Bounds,
	})
	if err != nil {
		return nil, nil, err
	}
	err = registry.Register(source.Entry{
		Name:   elevation.Name,
		Source: source.Memoize[*raster.ShortRasterTile](heights, heights.Diagnostics(), memoConfig(cfg, cfg.Elevation.MemoryTiles)),
		Cache:  heights.Diagnostics(),
		Bounds: heights.Bounds,
	})
	if err != nil {
		return nil, nil, err
	}

	return registry, heights, nil
}

func memoConfig(cfg *config.Config, size int64) source.MemoConfig {
	return source.MemoConfig{
		Size:        size,
		TTL:         cfg.Source.MemoryTileTTL,
		LoadTimeout: cfg.Source.LoadTimeout,
	}
}

// LoadManifest fetches the list of existing height tiles. Until it succeeds
// every tile is fetched on demand.
func LoadManifest(ctx context.Context, cfg *config.Config, heights *elevation.Source, l logger.Logger) error {
	if cfg.Elevation.HeightTiles == "" {
		return nil
	}

	url := fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(cfg.Elevation.BaseURL, "/"), cfg.Elevation.HeightsEndpoint, cfg.Elevation.HeightTiles)

	ctx, cancel := context.WithTimeout(ctx, cfg.Source.ManifestTimeout)
	defer cancel()

	client := source.NewHTTPClient(cfg.Elevation.Timeout, cfg.Elevation.Timeout)
	if err := heights.Manifest().Fetch(ctx, client, url); err != nil {
		return fmt.Errorf("load valid height tiles from %s: %w", url, err)
	}

	l.Info("loaded valid height tiles", "count", heights.Manifest().Len())
	return nil
}
