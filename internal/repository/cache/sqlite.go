package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	selectTile = `SELECT tile_data FROM tile_cache WHERE source = ? AND version = ? AND x = ? AND z = ?`

	upsertTile = `INSERT INTO tile_cache (source, version, x, z, tile_data)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(source, version, x, z) DO UPDATE SET
		tile_data = excluded.tile_data,
		created_at = CURRENT_TIMESTAMP`
)

// SQLiteCache stores encoded responses in a single table keyed by source,
// source version and tile position.
type SQLiteCache struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSQLiteCache(path string, l logger.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	// sqlite serialises writers, extra connections only add lock contention.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite cache: %w", err)
	}

	if err := migrate(ctx, db, l); err != nil {
		db.Close()
		return nil, err
	}

	l.Info("sqlite cache initialized", "path", path)
	return &SQLiteCache{db: db, logger: l}, nil
}

func migrate(ctx context.Context, db *sql.DB, l logger.Logger) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate sqlite cache: %w", err)
	}
	for _, r := range results {
		l.Debug("applied migration", "source", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

var _ TileCache = (*SQLiteCache)(nil)

func (c *SQLiteCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx, selectTile, k.Source, k.Version, k.X, k.Z).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		c.logger.Error("sqlite cache get failed", "source", k.Source, "x", k.X, "z", k.Z, "error", err)
		return nil, false, err
	}
	return data, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	if _, err := c.db.ExecContext(ctx, upsertTile, k.Source, k.Version, k.X, k.Z, []byte(v)); err != nil {
		c.logger.Error("sqlite cache set failed", "source", k.Source, "x", k.X, "z", k.Z, "error", err)
		return err
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
