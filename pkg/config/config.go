package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP          HTTP          `envPrefix:"HTTP_"`
		Logger        Logger        `envPrefix:"LOGGER_"`
		Telemetry     Telemetry     `envPrefix:"TELEMETRY_"`
		Redis         Redis         `envPrefix:"REDIS_"`
		ResponseCache ResponseCache `envPrefix:"RESPONSE_CACHE_"`
		Source        Source        `envPrefix:"SOURCE_"`
		Overpass      Overpass      `envPrefix:"OVERPASS_"`
		Elevation     Elevation     `envPrefix:"ELEVATION_"`
	}

	HTTP struct {
		Server Server `envPrefix:"SERVER_"`
	}

	Server struct {
		Port         string        `env:"PORT" envDefault:"8080"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level  string `env:"LEVEL,required,notEmpty"`
		Format string `env:"FORMAT" envDefault:"json" validate:"oneof=json console"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-geodata"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	Redis struct {
		Addr      string        `env:"ADDR" envDefault:"localhost:6379"`
		Password  string        `env:"PASSWORD" envDefault:""`
		DB        int           `env:"DB" envDefault:"0"`
		TTL       time.Duration `env:"TTL" envDefault:"24h"`
		KeyPrefix string        `env:"KEY_PREFIX" envDefault:"geodata"`
	}

	// ResponseCache selects where encoded API responses are kept.
	ResponseCache struct {
		Backend    string `env:"BACKEND" envDefault:"memory" validate:"oneof=none memory filesystem sqlite redis"`
		SQLitePath string `env:"SQLITE_PATH" envDefault:"file:geodata.db?cache=shared"`
		Dir        string `env:"DIR" envDefault:"cache/responses"`
	}

	Source struct {
		CacheRoot       string        `env:"CACHE_ROOT" envDefault:"cache" validate:"required"`
		OriginLat       float64       `env:"ORIGIN_LAT" envDefault:"0"`
		OriginLng       float64       `env:"ORIGIN_LNG" envDefault:"0"`
		Scale           float64       `env:"SCALE" envDefault:"0.0001" validate:"gt=0"`
		MemoryTileTTL   time.Duration `env:"MEMORY_TILE_TTL" envDefault:"5m"`
		LoadTimeout     time.Duration `env:"LOAD_TIMEOUT" envDefault:"2m" validate:"gte=0"`
		ManifestTimeout time.Duration `env:"MANIFEST_TIMEOUT" envDefault:"1m"`
	}

	Overpass struct {
		Endpoint         string        `env:"ENDPOINT" envDefault:"http://www.overpass-api.de/api/interpreter" validate:"url"`
		CacheDir         string        `env:"CACHE_DIR" envDefault:"osm" validate:"required"`
		Query            string        `env:"QUERY" envDefault:"general.overpassql" validate:"required"`
		QueryVersion     uint16        `env:"QUERY_VERSION" envDefault:"1"`
		TileSize         float64       `env:"TILE_SIZE" envDefault:"512" validate:"gt=0"`
		ConnectTimeout   time.Duration `env:"CONNECT_TIMEOUT" envDefault:"1s"`
		ReadTimeout      time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
		RateLimitDelay   time.Duration `env:"RATE_LIMIT_DELAY" envDefault:"150ms" validate:"gt=0"`
		RateLimitRetries uint64        `env:"RATE_LIMIT_RETRIES" envDefault:"16"`
		UserAgent        string        `env:"USER_AGENT" envDefault:"guide-helper-geodata"`
		Referer          string        `env:"REFERER" envDefault:"https://github.com/jaennil/guide_helper"`
		MemoryTiles      int64         `env:"MEMORY_TILES" envDefault:"4" validate:"gte=0"`
	}

	Elevation struct {
		BaseURL           string        `env:"BASE_URL" envDefault:"https://terrarium.gegy.dev/geo" validate:"url"`
		HeightsEndpoint   string        `env:"HEIGHTS_ENDPOINT" envDefault:"srtm" validate:"required"`
		HeightsQuery      string        `env:"HEIGHTS_QUERY" envDefault:"%s%s.hgt" validate:"required"`
		HeightTiles       string        `env:"HEIGHT_TILES" envDefault:"srtm_tiles.bin"`
		CacheDir          string        `env:"CACHE_DIR" envDefault:"srtm" validate:"required"`
		FormatVersion     uint16        `env:"FORMAT_VERSION" envDefault:"1"`
		Timeout           time.Duration `env:"TIMEOUT" envDefault:"30s"`
		InvalidateCorrupt bool          `env:"INVALIDATE_CORRUPT" envDefault:"false"`
		CorruptRetries    int           `env:"CORRUPT_RETRIES" envDefault:"0" validate:"gte=0"`
		MemoryTiles       int64         `env:"MEMORY_TILES" envDefault:"9" validate:"gte=0"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
