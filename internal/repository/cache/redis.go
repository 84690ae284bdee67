package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = 24 * time.Hour

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// RedisCache shares encoded responses between service replicas. Entries
// expire after TTL so refreshed disk caches eventually reach clients.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ TileCache = (*RedisCache)(nil)

// NewRedisCache connects and pings the server before returning.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	c := &RedisCache{client: client, ttl: cfg.TTL, prefix: cfg.KeyPrefix}
	if c.ttl <= 0 {
		c.ttl = defaultRedisTTL
	}
	if c.prefix == "" {
		c.prefix = "geodata"
	}
	return c, nil
}

// key renders e.g. geodata:srtm:v1:-70:5.
func (c *RedisCache) key(k TileCacheKey) string {
	var b strings.Builder
	b.WriteString(c.prefix)
	b.WriteByte(':')
	b.WriteString(k.Source)
	b.WriteString(":v")
	b.WriteString(strconv.FormatUint(uint64(k.Version), 10))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(k.X))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(k.Z))
	return b.String()
}

func (c *RedisCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	data, err := c.client.Get(ctx, c.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", c.key(k), err)
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	if err := c.client.Set(ctx, c.key(k), []byte(v), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key(k), err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
