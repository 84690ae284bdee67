package source

import (
	"context"
	"io"

	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
)

// DecodePolicy controls what happens when a payload fails to decode.
type DecodePolicy struct {
	// Invalidate removes the cache entry so the next attempt fetches again.
	Invalidate bool
	// MaxRetries is the number of extra attempts after the first one.
	// It only applies when Invalidate is set.
	MaxRetries int
}

// Terminal treats a decode failure as final for the current request.
var Terminal = DecodePolicy{}

// Load resolves the stream for pos and decodes it. Fetch failures are
// returned immediately. Decode failures are retried according to policy and
// the last one is returned as a *DecodeError.
func Load[T any](ctx context.Context, src CachedRemoteSource, pos geo.TilePosition, policy DecodePolicy, decode func(io.Reader) (T, error), l logger.Logger) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		stream, err := src.GetStream(ctx, pos)
		if err != nil {
			return zero, err
		}

		tile, err := decode(stream)
		stream.Close()
		if err == nil {
			return tile, nil
		}

		decodeErr := &DecodeError{Name: src.CachedName(pos), Err: err}
		if !policy.Invalidate {
			return zero, decodeErr
		}

		l.Warn("failed to decode tile, removing cache entry",
			"name", src.CachedName(pos),
			"attempt", attempt+1,
			"error", err,
		)
		if err := src.RemoveCache(pos); err != nil {
			l.Error("failed to remove cache entry", "name", src.CachedName(pos), "error", err)
		}

		if attempt >= policy.MaxRetries {
			return zero, decodeErr
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
	}
}
