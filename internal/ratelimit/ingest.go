package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/vendwatch/vendwatch/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const ingestKeyFormat = "ratelimit:ingest:feed:%s"

// IngestLimiter throttles fact ingestion per vendor feed.
type IngestLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

type IngestLimiterParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// NewIngestLimiter builds the ingest limiter from configuration. When rate
// limiting is disabled it returns (nil, nil); callers stay nil-safe through
// Enabled.
func NewIngestLimiter(p IngestLimiterParams) (*IngestLimiter, error) {
	cfg := p.Config.RateLimit
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("rate limiting enabled without RATE_LIMIT_REDIS_ADDR")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			return client.Close()
		},
	})

	log := p.Log.Named("ratelimit.ingest")
	log.Info("ingest rate limiter enabled",
		zap.Float64("rate", cfg.IngestRate),
		zap.Int("burst", cfg.IngestBurst),
	)

	return &IngestLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.IngestRate,
		burst:  cfg.IngestBurst,
		log:    log,
	}, nil
}

// Enabled reports whether the limiter is active. Safe on a nil receiver.
func (l *IngestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow debits one token from the feed's bucket. Redis trouble fails open:
// ingestion keeps flowing and the error is logged.
func (l *IngestLimiter) Allow(ctx context.Context, feed string) *Result {
	if !l.Enabled() {
		return &Result{Allowed: true}
	}

	feed = strings.ToLower(strings.TrimSpace(feed))
	if feed == "" {
		feed = "unknown"
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(ingestKeyFormat, feed), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing request",
			zap.String("feed", feed),
			zap.Error(err),
		)
		return &Result{Allowed: true}
	}
	return res
}

var Module = fx.Module("ratelimit",
	fx.Provide(NewIngestLimiter),
)
