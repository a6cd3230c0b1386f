package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "invoicekeeper:docs:"

// redisClient is the subset of *redis.Client used here.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis shares listings between replicas. The TTL is the key expiry.
// Any Redis failure is logged and treated as a miss.
type Redis struct {
	client redisClient
	ttl    time.Duration
	logger logging.Logger
}

func NewRedis(client redisClient, ttl time.Duration, logger logging.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl, logger: logger.With("module", "cache")}
}

func key(t models.DocumentType) string {
	return keyPrefix + string(t)
}

func (r *Redis) Get(ctx context.Context, t models.DocumentType) ([]models.Document, bool) {
	raw, err := r.client.Get(ctx, key(t)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn(ctx, "redis get failed", "type", t, "err", err)
		}
		return nil, false
	}
	var docs []models.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		r.logger.Warn(ctx, "dropping undecodable cache entry", "type", t, "err", err)
		r.Invalidate(ctx, t)
		return nil, false
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, true
}

func (r *Redis) Set(ctx context.Context, t models.DocumentType, docs []models.Document) {
	if docs == nil {
		docs = []models.Document{}
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		r.logger.Warn(ctx, "cache encode failed", "type", t, "err", err)
		return
	}
	if err := r.client.Set(ctx, key(t), raw, r.ttl).Err(); err != nil {
		r.logger.Warn(ctx, "redis set failed", "type", t, "err", err)
	}
}

func (r *Redis) Invalidate(ctx context.Context, t models.DocumentType) {
	if err := r.client.Del(ctx, key(t)).Err(); err != nil {
		r.logger.Warn(ctx, "redis del failed", "type", t, "err", err)
	}
}
