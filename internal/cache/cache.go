// Package cache memoizes provider generations in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/provider"
)

const keyPrefix = "flowcraft:gen:"

// Cache wraps a provider.Generator and stores successful outputs in Redis.
// Redis errors are logged and the call goes straight to the provider.
type Cache struct {
	next   provider.Generator
	client *redis.Client
	ttl    time.Duration
}

// New wraps next with a cache backed by client.
func New(next provider.Generator, client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{next: next, client: client, ttl: ttl}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// Generate returns a cached output for req when present, otherwise calls the
// wrapped generator and stores its result.
func (c *Cache) Generate(ctx context.Context, req provider.Request) (provider.Output, error) {
	key, err := Key(req)
	if err != nil {
		slog.Warn("cache: cannot key request, bypassing", "error", err)
		return c.next.Generate(ctx, req)
	}

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var out provider.Output
		if err := json.Unmarshal(data, &out); err == nil {
			slog.Debug("cache hit", "model", req.Model.ModelID)
			return out, nil
		}
		slog.Warn("cache: dropping undecodable entry", "key", key)
	case !errors.Is(err, redis.Nil):
		slog.Warn("cache: redis get failed", "error", err)
	}

	out, err := c.next.Generate(ctx, req)
	if err != nil {
		return provider.Output{}, err
	}

	if data, err := json.Marshal(out); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Warn("cache: redis set failed", "error", err)
		}
	}
	return out, nil
}

// Key derives the cache key of req from its provider, model, modality, prompt
// and effective parameters.
func Key(req provider.Request) (string, error) {
	params, err := json.Marshal(aimodel.MergeParams(req.Model.Parameters, req.Params))
	if err != nil {
		return "", fmt.Errorf("encoding params: %w", err)
	}
	h := sha256.New()
	for _, part := range []string{string(req.Model.Provider), req.Model.ModelID, string(req.Model.Type), req.Prompt, string(params)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}
