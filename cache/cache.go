// Package cache is the key/value layer behind the player stores and the
// battle event fan-out. Redis is used when configured, otherwise an
// in-process implementation.
package cache

import (
	"context"
	"time"

	"github.com/kasuganosora/mathmon/server/cache/kv"
	"github.com/kasuganosora/mathmon/server/cache/local"
	cacheredis "github.com/kasuganosora/mathmon/server/cache/redis"
	"github.com/kasuganosora/mathmon/server/config"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = kv.ErrNotFound

type (
	ScoredMember = kv.ScoredMember
	Message      = kv.Message
)

// Cache defines the KV / Hash / Set / ZSet / List operations.
type Cache interface {
	// KV
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Hash
	HSet(ctx context.Context, key, field, value string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Set
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// ZSet
	ZAddMax(ctx context.Context, key string, score float64, member string) (bool, error)
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// List
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
}

// PubSub defines channel publish/subscribe operations.
type PubSub interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error)
}

var (
	_ Cache  = (*local.LocalCache)(nil)
	_ Cache  = (*cacheredis.Client)(nil)
	_ PubSub = (*local.LocalPubSub)(nil)
	_ PubSub = (*cacheredis.Client)(nil)
)

// Open builds the cache and the pub/sub transport. With Redis both are the
// same client, so closing the Cache closes both.
func Open(cfg config.CacheConfig) (Cache, PubSub, error) {
	if cfg.RedisAddr != "" {
		c, err := cacheredis.Open(cacheredis.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Prefix:    cfg.RedisPrefix,
			SubBuffer: cfg.LocalPubSubBuf,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}
	c, err := NewCache(cfg)
	if err != nil {
		return nil, nil, err
	}
	ps, _ := NewPubSub(cfg)
	return c, ps, nil
}

// NewCache returns the in-process cache.
func NewCache(cfg config.CacheConfig) (Cache, error) {
	return local.NewCache(local.Config{
		GCInterval: cfg.LocalGCInterval,
	})
}

// NewPubSub returns the in-process pub/sub.
func NewPubSub(cfg config.CacheConfig) (PubSub, error) {
	return local.NewPubSub(cfg.LocalPubSubBuf), nil
}

// BattleChannel is the pub/sub channel carrying one player's battle events.
func BattleChannel(playerID string) string {
	return "battle:" + playerID
}
