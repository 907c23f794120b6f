// Package redis backs cache.Cache and cache.PubSub with one go-redis
// client. Every key and channel is namespaced with Config.Prefix so several
// deployments can share a server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kasuganosora/mathmon/server/cache/kv"
)

type Config struct {
	Addr      string
	Password  string
	DB        int
	Prefix    string
	SubBuffer int // per-subscription channel size
}

// Client is both the cache and the pub/sub transport.
type Client struct {
	rdb    *goredis.Client
	prefix string
	subBuf int
}

// Open connects and pings.
func Open(cfg Config) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return Wrap(rdb, cfg), nil
}

// Wrap adopts an existing client.
func Wrap(rdb *goredis.Client, cfg Config) *Client {
	buf := cfg.SubBuffer
	if buf <= 0 {
		buf = 256
	}
	return &Client{rdb: rdb, prefix: cfg.Prefix, subBuf: buf}
}

func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) key(k string) string { return c.prefix + k }

func (c *Client) keys(ks []string) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = c.key(k)
	}
	return out
}

func anys(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, c.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", kv.ErrNotFound
	}
	return v, err
}

func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, c.keys(keys)...).Err()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(key)).Result()
	return n > 0, err
}

func (c *Client) HSet(ctx context.Context, key, field, value string) error {
	return c.rdb.HSet(ctx, c.key(key), field, value).Err()
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, c.key(key)).Result()
}

func (c *Client) SAdd(ctx context.Context, key string, members ...string) error {
	return c.rdb.SAdd(ctx, c.key(key), anys(members)...).Err()
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.rdb.SMembers(ctx, c.key(key)).Result()
}

// ZAddMax is ZADD GT CH: a member's score only ever rises.
func (c *Client) ZAddMax(ctx context.Context, key string, score float64, member string) (bool, error) {
	n, err := c.rdb.ZAddArgs(ctx, c.key(key), goredis.ZAddArgs{
		GT:      true,
		Ch:      true,
		Members: []goredis.Z{{Score: score, Member: member}},
	}).Result()
	return n > 0, err
}

func (c *Client) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]kv.ScoredMember, error) {
	zs, err := c.rdb.ZRevRangeWithScores(ctx, c.key(key), start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]kv.ScoredMember, len(zs))
	for i, z := range zs {
		m, _ := z.Member.(string)
		out[i] = kv.ScoredMember{Member: m, Score: z.Score}
	}
	return out, nil
}

func (c *Client) LPush(ctx context.Context, key string, values ...string) error {
	return c.rdb.LPush(ctx, c.key(key), anys(values)...).Err()
}

func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.rdb.LRange(ctx, c.key(key), start, stop).Result()
}

func (c *Client) LTrim(ctx context.Context, key string, start, stop int64) error {
	return c.rdb.LTrim(ctx, c.key(key), start, stop).Err()
}

func (c *Client) Publish(ctx context.Context, channel, message string) error {
	return c.rdb.Publish(ctx, c.key(channel), message).Err()
}

// Subscribe returns once Redis confirmed the subscription, so a Publish
// issued after it returns is delivered. Channel names on received
// messages are unprefixed.
func (c *Client) Subscribe(ctx context.Context, channels ...string) (<-chan *kv.Message, func(), error) {
	ps := c.rdb.Subscribe(ctx, c.keys(channels)...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis: subscribe: %w", err)
	}
	out := make(chan *kv.Message, c.subBuf)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			out <- &kv.Message{
				Channel: strings.TrimPrefix(msg.Channel, c.prefix),
				Payload: msg.Payload,
			}
		}
	}()
	return out, func() { _ = ps.Close() }, nil
}
