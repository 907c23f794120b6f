package local

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kasuganosora/mathmon/server/cache/kv"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = kv.ErrNotFound

// Config holds LocalCache settings.
type Config struct {
	GCInterval time.Duration
}

// entry holds a cached string value with an optional expiry.
type entry struct {
	data     string
	expireAt time.Time
	noExpiry bool
}

func (e *entry) expired() bool {
	return !e.noExpiry && time.Now().After(e.expireAt)
}

func newEntry(value string, ttl time.Duration) *entry {
	if ttl > 0 {
		return &entry{data: value, expireAt: time.Now().Add(ttl)}
	}
	return &entry{data: value, noExpiry: true}
}

// LocalCache is an in-process cache for single-node deployments and tests.
type LocalCache struct {
	kv         sync.Map // key → *entry
	hashes     sync.Map // key → *lockedHash
	sets       sync.Map // key → *lockedSet
	zsets      sync.Map // key → *zset
	lists      sync.Map // key → *lockedList
	gcInterval time.Duration
	stopGC     chan struct{}
	stopOnce   sync.Once
}

// NewCache creates a LocalCache and starts the background GC goroutine.
func NewCache(cfg Config) (*LocalCache, error) {
	interval := cfg.GCInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	c := &LocalCache{
		gcInterval: interval,
		stopGC:     make(chan struct{}),
	}
	go c.runGC()
	return c, nil
}

// Close stops the background GC goroutine. It is safe to call twice.
func (c *LocalCache) Close() {
	c.stopOnce.Do(func() { close(c.stopGC) })
}

func (c *LocalCache) runGC() {
	ticker := time.NewTicker(c.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.kv.Range(func(k, v any) bool {
				if e, ok := v.(*entry); ok && e.expired() {
					c.kv.Delete(k)
				}
				return true
			})
		case <-c.stopGC:
			return
		}
	}
}

// ---- KV ----

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.kv.Load(key)
	if !ok {
		return "", ErrNotFound
	}
	e := v.(*entry)
	if e.expired() {
		c.kv.Delete(key)
		return "", ErrNotFound
	}
	return e.data, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.kv.Store(key, newEntry(value, ttl))
	return nil
}

// Del removes keys of every kind, like the Redis command.
func (c *LocalCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.kv.Delete(k)
		c.hashes.Delete(k)
		c.sets.Delete(k)
		c.zsets.Delete(k)
		c.lists.Delete(k)
	}
	return nil
}

func (c *LocalCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// ---- Hash ----

type lockedHash struct {
	mu     sync.RWMutex
	fields map[string]string
}

func (c *LocalCache) hash(key string) *lockedHash {
	v, _ := c.hashes.LoadOrStore(key, &lockedHash{fields: make(map[string]string)})
	return v.(*lockedHash)
}

func (c *LocalCache) HSet(_ context.Context, key, field, value string) error {
	h := c.hash(key)
	h.mu.Lock()
	h.fields[field] = value
	h.mu.Unlock()
	return nil
}

func (c *LocalCache) HGetAll(_ context.Context, key string) (map[string]string, error) {
	v, ok := c.hashes.Load(key)
	if !ok {
		return map[string]string{}, nil
	}
	h := v.(*lockedHash)
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.fields))
	for k, f := range h.fields {
		out[k] = f
	}
	return out, nil
}

// ---- Set ----

type lockedSet struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

func (c *LocalCache) SAdd(_ context.Context, key string, members ...string) error {
	v, _ := c.sets.LoadOrStore(key, &lockedSet{members: make(map[string]struct{})})
	s := v.(*lockedSet)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range members {
		s.members[m] = struct{}{}
	}
	return nil
}

func (c *LocalCache) SMembers(_ context.Context, key string) ([]string, error) {
	v, ok := c.sets.Load(key)
	if !ok {
		return []string{}, nil
	}
	s := v.(*lockedSet)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	return out, nil
}

// ---- ZSet ----

type zset struct {
	mu      sync.Mutex
	entries []kv.ScoredMember // score descending, member ascending on ties
}

func byRank(a, b kv.ScoredMember) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.Member, b.Member)
}

// ZAddMax stores member with score unless it already holds a score at
// least as high. It reports whether the stored score changed.
func (c *LocalCache) ZAddMax(_ context.Context, key string, score float64, member string) (bool, error) {
	v, _ := c.zsets.LoadOrStore(key, &zset{})
	z := v.(*zset)
	z.mu.Lock()
	defer z.mu.Unlock()
	i := slices.IndexFunc(z.entries, func(e kv.ScoredMember) bool { return e.Member == member })
	switch {
	case i < 0:
		z.entries = append(z.entries, kv.ScoredMember{Member: member, Score: score})
	case z.entries[i].Score < score:
		z.entries[i].Score = score
	default:
		return false, nil
	}
	slices.SortFunc(z.entries, byRank)
	return true, nil
}

// ZRevRangeWithScores returns ranks start..stop (inclusive, -1 for the end)
// from the highest score down.
func (c *LocalCache) ZRevRangeWithScores(_ context.Context, key string, start, stop int64) ([]kv.ScoredMember, error) {
	v, ok := c.zsets.Load(key)
	if !ok {
		return nil, nil
	}
	z := v.(*zset)
	z.mu.Lock()
	defer z.mu.Unlock()
	lo, hi, ok := span(int64(len(z.entries)), start, stop)
	if !ok {
		return nil, nil
	}
	return slices.Clone(z.entries[lo:hi]), nil
}

// ---- List ----

type lockedList struct {
	mu   sync.Mutex
	data []string
}

func (c *LocalCache) list(key string) *lockedList {
	v, _ := c.lists.LoadOrStore(key, &lockedList{})
	return v.(*lockedList)
}

func (c *LocalCache) LPush(_ context.Context, key string, values ...string) error {
	l := c.list(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	// Last value ends up at index 0.
	head := slices.Clone(values)
	slices.Reverse(head)
	l.data = append(head, l.data...)
	return nil
}

func (c *LocalCache) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	v, ok := c.lists.Load(key)
	if !ok {
		return nil, nil
	}
	l := v.(*lockedList)
	l.mu.Lock()
	defer l.mu.Unlock()
	lo, hi, ok := span(int64(len(l.data)), start, stop)
	if !ok {
		return nil, nil
	}
	return slices.Clone(l.data[lo:hi]), nil
}

func (c *LocalCache) LTrim(_ context.Context, key string, start, stop int64) error {
	l := c.list(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	lo, hi, ok := span(int64(len(l.data)), start, stop)
	if !ok {
		l.data = nil
		return nil
	}
	l.data = slices.Clone(l.data[lo:hi])
	return nil
}

// span converts Redis-style inclusive indexes (negative counts from the
// end) into a half-open slice range.
func span(n, start, stop int64) (lo, hi int64, ok bool) {
	if start < 0 {
		start = max(n+start, 0)
	}
	if stop < 0 {
		stop = n + stop
	}
	stop = min(stop, n-1)
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop + 1, true
}
