package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
)

// RNG is a small seedable generator (mulberry32). The stepping function
// only depends on the 32-bit state, so equal seeds give equal sequences.
// It is not safe for concurrent use; the battle engine owns one per run.
type RNG struct {
	state uint32
}

// New returns a generator seeded with seed.
func New(seed uint32) *RNG {
	return &RNG{state: seed}
}

// Reseed resets the internal state.
func (r *RNG) Reseed(seed uint32) {
	r.state = seed
}

// State returns the raw state for save snapshots.
func (r *RNG) State() uint32 { return r.state }

// SetState restores a state captured with State.
func (r *RNG) SetState(s uint32) { r.state = s }

// Rand returns a float in [0,1) and advances the state.
func (r *RNG) Rand() float64 {
	r.state += 0x6D2B79F5
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// RandInt returns an int in [min, max] inclusive. Reversed bounds are swapped.
func (r *RNG) RandInt(min, max int) int {
	if max < min {
		min, max = max, min
	}
	return min + int(r.Rand()*float64(max-min+1))
}

// Chance reports whether a roll lands under p.
func (r *RNG) Chance(p float64) bool {
	return r.Rand() < p
}

// PickIndex returns a random index into a collection of n elements.
func (r *RNG) PickIndex(n int) int {
	if n <= 1 {
		return 0
	}
	return r.RandInt(0, n-1)
}

// Shuffle permutes n elements in place through swap (Fisher-Yates).
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, r.RandInt(0, i))
	}
}

// SeedFromKey hashes a string key (e.g. a daily-challenge date) to a seed.
func SeedFromKey(key string) uint32 {
	h := xxhash.Sum64String(key)
	return uint32(h) ^ uint32(h>>32)
}

// EntropySeed returns a high-entropy seed for non-deterministic modes.
func EntropySeed() uint32 {
	var b [4]byte
	if _, err := crand.Read(b[:]); err != nil {
		return uint32(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint32(b[:])
}

// DailyKey builds the deterministic key for the daily challenge of t's UTC day.
func DailyKey(t time.Time, salt string) string {
	return salt + "-" + t.UTC().Format("2006-01-02")
}
