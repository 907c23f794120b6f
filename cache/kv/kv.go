// Package kv holds the types shared by every cache backend.
package kv

import "errors"

// ErrNotFound is returned when a key or member does not exist.
var ErrNotFound = errors.New("cache: key not found")

// ScoredMember is one sorted-set entry.
type ScoredMember struct {
	Member string
	Score  float64
}

// Message is a received pub/sub message.
type Message struct {
	Channel string
	Payload string
}
