package local

import (
	"context"
	"slices"
	"sync"

	"github.com/kasuganosora/mathmon/server/cache/kv"
)

type subscriber struct {
	ch chan *kv.Message
}

// LocalPubSub is an in-process fan-out pub/sub implementation.
type LocalPubSub struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	bufSize     int
}

// NewPubSub creates a new LocalPubSub with the given per-subscriber buffer size.
func NewPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &LocalPubSub{
		subscribers: make(map[string][]*subscriber),
		bufSize:     bufSize,
	}
}

// Publish delivers to every subscriber of channel. A full subscriber
// buffer drops the message for that subscriber only.
func (ps *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &kv.Message{Channel: channel, Payload: message}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, s := range ps.subscribers[channel] {
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns one channel receiving messages from every named
// channel, and a cancel function that unsubscribes and closes it. The
// subscription also ends when ctx is done.
func (ps *LocalPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *kv.Message, func(), error) {
	sub := &subscriber{ch: make(chan *kv.Message, ps.bufSize)}

	ps.mu.Lock()
	for _, c := range channels {
		ps.subscribers[c] = append(ps.subscribers[c], sub)
	}
	ps.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			ps.mu.Lock()
			defer ps.mu.Unlock()
			for _, c := range channels {
				ps.subscribers[c] = slices.DeleteFunc(ps.subscribers[c], func(s *subscriber) bool { return s == sub })
				if len(ps.subscribers[c]) == 0 {
					delete(ps.subscribers, c)
				}
			}
			// Publish holds the read lock while sending, so closing here is safe.
			close(sub.ch)
		})
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			cancel()
		}()
	}
	return sub.ch, cancel, nil
}

// Subscribers reports how many subscriptions a channel has.
func (ps *LocalPubSub) Subscribers(channel string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[channel])
}
