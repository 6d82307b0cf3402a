package livesync

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Notifier carries change notifications for a named channel. Payloads
// are deliberately empty: a notification only means "the matching record
// set changed, re-query", so bursts can be coalesced.
type Notifier interface {
	Publish(ctx context.Context, channel string) error
	// Subscribe returns a signal channel and a stop function. Stop is
	// idempotent; after it returns no further signals are delivered.
	Subscribe(ctx context.Context, channel string) (<-chan struct{}, func(), error)
}

// Channel names the notification channel for an entity kind scoped to
// one owner.
func Channel(kind, ownerID string) string {
	return "livesync:" + kind + ":" + ownerID
}

// RedisNotifier fans change notifications out across instances via
// Redis pub/sub.
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisNotifier wraps an existing Redis client.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) Publish(ctx context.Context, channel string) error {
	return n.rdb.Publish(ctx, channel, "1").Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, channel string) (<-chan struct{}, func(), error) {
	sub := n.rdb.Subscribe(ctx, channel)
	// Confirm the subscription before handing it out, so a write issued
	// after Subscribe returns is guaranteed to produce a signal.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default: // already pending, coalesce
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, stop, nil
}

// MemoryNotifier is an in-process Notifier for tests and single-node
// deployments without Redis.
type MemoryNotifier struct {
	mu   sync.Mutex
	subs map[string]map[int]chan struct{}
	next int
}

// NewMemoryNotifier creates an empty in-process notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: map[string]map[int]chan struct{}{}}
}

func (n *MemoryNotifier) Publish(ctx context.Context, channel string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[channel] {
		select {
		case ch <- struct{}{}:
		default: // already pending, coalesce
		}
	}
	return nil
}

func (n *MemoryNotifier) Subscribe(ctx context.Context, channel string) (<-chan struct{}, func(), error) {
	n.mu.Lock()
	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	if n.subs[channel] == nil {
		n.subs[channel] = map[int]chan struct{}{}
	}
	n.subs[channel][id] = ch
	n.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs[channel], id)
			if len(n.subs[channel]) == 0 {
				delete(n.subs, channel)
			}
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, stop, nil
}
