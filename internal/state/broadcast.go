package state

import (
	"context"
	"sync"
)

// Update is a state write delivered to watchers.
type Update struct {
	ID    string `json:"id"`
	State State  `json:"state"`
}

// Broadcaster decorates a Store and fans every successful SetState out to
// watchers. Slow watchers miss updates rather than block writers.
type Broadcaster struct {
	Store

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Update
}

// NewBroadcaster wraps inner.
func NewBroadcaster(inner Store) *Broadcaster {
	return &Broadcaster{Store: inner, subs: make(map[int]chan Update)}
}

// SetState writes through and notifies watchers with the stored state.
func (b *Broadcaster) SetState(ctx context.Context, id string, val any, ack bool) error {
	if err := b.Store.SetState(ctx, id, val, ack); err != nil {
		return err
	}
	st, ok, err := b.Store.GetState(ctx, id)
	if err != nil || !ok {
		st = State{Val: val, Ack: ack}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- Update{ID: id, State: st}:
		default:
		}
	}
	return nil
}

// Watch registers a watcher with the given buffer. The returned function
// unregisters it and closes the channel.
func (b *Broadcaster) Watch(buffer int) (<-chan Update, func()) {
	ch := make(chan Update, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
