package events

import (
	"context"
	"sync"
)

// LocalBus is an in-process Publisher and Subscriber, used when no Redis is configured.
// Handlers run synchronously on the publishing goroutine.
type LocalBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]func(Event)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string]map[int]func(Event))}
}

func (b *LocalBus) Publish(_ context.Context, stream string, event Event) error {
	b.mu.RLock()
	hs := make([]func(Event), 0, len(b.handlers[stream]))
	for _, h := range b.handlers[stream] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(event)
	}
	return nil
}

// Subscribe registers handler until ctx is cancelled.
func (b *LocalBus) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.handlers[stream] == nil {
		b.handlers[stream] = make(map[int]func(Event))
	}
	b.handlers[stream][id] = handler
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.handlers[stream], id)
		b.mu.Unlock()
	}()
	return nil
}
