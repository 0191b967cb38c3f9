package broker

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
)

// Broker fans a value out to every registered listener. Listeners run on the
// publishing goroutine, outside the broker's lock, so a listener may
// unsubscribe itself or subscribe others.
type Broker[T any] struct {
	topic     string
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]func(T)
}

func New[T any](topic string) *Broker[T] {
	return &Broker[T]{
		topic:     topic,
		listeners: make(map[uint64]func(T)),
	}
}

// Subscribe registers fn and returns the function that removes it. Calling
// the returned function more than once is harmless.
func (b *Broker[T]) Subscribe(fn func(T)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[id] = fn
	count := len(b.listeners)
	b.mu.Unlock()

	log.Debug().
		Str("topic", b.topic).
		Int("listenerCount", count).
		Msg("listener subscribed")

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Broker[T]) unsubscribe(id uint64) {
	b.mu.Lock()
	delete(b.listeners, id)
	count := len(b.listeners)
	b.mu.Unlock()

	log.Debug().
		Str("topic", b.topic).
		Int("listenerCount", count).
		Msg("listener unsubscribed")
}

// Publish delivers value to a snapshot of the current listeners in
// subscription order.
func (b *Broker[T]) Publish(value T) {
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.listeners))
	fns := make(map[uint64]func(T), len(b.listeners))
	for id, fn := range b.listeners {
		ids = append(ids, id)
		fns[id] = fn
	}
	b.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		b.deliver(fns[id], value)
	}
}

func (b *Broker[T]) deliver(fn func(T), value T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("topic", b.topic).
				Interface("panic", r).
				Msg("listener panicked")
		}
	}()
	fn(value)
}

func (b *Broker[T]) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close drops every listener.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[uint64]func(T))
}
