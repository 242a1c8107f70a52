package events

import (
	"reflect"
	"sync"

	"github.com/rs/zerolog"
)

type subscriber struct {
	id int
	fn func(any)
}

// Bus is a synchronous publish/subscribe hub keyed by event type.
// Subscribers run on the publisher's goroutine and must not block.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[reflect.Type][]subscriber
	logger zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{subs: map[reflect.Type][]subscriber{}, logger: logger}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Subscribe registers fn for events of type T and returns a function
// that removes the subscription.
func Subscribe[T any](b *Bus, fn func(T)) func() {
	key := typeOf[T]()
	wrapped := func(v any) {
		if ev, ok := v.(T); ok {
			fn(ev)
		}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[key] = append(b.subs[key], subscriber{id: id, fn: wrapped})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			ss := b.subs[key]
			for i, s := range ss {
				if s.id == id {
					b.subs[key] = append(ss[:i:i], ss[i+1:]...)
					break
				}
			}
		})
	}
}

func Publish[T any](b *Bus, ev T) {
	key := typeOf[T]()
	b.mu.RLock()
	ss := append([]subscriber(nil), b.subs[key]...)
	b.mu.RUnlock()

	for _, s := range ss {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error().Interface("panic", r).Str("event", key.String()).Msg("event subscriber panicked")
				}
			}()
			s.fn(ev)
		}()
	}
}
