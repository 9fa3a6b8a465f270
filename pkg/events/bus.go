package events

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/ctdf"
)

type Publisher interface {
	Publish(event ctdf.Event)
}

// Bus fans events out to in-process subscribers and any attached publishers. Slow subscribers
// lose events rather than stall the tick loop.
type Bus struct {
	mutex       sync.RWMutex
	subscribers map[int]chan ctdf.Event
	nextID      int

	publishers []Publisher
}

func NewBus(publishers ...Publisher) *Bus {
	return &Bus{
		subscribers: map[int]chan ctdf.Event{},
		publishers:  publishers,
	}
}

func (b *Bus) Subscribe(buffer int) (<-chan ctdf.Event, func()) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	id := b.nextID
	b.nextID++

	channel := make(chan ctdf.Event, buffer)
	b.subscribers[id] = channel

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mutex.Lock()
			defer b.mutex.Unlock()

			delete(b.subscribers, id)
			close(channel)
		})
	}

	return channel, unsubscribe
}

func (b *Bus) Publish(event ctdf.Event) {
	b.mutex.RLock()
	for id, channel := range b.subscribers {
		select {
		case channel <- event:
		default:
			log.Warn().Int("subscriber", id).Str("type", string(event.Type)).Msg("Subscriber full, dropping event")
		}
	}
	b.mutex.RUnlock()

	for _, publisher := range b.publishers {
		publisher.Publish(event)
	}
}
