package events

import (
	"testing"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/railops/pkg/ctdf"
)

type recordingPublisher struct {
	events []ctdf.Event
}

func (r *recordingPublisher) Publish(event ctdf.Event) {
	r.events = append(r.events, event)
}

func TestBusFanOut(t *testing.T) {
	publisher := &recordingPublisher{}
	bus := NewBus(publisher)

	first, unsubscribeFirst := bus.Subscribe(4)
	second, unsubscribeSecond := bus.Subscribe(4)
	defer unsubscribeSecond()

	bus.Publish(ctdf.Event{Type: ctdf.EventTypeTickCommitted, Tick: 1})

	assert.Equal(t, int64(1), (<-first).Tick)
	assert.Equal(t, int64(1), (<-second).Tick)
	assert.Len(t, publisher.events, 1)

	unsubscribeFirst()
	unsubscribeFirst()
	_, open := <-first
	assert.False(t, open)

	bus.Publish(ctdf.Event{Type: ctdf.EventTypeTickCommitted, Tick: 2})
	assert.Equal(t, int64(2), (<-second).Tick)
}

func TestBusDropsForSlowSubscribers(t *testing.T) {
	bus := NewBus()
	channel, unsubscribe := bus.Subscribe(1)
	defer unsubscribe()

	bus.Publish(ctdf.Event{Tick: 1})
	bus.Publish(ctdf.Event{Tick: 2})

	assert.Equal(t, int64(1), (<-channel).Tick)
	assert.Empty(t, channel)
}

func TestQueuePublisher(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	connection, err := rmq.OpenConnectionWithRedisClient("railops-test", client, nil)
	require.NoError(t, err)

	publisher, err := NewQueuePublisher(connection)
	require.NoError(t, err)

	publisher.Publish(ctdf.Event{Type: ctdf.EventTypeIncidentCreated, Tick: 3})
	publisher.Publish(ctdf.Event{Type: ctdf.EventTypeIncidentResolved, Tick: 4})

	_, err = connection.OpenQueue(QueueName)
	require.NoError(t, err)

	stats, err := rmq.CollectStats([]string{QueueName}, connection)
	require.NoError(t, err)
	ready := stats.QueueStats[QueueName].ReadyCount
	assert.Equal(t, int64(2), ready)
}

func TestIndexName(t *testing.T) {
	event := ctdf.Event{Timestamp: time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)}

	assert.Equal(t, "railops-events-2026-02", IndexName(event))
}
