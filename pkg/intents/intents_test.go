package intents

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/server"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/railops/pkg/ctdf"
)

type recordingHandler struct {
	mutex   sync.Mutex
	intents []ctdf.Intent
}

func (h *recordingHandler) HandleIntent(_ context.Context, intent ctdf.Intent) (ctdf.IntentResult, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.intents = append(h.intents, intent)
	if intent.Action != ctdf.IntentActionDelayTrain {
		return ctdf.IntentResult{Action: intent.Action}, ctdf.ErrUnknownIntent
	}

	return ctdf.IntentResult{Action: intent.Action, Message: "delayed"}, nil
}

func (h *recordingHandler) received() []ctdf.Intent {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return append([]ctdf.Intent{}, h.intents...)
}

const delayIntent = `{"Action":"DELAY_TRAIN","Parameters":{"TrainRef":"TR-205","DelayMinutes":10}}`

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		err     error
		action  ctdf.IntentAction
	}{
		{
			name:    "delay",
			payload: delayIntent,
			action:  ctdf.IntentActionDelayTrain,
		},
		{
			name:    "unknown action is left to the handler",
			payload: `{"Action":"PAINT_TRAIN"}`,
			action:  "PAINT_TRAIN",
		},
		{
			name:    "missing action",
			payload: `{"Parameters":{"TrainRef":"TR-205"}}`,
			err:     ctdf.ErrUnknownIntent,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			intent, err := Decode([]byte(test.payload))
			if test.err != nil {
				assert.ErrorIs(t, err, test.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.action, intent.Action)
		})
	}

	_, err := Decode([]byte("{"))
	assert.Error(t, err)
}

func TestProcess(t *testing.T) {
	handler := &recordingHandler{}

	result, err := Process(context.Background(), handler, []byte(delayIntent))
	require.NoError(t, err)
	assert.Equal(t, "delayed", result.Message)

	intents := handler.received()
	require.Len(t, intents, 1)
	assert.Equal(t, "TR-205", intents[0].Parameters.TrainRef)
	assert.Equal(t, 10.0, intents[0].Parameters.DelayMinutes)
}

func TestBatchConsumer(t *testing.T) {
	handler := &recordingHandler{}
	consumer := NewIntentsBatchConsumer(handler)

	delivered := rmq.NewTestDeliveryString(delayIntent)
	broken := rmq.NewTestDeliveryString("{")
	refused := rmq.NewTestDeliveryString(`{"Action":"PAINT_TRAIN"}`)

	consumer.Consume(rmq.Deliveries{delivered, broken, refused})

	assert.Equal(t, rmq.Acked, delivered.State)
	assert.Equal(t, rmq.Rejected, broken.State)
	assert.Equal(t, rmq.Acked, refused.State)
	assert.Len(t, handler.received(), 2)
}

func TestQueuePublisher(t *testing.T) {
	redisServer := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})

	connection, err := rmq.OpenConnectionWithRedisClient("railops-test", client, nil)
	require.NoError(t, err)

	publisher, err := NewQueuePublisher(connection)
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(ctdf.Intent{
		Action:     ctdf.IntentActionBlockSection,
		Parameters: ctdf.IntentParameters{SectionRef: "TRK-CE"},
	}))

	_, err = connection.OpenQueue(QueueName)
	require.NoError(t, err)

	stats, err := rmq.CollectStats([]string{QueueName}, connection)
	require.NoError(t, err)
	ready := stats.QueueStats[QueueName].ReadyCount
	assert.Equal(t, int64(1), ready)
}

func TestStompClient(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go server.Serve(listener)

	handler := &recordingHandler{}
	client := &StompClient{
		Address:   listener.Addr().String(),
		QueueName: "/queue/intents",
		Handler:   handler,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := make(chan error, 1)
	go func() {
		finished <- client.Run(ctx)
	}()

	sender, err := stomp.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer sender.Disconnect()

	require.NoError(t, sender.Send("/queue/intents", "application/json", []byte(delayIntent)))

	assert.Eventually(t, func() bool {
		return len(handler.received()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stomp client did not stop")
	}
}
