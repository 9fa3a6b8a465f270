package intents

import (
	"context"

	"github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog/log"
)

// StompClient takes intents from a message broker destination, one JSON intent per frame
type StompClient struct {
	Address   string
	Username  string
	Password  string
	QueueName string

	Handler Handler
}

func (s *StompClient) Run(ctx context.Context) error {
	var stompOptions []func(*stomp.Conn) error = []func(*stomp.Conn) error{
		stomp.ConnOpt.Login(s.Username, s.Password),
	}
	conn, err := stomp.Dial("tcp", s.Address, stompOptions...)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	sub, err := conn.Subscribe(s.QueueName, stomp.AckAuto)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	log.Info().Str("address", s.Address).Str("queue", s.QueueName).Msg("Listening for intents")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C:
			if !ok {
				return nil
			}
			if msg.Err != nil {
				return msg.Err
			}

			Process(ctx, s.Handler, msg.Body)
		}
	}
}
