package intents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/ctdf"
)

// Handler carries out structured intents, the engine is the only implementation outside tests
type Handler interface {
	HandleIntent(ctx context.Context, intent ctdf.Intent) (ctdf.IntentResult, error)
}

// Decode parses a JSON intent. Unknown actions are left for the handler to refuse.
func Decode(payload []byte) (ctdf.Intent, error) {
	var intent ctdf.Intent
	if err := json.Unmarshal(payload, &intent); err != nil {
		return intent, fmt.Errorf("decode intent: %w", err)
	}
	if intent.Action == "" {
		return intent, fmt.Errorf("%w: action missing", ctdf.ErrUnknownIntent)
	}

	return intent, nil
}

// Process decodes and handles a single payload, logging rather than returning failures
func Process(ctx context.Context, handler Handler, payload []byte) (ctdf.IntentResult, error) {
	intent, err := Decode(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode intent")
		return ctdf.IntentResult{}, err
	}

	result, err := handler.HandleIntent(ctx, intent)
	if err != nil {
		log.Error().Err(err).Str("action", string(intent.Action)).Msg("Failed to handle intent")
		return result, err
	}

	return result, nil
}
