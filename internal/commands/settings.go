package commands

import (
	"context"
	"fmt"

	orchestration "github.com/lunavoice/luna/core"
	"github.com/lunavoice/luna/internal/store"
)

// Settings exposes the key-value store as voice commands.
type Settings struct {
	store store.Store
}

func NewSettings(s store.Store) *Settings {
	return &Settings{store: s}
}

func (s *Settings) HandleGet(_ context.Context, contextMap *orchestration.ContextMap) (orchestration.Continuation, error) {
	key := argString(contextMap, "key")
	if key == "" {
		contextMap.SetError(
			fmt.Errorf("no key in settings request"),
			"Which setting would you like to hear?",
		)
		return orchestration.Continuation{}, fmt.Errorf("no key in settings request")
	}

	value, ok := s.store.Get(key)
	if !ok {
		contextMap.Set(orchestration.ContextKeySpeech, fmt.Sprintf("There is no setting named %s.", key))
		return orchestration.Continuation{Stop: true}, nil
	}

	contextMap.Set(orchestration.ContextKeyResult, value)
	contextMap.Set(orchestration.ContextKeySpeech, fmt.Sprintf("%s is set to %s.", key, value))
	return orchestration.Continuation{Stop: true}, nil
}

func (s *Settings) HandleSet(_ context.Context, contextMap *orchestration.ContextMap) (orchestration.Continuation, error) {
	key := argString(contextMap, "key")
	value := argString(contextMap, "value")
	if key == "" || value == "" {
		contextMap.SetError(
			fmt.Errorf("settings update needs a key and a value"),
			"Tell me the setting name and the value to store.",
		)
		return orchestration.Continuation{}, fmt.Errorf("settings update needs a key and a value")
	}

	if err := s.store.Set(key, value); err != nil {
		contextMap.SetError(
			fmt.Errorf("failed to save setting: %w", err),
			"I couldn't save that setting.",
		)
		return orchestration.Continuation{}, err
	}

	contextMap.Set(orchestration.ContextKeyResult, value)
	contextMap.Set(orchestration.ContextKeySpeech, fmt.Sprintf("Saved %s.", key))
	return orchestration.Continuation{Stop: true}, nil
}

// argString pulls one string argument out of the intent args map.
func argString(contextMap *orchestration.ContextMap, name string) string {
	raw, ok := contextMap.Get(orchestration.ContextKeyIntentArgs)
	if !ok {
		return ""
	}
	args, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	value, _ := args[name].(string)
	return value
}
