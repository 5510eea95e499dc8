package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/hire-intake/internal/slots"
	"github.com/spigell/hire-intake/internal/stage"
	"github.com/spigell/hire-intake/internal/store"
)

// State is what a conversation carried into the current turn.
type State struct {
	Stage stage.Stage
	Slots slots.Slots
}

// RecoverState reads the newest assistant message with slots from st. An
// unknown conversation or an empty history yields the zero state at collect.
func RecoverState(ctx context.Context, st store.Store, conversationID string, limit int) (State, error) {
	empty := State{Stage: stage.Collect}
	if st == nil || conversationID == "" {
		return empty, nil
	}

	history, err := st.ListRecent(ctx, conversationID, limit)
	if errors.Is(err, store.ErrNotFound) {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("listing recent messages: %w", err)
	}

	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != store.RoleAssistant || msg.Meta.Slots == nil {
			continue
		}
		return State{
			Stage: stage.Parse(msg.Meta.Stage),
			Slots: msg.Meta.Slots.Clone(),
		}, nil
	}
	return empty, nil
}
