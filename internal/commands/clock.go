// Package commands holds Luna's built-in voice command handlers. Each
// handler reads its arguments from the session context, does one unit of
// work, and leaves a result plus a spoken line behind.
package commands

import (
	"context"
	"fmt"
	"time"

	orchestration "github.com/lunavoice/luna/core"
)

// Clock answers "what time is it" style intents. now is injectable for
// tests; the zero value uses the wall clock.
type Clock struct {
	now func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

func (c *Clock) Handle(_ context.Context, contextMap *orchestration.ContextMap) (orchestration.Continuation, error) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}

	current := now()
	spoken := fmt.Sprintf("It's %s.", current.Format("3:04 PM"))

	contextMap.Set(orchestration.ContextKeyResult, current.Format(time.RFC3339))
	contextMap.Set(orchestration.ContextKeySpeech, spoken)
	return orchestration.Continuation{Stop: true}, nil
}
