package orchestration

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Continuation is what a conversational handler tells the orchestrator
// about the rest of the turn. Stop ends the turn immediately, skipping
// any further provider interaction.
type Continuation struct {
	Stop bool
}

// CommandHandler performs one unit of work for a recognized intent. It
// reads and mutates the session context in place; failures are returned,
// not panicked, and the dispatcher converts them to context error fields.
type CommandHandler func(ctx context.Context, contextMap *ContextMap) (Continuation, error)

// OneShotHandler serves tool-style invocations that carry structured
// arguments instead of a conversation turn.
type OneShotHandler func(ctx context.Context, args map[string]any) (any, error)

// OneShotResult normalizes a tool invocation outcome. Exactly one of
// Result or Error is meaningful.
type OneShotResult struct {
	Result        any    `json:"result,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorSolution string `json:"error_solution,omitempty"`
}

var ErrUnknownIntent = fmt.Errorf("unknown intent")

// DispatchTable routes intent names to their handlers. Registration
// happens at composition time; dispatch may run concurrently afterwards.
type DispatchTable struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
	oneShots map[string]OneShotHandler
}

func NewDispatchTable() *DispatchTable {
	return &DispatchTable{
		handlers: make(map[string]CommandHandler),
		oneShots: make(map[string]OneShotHandler),
	}
}

// Register binds a conversational handler to an intent name, replacing
// any previous binding.
func (d *DispatchTable) Register(intent string, handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[intent] = handler
}

// RegisterOneShot binds a tool-style handler to an intent name.
func (d *DispatchTable) RegisterOneShot(intent string, handler OneShotHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.oneShots[intent] = handler
}

// Intents returns the registered conversational intent names, sorted.
func (d *DispatchTable) Intents() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	intents := make([]string, 0, len(d.handlers))
	for intent := range d.handlers {
		intents = append(intents, intent)
	}
	sort.Strings(intents)
	return intents
}

// Dispatch runs the handler for intent against the session context.
// Handler failures never escape as errors to the caller's control flow
// decision: they are written into the context as error/error_solution
// fields and the turn continues, so the response path can always speak a
// recovery line. Unknown intents are reported the same way and returned
// as [ErrUnknownIntent] so the orchestrator can count them.
func (d *DispatchTable) Dispatch(ctx context.Context, intent string, contextMap *ContextMap) (Continuation, error) {
	d.mu.RLock()
	handler, ok := d.handlers[intent]
	d.mu.RUnlock()

	if !ok {
		contextMap.SetError(
			fmt.Errorf("%w: %s", ErrUnknownIntent, intent),
			"I don't know that command yet.",
		)
		return Continuation{}, fmt.Errorf("%w: %s", ErrUnknownIntent, intent)
	}

	continuation, err := handler(ctx, contextMap)
	if err != nil {
		// A handler that already wrote its own error/error_solution pair
		// keeps it; otherwise record the failure with the generic fallback.
		if _, recorded := contextMap.Get(ContextKeyError); !recorded {
			contextMap.SetError(err, "Sorry, I couldn't finish that. Please try again.")
		}
	}
	return continuation, nil
}

// Invoke runs a one-shot tool handler. Errors come back as data, never
// as a Go error, matching the tool invocation boundary.
func (d *DispatchTable) Invoke(ctx context.Context, intent string, args map[string]any) OneShotResult {
	d.mu.RLock()
	handler, ok := d.oneShots[intent]
	d.mu.RUnlock()

	if !ok {
		return OneShotResult{
			Error:         fmt.Sprintf("unknown command %q", intent),
			ErrorSolution: "I don't know that command yet.",
		}
	}

	result, err := handler(ctx, args)
	if err != nil {
		return OneShotResult{
			Error:         err.Error(),
			ErrorSolution: "Something went wrong running that command.",
		}
	}
	return OneShotResult{Result: result}
}
