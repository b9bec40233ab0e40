package orchestration

import (
	"fmt"
	"sync"

	"github.com/jinzhu/copier"
)

// Keys the orchestrator itself maintains in the session context. Command
// handlers may add arbitrary keys of their own next to these.
const (
	ContextKeyTranscript    = "transcript"
	ContextKeyIntent        = "intent"
	ContextKeyIntentArgs    = "intent_args"
	ContextKeyResult        = "result"
	ContextKeySpeech        = "speech"
	ContextKeyError         = "error"
	ContextKeyErrorSolution = "error_solution"
)

// ContextMap is the mutable state shared across one conversation turn:
// the transcript and recognized intent flow in, command handlers leave
// results and speech behind, and the provider receives a snapshot on the
// next exchange. Safe for concurrent use.
type ContextMap struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewContextMap() *ContextMap {
	return &ContextMap{values: make(map[string]any)}
}

func (c *ContextMap) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

func (c *ContextMap) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.values[key]
	return value, ok
}

func (c *ContextMap) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
}

// GetString returns the value under key when it is a string, "" otherwise.
func (c *ContextMap) GetString(key string) string {
	value, ok := c.Get(key)
	if !ok {
		return ""
	}
	text, _ := value.(string)
	return text
}

// SetError records a handler failure and the user-facing recovery text the
// response path speaks. The error is stored as its message; downstream
// consumers only ever render it.
func (c *ContextMap) SetError(err error, solution string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[ContextKeyError] = fmt.Sprintf("%v", err)
	c.values[ContextKeyErrorSolution] = solution
}

// TakeError removes and returns the recorded error message and recovery
// text, so one failure is spoken at most once.
func (c *ContextMap) TakeError() (message, solution string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, present := c.values[ContextKeyError]
	if !present {
		return "", "", false
	}
	message, _ = raw.(string)
	solution, _ = c.values[ContextKeyErrorSolution].(string)
	delete(c.values, ContextKeyError)
	delete(c.values, ContextKeyErrorSolution)
	return message, solution, true
}

// Snapshot returns a deep copy of the context suitable for handing to the
// provider without racing later handler mutations.
func (c *ContextMap) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]any, len(c.values))
	if err := copier.CopyWithOption(&snapshot, c.values, copier.Option{DeepCopy: true}); err != nil {
		// Fall back to a shallow copy; values are overwhelmingly scalars.
		for key, value := range c.values {
			snapshot[key] = value
		}
	}
	return snapshot
}

// Replace swaps the whole context for the provider-returned map. A nil
// replacement clears the context.
func (c *ContextMap) Replace(values map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if values == nil {
		c.values = make(map[string]any)
		return
	}
	c.values = values
}

// Reset clears every key, returning the context to its turn-start state.
func (c *ContextMap) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]any)
}

func (c *ContextMap) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
