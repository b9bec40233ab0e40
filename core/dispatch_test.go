package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDispatchRunsRegisteredHandler(t *testing.T) {
	table := NewDispatchTable()
	table.Register("get_time", func(_ context.Context, contextMap *ContextMap) (Continuation, error) {
		contextMap.Set(ContextKeyResult, "14:05")
		return Continuation{Stop: true}, nil
	})

	contextMap := NewContextMap()
	continuation, err := table.Dispatch(context.Background(), "get_time", contextMap)
	if err != nil {
		t.Fatalf("expected successful dispatch, got %v", err)
	}
	if !continuation.Stop {
		t.Fatalf("expected handler continuation to propagate")
	}
	if got := contextMap.GetString(ContextKeyResult); got != "14:05" {
		t.Fatalf("expected handler result in context, got %q", got)
	}
}

func TestDispatchUnknownIntentBecomesContextError(t *testing.T) {
	table := NewDispatchTable()
	contextMap := NewContextMap()

	_, err := table.Dispatch(context.Background(), "launch_rocket", contextMap)
	if !errors.Is(err, ErrUnknownIntent) {
		t.Fatalf("expected ErrUnknownIntent, got %v", err)
	}

	message, solution, ok := contextMap.TakeError()
	if !ok {
		t.Fatalf("expected unknown intent recorded in context")
	}
	if !strings.Contains(message, "launch_rocket") {
		t.Fatalf("expected intent name in error message, got %q", message)
	}
	if solution == "" {
		t.Fatalf("expected a spoken fallback solution")
	}
}

func TestDispatchHandlerErrorIsDataNotFailure(t *testing.T) {
	table := NewDispatchTable()
	table.Register("get_weather", func(context.Context, *ContextMap) (Continuation, error) {
		return Continuation{}, errors.New("forecast service timed out")
	})

	contextMap := NewContextMap()
	_, err := table.Dispatch(context.Background(), "get_weather", contextMap)
	if err != nil {
		t.Fatalf("expected handler failure converted to context data, got %v", err)
	}

	message, solution, ok := contextMap.TakeError()
	if !ok {
		t.Fatalf("expected failure recorded in context")
	}
	if message != "forecast service timed out" {
		t.Fatalf("expected handler error message, got %q", message)
	}
	if solution == "" {
		t.Fatalf("expected a generic fallback solution")
	}
}

func TestDispatchKeepsHandlerProvidedErrorFields(t *testing.T) {
	table := NewDispatchTable()
	table.Register("get_weather", func(_ context.Context, contextMap *ContextMap) (Continuation, error) {
		contextMap.SetError(errors.New("city not found"), "Try naming a nearby larger city.")
		return Continuation{}, errors.New("city not found")
	})

	contextMap := NewContextMap()
	if _, err := table.Dispatch(context.Background(), "get_weather", contextMap); err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}

	_, solution, ok := contextMap.TakeError()
	if !ok {
		t.Fatalf("expected error fields present")
	}
	if solution != "Try naming a nearby larger city." {
		t.Fatalf("expected handler-provided solution kept, got %q", solution)
	}
}

func TestInvokeOneShotNormalizesOutcomes(t *testing.T) {
	table := NewDispatchTable()
	table.RegisterOneShot("list_apps", func(context.Context, map[string]any) (any, error) {
		return []string{"terminal", "browser"}, nil
	})
	table.RegisterOneShot("broken", func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("exec failed")
	})

	ok := table.Invoke(context.Background(), "list_apps", nil)
	if ok.Error != "" || ok.Result == nil {
		t.Fatalf("expected plain result, got %+v", ok)
	}

	failed := table.Invoke(context.Background(), "broken", nil)
	if failed.Error != "exec failed" || failed.ErrorSolution == "" {
		t.Fatalf("expected error as data, got %+v", failed)
	}

	unknown := table.Invoke(context.Background(), "nope", nil)
	if unknown.Error == "" || unknown.ErrorSolution == "" {
		t.Fatalf("expected unknown command error as data, got %+v", unknown)
	}
}

func TestIntentsAreSorted(t *testing.T) {
	table := NewDispatchTable()
	table.Register("weather", func(context.Context, *ContextMap) (Continuation, error) { return Continuation{}, nil })
	table.Register("clock", func(context.Context, *ContextMap) (Continuation, error) { return Continuation{}, nil })

	intents := table.Intents()
	if len(intents) != 2 || intents[0] != "clock" || intents[1] != "weather" {
		t.Fatalf("expected sorted intent names, got %v", intents)
	}
}
