// Package tui renders the assistant state in the terminal: an orb that
// reflects the turn lifecycle, a scrollback of the conversation, and
// push-to-talk key bindings.
package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	orchestration "github.com/lunavoice/luna/core"
	"github.com/lunavoice/luna/core/events"
)

// EventMsg wraps a bus event for delivery into the update loop.
type EventMsg struct {
	Event events.Event
}

// Bridge forwards bus events into a channel the tea program can drain.
// Delivery is lossy: if the UI lags behind the bus, events are dropped
// rather than stalling publishers.
type Bridge struct {
	events chan events.Event
	done   chan struct{}

	cancel    func()
	closeOnce sync.Once
}

func NewBridge(bus *orchestration.Bus) *Bridge {
	bridge := &Bridge{
		events: make(chan events.Event, 64),
		done:   make(chan struct{}),
	}
	bridge.cancel = bus.SubscribeAll(func(event events.Event) {
		select {
		case bridge.events <- event:
		case <-bridge.done:
		default:
		}
	})
	return bridge
}

// Wait returns a command that blocks for the next bus event. Re-issue it
// from Update after every EventMsg to keep the stream flowing.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case event := <-b.events:
			return EventMsg{Event: event}
		case <-b.done:
			return nil
		}
	}
}

func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.cancel()
		close(b.done)
	})
}
