package orchestration

import (
	"fmt"
	"sync"

	"github.com/lunavoice/luna/core/events"
)

type subscription struct {
	id      int
	handler func(events.Event)
}

// Bus is the process-wide publish/subscribe hub. Fan-out is synchronous
// and in subscription order, so publishers observe a consistent delivery
// sequence; subscribers must not block the publishing goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID int

	byKind map[events.Kind][]subscription
	all    []subscription

	// onSubscriberPanic receives recovered subscriber panics. Defaults to a
	// no-op; the orchestrator routes it into the central error reporter.
	onSubscriberPanic func(error)
}

func NewBus() *Bus {
	return &Bus{
		byKind:            make(map[events.Kind][]subscription),
		onSubscriberPanic: func(error) {},
	}
}

// SetPanicHandler installs the sink for recovered subscriber panics. A nil
// handler restores the no-op default.
func (b *Bus) SetPanicHandler(handler func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if handler == nil {
		handler = func(error) {}
	}
	b.onSubscriberPanic = handler
}

// Subscribe attaches handler to one event kind. The returned cancel
// function detaches it; cancelling twice is harmless.
func (b *Bus) Subscribe(kind events.Kind, handler func(events.Event)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.byKind[kind] = append(b.byKind[kind], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byKind[kind] = removeSubscription(b.byKind[kind], id)
	}
}

// SubscribeAll attaches handler to every event kind.
func (b *Bus) SubscribeAll(handler func(events.Event)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = removeSubscription(b.all, id)
	}
}

// Publish delivers event to kind subscribers first, then catch-all
// subscribers, each in subscription order. Subscriber panics are recovered
// and reported; they never unwind into the publisher.
func (b *Bus) Publish(event events.Event) {
	b.mu.RLock()
	kindSubs := make([]subscription, len(b.byKind[event.Kind()]))
	copy(kindSubs, b.byKind[event.Kind()])
	allSubs := make([]subscription, len(b.all))
	copy(allSubs, b.all)
	onPanic := b.onSubscriberPanic
	b.mu.RUnlock()

	for _, sub := range kindSubs {
		b.invoke(sub, event, onPanic)
	}
	for _, sub := range allSubs {
		b.invoke(sub, event, onPanic)
	}
}

func (b *Bus) invoke(sub subscription, event events.Event, onPanic func(error)) {
	defer func() {
		if recovered := recover(); recovered != nil {
			onPanic(fmt.Errorf("subscriber panicked on %s: %v", event.Kind(), recovered))
		}
	}()

	sub.handler(event)
}

func removeSubscription(subs []subscription, id int) []subscription {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
