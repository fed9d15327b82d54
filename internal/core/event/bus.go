package event

import (
	"errors"
	"fmt"
)

// ErrReentrantPublish is returned when a handler publishes an event of the
// kind currently being published.
var ErrReentrantPublish = errors.New("re-entrant publish")

// Phase selects when a handler runs relative to the default processing.
type Phase uint8

const (
	Before Phase = iota // may veto by returning an error
	After               // sees committed state
)

// Handler reacts to one event.
type Handler func(Event) error

// Bus is a synchronous two-phase event bus. Publish runs before handlers,
// then the event's default processing, then after handlers, each phase in
// subscription order. The bus is not safe for concurrent use.
type Bus struct {
	handlers [kindCount][2][]Handler
	active   [kindCount]bool
	onError  func(Event, error)
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for events of kind k in phase p.
func (b *Bus) Subscribe(k Kind, p Phase, h Handler) {
	b.handlers[k][p] = append(b.handlers[k][p], h)
}

// On registers a typed handler for events of type T.
func On[T Event](b *Bus, p Phase, fn func(T) error) {
	var zero T
	b.Subscribe(zero.Kind(), p, func(ev Event) error {
		return fn(ev.(T))
	})
}

// OnHandlerError sets the function receiving after handler errors.
func (b *Bus) OnHandlerError(fn func(Event, error)) {
	b.onError = fn
}

// Publish delivers ev. apply is the default processing and may be nil. A
// before handler error vetoes the event: apply and after handlers are skipped
// and the error is returned. Every after handler runs even when one fails; the
// mutation stands, each failure goes to the OnHandlerError function and the
// failures are returned joined.
func (b *Bus) Publish(ev Event, apply func()) error {
	k := ev.Kind()
	if k == 0 || k >= kindCount {
		return fmt.Errorf("publish: unknown event kind %d", k)
	}
	if b.active[k] {
		return fmt.Errorf("publish %s: %w", k, ErrReentrantPublish)
	}
	b.active[k] = true
	defer func() { b.active[k] = false }()

	for _, h := range b.handlers[k][Before] {
		if err := h(ev); err != nil {
			return fmt.Errorf("%s vetoed: %w", k, err)
		}
	}
	if apply != nil {
		apply()
	}
	var errs []error
	for _, h := range b.handlers[k][After] {
		if err := h(ev); err != nil {
			if b.onError != nil {
				b.onError(ev, err)
			}
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s handlers: %w", k, errors.Join(errs...))
	}
	return nil
}
