package packet

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateConnected SessionState = iota // awaiting login
	StateLoggedIn                      // in the lobby
	StateInGame                        // seated in a game
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateLoggedIn:
		return "LoggedIn"
	case StateInGame:
		return "InGame"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for message handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(ctx context.Context, sess any, msg Message)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps commands to handlers with state-based access control.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps a command to a handler, restricted to the given session states.
func (reg *Registry) Register(command string, states []SessionState, fn HandlerFunc) {
	if _, ok := kinds[command]; !ok {
		panic(fmt.Sprintf("packet: handler for unregistered command %q", command))
	}
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[command] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch finds the handler for msg, validates the session state, and calls
// the handler. Messages without a handler are ignored.
func (reg *Registry) Dispatch(sess any, sessionID uint64, state SessionState, msg Message) error {
	cmd := msg.Command()
	reg.log.Debug("received message",
		zap.String("command", cmd),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[cmd]
	if !ok {
		reg.log.Debug("no handler for command", zap.String("command", cmd), zap.String("state", state.String()))
		return nil
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("command not allowed in this state",
			zap.String("command", cmd),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("command %s not allowed in state %s", cmd, state)
	}

	ctx, span := otel.Tracer("cardshifter/packet").Start(context.Background(), "handle "+cmd)
	span.SetAttributes(
		attribute.String("command", cmd),
		attribute.Int64("session", int64(sessionID)),
	)
	defer span.End()

	if err := reg.safeCall(ctx, entry.fn, sess, msg); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// safeCall executes a handler with panic recovery to prevent a single
// bad message from crashing the server.
func (reg *Registry) safeCall(ctx context.Context, fn HandlerFunc, sess any, msg Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.String("command", msg.Command()),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for command %s: %v", msg.Command(), rec)
		}
	}()
	fn(ctx, sess, msg)
	return nil
}
