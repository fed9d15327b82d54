package game

import (
	"errors"
	"fmt"
)

// Reason is the machine-readable code of a rejected move. It is sent to the
// offending client verbatim.
type Reason string

const (
	ReasonGameNotRunning   Reason = "GAME_NOT_RUNNING"
	ReasonNotYourTurn      Reason = "NOT_YOUR_TURN"
	ReasonActionNotFound   Reason = "ACTION_NOT_FOUND"
	ReasonActionNotAllowed Reason = "ACTION_NOT_ALLOWED"
	ReasonInvalidTarget    Reason = "INVALID_TARGET"
)

// Rejection is a recoverable refusal of a move. A rejected move has made no
// mutation and published no event.
type Rejection struct {
	Reason  Reason
	Message string
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

// Is reports whether target is a Rejection with the same reason.
func (r *Rejection) Is(target error) bool {
	if t, ok := target.(*Rejection); ok {
		return r.Reason == t.Reason
	}
	return false
}

var (
	ErrGameNotRunning   = &Rejection{Reason: ReasonGameNotRunning}
	ErrNotYourTurn      = &Rejection{Reason: ReasonNotYourTurn}
	ErrActionNotFound   = &Rejection{Reason: ReasonActionNotFound}
	ErrActionNotAllowed = &Rejection{Reason: ReasonActionNotAllowed}
	ErrInvalidTarget    = &Rejection{Reason: ReasonInvalidTarget}
)

// ErrNoAutomatedMove is returned when an automation policy yields nothing
// for a turn it holds.
var ErrNoAutomatedMove = errors.New("automation policy returned no move")

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err to a Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
