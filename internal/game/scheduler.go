package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives automated turns of one game on a fixed interval. Each
// tick makes at most one move.
type Scheduler struct {
	game     *Game
	policy   Policy
	interval time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(g *Game, p Policy, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		game:     g,
		policy:   p,
		interval: interval,
		log:      log.With(zap.Int32("game", g.ID)),
	}
}

// Start runs the tick loop until Stop, ctx cancellation or the game ends.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Stop ends the tick loop and waits for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if s.game.State() == StateEnded {
			return
		}
		s.Tick()
	}
}

// Tick makes at most one automated move and reports whether it did.
func (s *Scheduler) Tick() bool {
	moved, err := s.game.Automate(s.policy)
	switch {
	case errors.Is(err, ErrNoAutomatedMove):
		s.log.Warn("automation policy returned no move")
	case err != nil:
		s.log.Warn("automated move failed", zap.Error(err))
	case moved:
		s.log.Debug("automated move")
	}
	return moved
}
