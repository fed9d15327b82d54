package lobby

import (
	"context"
	"time"

	"github.com/cardshifter/server/internal/broadcast"
	"github.com/cardshifter/server/internal/component"
	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/core/event"
	"github.com/cardshifter/server/internal/core/system"
	"github.com/cardshifter/server/internal/data"
	"github.com/cardshifter/server/internal/game"
	"github.com/cardshifter/server/internal/net/packet"
	"github.com/cardshifter/server/internal/persist"
	"go.uber.org/zap"
)

// Instance is one running game with its broadcaster and scheduler. Seats are
// guarded by the lobby lock.
type Instance struct {
	ID          int32
	Game        *game.Game
	Broadcaster *broadcast.Broadcaster

	lobby     *Lobby
	scheduler *game.Scheduler
	seats     []*User // nil for automated or detached seats
	started   time.Time
	log       *zap.Logger
}

func newInstance(l *Lobby, id int32, rs *data.Ruleset, specs []game.SeatSpec) (*Instance, error) {
	log := l.log.With(zap.Int32("game", id))
	g, err := game.New(game.Config{
		ID:      id,
		Ruleset: rs,
		Seats:   specs,
		Seed:    time.Now().UnixNano(),
		Log:     l.log,
	})
	if err != nil {
		return nil, err
	}
	inst := &Instance{
		ID:          id,
		Game:        g,
		Broadcaster: broadcast.New(g, l.log),
		lobby:       l,
		seats:       make([]*User, len(specs)),
		log:         log,
	}
	g.Use(inst.Broadcaster)
	g.Use(&recorder{inst: inst})
	for _, s := range specs {
		if s.Automated {
			inst.scheduler = game.NewScheduler(g, l.opts.Policy, l.opts.AITick, l.log)
			break
		}
	}
	return inst, nil
}

func (inst *Instance) start(ctx context.Context) error {
	inst.started = time.Now()
	if err := inst.Game.Start(); err != nil {
		return err
	}
	if inst.scheduler != nil {
		inst.scheduler.Start(ctx)
	}
	return nil
}

func (inst *Instance) stop() {
	if inst.scheduler != nil {
		inst.scheduler.Stop()
	}
}

// attach seats u and, when the game already runs, replays its state.
func (inst *Instance) attach(seat int, u *User) {
	inst.seats[seat] = u
	u.inst, u.seat = inst, seat
	u.client.SetState(packet.StateInGame)
	u.client.Send(&packet.NewGameMessage{GameID: inst.ID, PlayerIndex: int32(seat)})
	inst.Game.Do(func() {
		inst.Game.BindSession(seat, component.SessionRef{SessionID: u.client.SessionID(), UserID: u.ID})
		inst.Broadcaster.Attach(seat, u.client)
		if inst.Game.State() == game.StateRunning {
			inst.Broadcaster.SendSnapshot(seat)
		}
	})
}

func (inst *Instance) detach(seat int) {
	inst.seats[seat] = nil
	inst.Game.Do(func() {
		inst.Broadcaster.Detach(seat)
		inst.Game.BindSession(seat, component.SessionRef{})
	})
}

// detachedSeat returns the human seat named name that lost its user, or -1.
func (inst *Instance) detachedSeat(name string) int {
	if inst.Game.State() != game.StateRunning {
		return -1
	}
	for _, s := range inst.Game.Seats() {
		if !s.Automated && inst.seats[s.Index] == nil && s.Name == name {
			return s.Index
		}
	}
	return -1
}

// humans returns the connected users in seat order.
func (inst *Instance) humans() []*User {
	var out []*User
	for _, u := range inst.seats {
		if u != nil {
			out = append(out, u)
		}
	}
	return out
}

func (inst *Instance) clearSeats() {
	for i := range inst.seats {
		inst.seats[i] = nil
	}
}

func (inst *Instance) player(seat int) ecs.EntityID {
	seats := inst.Game.Seats()
	if seat < 0 || seat >= len(seats) {
		return 0
	}
	return seats[seat].Player
}

// recorder hands a finished game back to the lobby.
type recorder struct {
	inst *Instance
}

func (r *recorder) Phase() system.Phase { return system.PhaseRecord }

func (r *recorder) Install(bus *event.Bus) error {
	event.On(bus, event.After, func(ev event.GameEnded) error {
		inst := r.inst
		g := inst.Game
		res := persist.GameResult{
			Ruleset:   g.Ruleset().Name,
			Turns:     g.Turn(),
			Winner:    -1,
			Reason:    ev.Reason,
			StartedAt: inst.started,
			EndedAt:   time.Now(),
		}
		for _, s := range g.Seats() {
			res.Seats = append(res.Seats, persist.SeatResult{Name: s.Name, Automated: s.Automated})
			if s.Player == ev.Winner {
				res.Winner = s.Index
			}
		}
		inst.log.Info("game over", zap.Int("winner", res.Winner), zap.String("reason", ev.Reason), zap.Int("turns", res.Turns))
		inst.lobby.wg.Add(1)
		go inst.lobby.finish(inst, res)
		return nil
	})
	return nil
}
