// Package lobby owns users, matchmaking and the running game instances.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/data"
	"github.com/cardshifter/server/internal/game"
	"github.com/cardshifter/server/internal/net/packet"
	"github.com/cardshifter/server/internal/persist"
	"go.uber.org/zap"
)

// Opponent selectors of a startgame request. Positive values name a user.
const (
	OpponentQueue int32 = -1
	OpponentAI    int32 = 0
)

var (
	ErrEmptyName       = errors.New("user name is empty")
	ErrNameInUse       = errors.New("user name is already online")
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrAlreadyInGame   = errors.New("already in a game")
	ErrNotInGame       = errors.New("not in a game")
	ErrUnknownRuleset  = errors.New("unknown ruleset")
	ErrUnknownOpponent = errors.New("opponent is not online")
	ErrOpponentBusy    = errors.New("opponent is already in a game")
	ErrShuttingDown    = errors.New("server is shutting down")
)

// Client is the connection side of a user. *net.Session implements it.
type Client interface {
	Send(msg packet.Message)
	SessionID() uint64
	SetState(st packet.SessionState)
}

// Store persists players and finished games.
type Store interface {
	Touch(ctx context.Context, name string) error
	Stats(ctx context.Context, name string) (*persist.PlayerRow, error)
	Record(ctx context.Context, res persist.GameResult) (string, error)
}

// Options configure a Lobby.
type Options struct {
	Rulesets       *data.RulesetTable
	DefaultRuleset string
	Policy         game.Policy
	AITick         time.Duration
	AIName         string
	Store          Store // nil disables persistence
}

// User is a logged in client.
type User struct {
	ID     int32
	Name   string
	client Client
	inst   *Instance
	seat   int
}

// Lobby is safe for concurrent use. Lock order is lobby, then game; game
// event handlers never take the lobby lock.
type Lobby struct {
	opts Options
	log  *zap.Logger
	ctx  context.Context

	mu        sync.Mutex
	nextUser  int32
	nextGame  int32
	users     map[int32]*User
	byName    map[string]*User
	bySession map[uint64]*User
	waiting   map[string]*User // by ruleset name
	games     map[int32]*Instance
	closing   bool // no new games once set

	wg sync.WaitGroup // finishing games
}

func New(ctx context.Context, opts Options, log *zap.Logger) *Lobby {
	if opts.AITick <= 0 {
		opts.AITick = 500 * time.Millisecond
	}
	if opts.AIName == "" {
		opts.AIName = "AI"
	}
	if opts.Policy == nil {
		opts.Policy = game.NewRandomPolicy(time.Now().UnixNano())
	}
	return &Lobby{
		opts:      opts,
		log:       log,
		ctx:       ctx,
		users:     make(map[int32]*User),
		byName:    make(map[string]*User),
		bySession: make(map[uint64]*User),
		waiting:   make(map[string]*User),
		games:     make(map[int32]*Instance),
	}
}

// Login registers c under name and answers with a loginresponse. A name that
// matches a detached seat of a running game takes that seat back.
func (l *Lobby) Login(c Client, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		c.Send(&packet.LoginResponseMessage{Message: ErrEmptyName.Error()})
		return nil, ErrEmptyName
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byName[strings.ToLower(name)]; ok {
		c.Send(&packet.LoginResponseMessage{Message: ErrNameInUse.Error()})
		return nil, ErrNameInUse
	}

	l.nextUser++
	u := &User{ID: l.nextUser, Name: name, client: c, seat: -1}
	l.users[u.ID] = u
	l.byName[strings.ToLower(name)] = u
	l.bySession[c.SessionID()] = u
	c.SetState(packet.StateLoggedIn)
	c.Send(&packet.LoginResponseMessage{Message: l.greet(name), OK: true, UserID: u.ID})
	l.log.Info("user logged in", zap.Int32("user", u.ID), zap.String("name", name))

	for _, inst := range l.games {
		if seat := inst.detachedSeat(name); seat >= 0 {
			inst.attach(seat, u)
			l.log.Info("user rejoined game", zap.Int32("game", inst.ID), zap.Int("seat", seat))
			break
		}
	}
	return u, nil
}

// greet records the login and builds the welcome line. Returning players
// are shown their record.
func (l *Lobby) greet(name string) string {
	msg := "Welcome " + name
	if l.opts.Store == nil {
		return msg
	}
	ctx, cancel := context.WithTimeout(l.ctx, 5*time.Second)
	defer cancel()
	if err := l.opts.Store.Touch(ctx, name); err != nil {
		l.log.Error("record login failed", zap.String("name", name), zap.Error(err))
		return msg
	}
	row, err := l.opts.Store.Stats(ctx, name)
	if err != nil {
		l.log.Warn("load player record failed", zap.String("name", name), zap.Error(err))
		return msg
	}
	if row != nil && row.GamesPlayed > 0 {
		msg = fmt.Sprintf("Welcome back %s (%d wins in %d games)", name, row.GamesWon, row.GamesPlayed)
	}
	return msg
}

// UserBySession returns the user logged in on a session.
func (l *Lobby) UserBySession(id uint64) (*User, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.bySession[id]
	return u, ok
}

// StartGame starts or queues a game for u against opponent.
func (l *Lobby) StartGame(u *User, opponent int32, ruleset string) error {
	if ruleset == "" {
		ruleset = l.opts.DefaultRuleset
	}
	rs := l.opts.Rulesets.Get(ruleset)
	if rs == nil {
		return fmt.Errorf("%w: %q", ErrUnknownRuleset, ruleset)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closing {
		return ErrShuttingDown
	}
	if u.inst != nil {
		return ErrAlreadyInGame
	}
	if rs.Players < 2 && opponent != OpponentAI {
		return fmt.Errorf("ruleset %s seats a single player", rs.Name)
	}

	switch {
	case opponent == OpponentAI:
		return l.create(rs, []*User{u})
	case opponent < 0:
		key := strings.ToLower(rs.Name)
		w := l.waiting[key]
		if w == nil || w == u {
			l.waiting[key] = u
			u.client.Send(&packet.WaitMessage{Message: "Waiting for an opponent"})
			return nil
		}
		delete(l.waiting, key)
		return l.create(rs, []*User{w, u})
	default:
		other, ok := l.users[opponent]
		if !ok || other == u {
			return ErrUnknownOpponent
		}
		if other.inst != nil {
			return ErrOpponentBusy
		}
		l.unqueue(other)
		return l.create(rs, []*User{u, other})
	}
}

func (l *Lobby) unqueue(u *User) {
	for k, w := range l.waiting {
		if w == u {
			delete(l.waiting, k)
		}
	}
}

// create seats humans first and fills the rest with automated players.
func (l *Lobby) create(rs *data.Ruleset, humans []*User) error {
	for _, u := range humans {
		l.unqueue(u)
	}
	l.nextGame++
	id := l.nextGame
	specs := make([]game.SeatSpec, rs.Players)
	for i := range specs {
		if i < len(humans) {
			specs[i] = game.SeatSpec{Name: humans[i].Name}
			continue
		}
		specs[i] = game.SeatSpec{Name: l.opts.AIName, Automated: true}
	}
	inst, err := newInstance(l, id, rs, specs)
	if err != nil {
		return err
	}
	for i, u := range humans {
		inst.attach(i, u)
	}
	l.games[id] = inst
	if err := inst.start(l.ctx); err != nil {
		delete(l.games, id)
		for _, u := range humans {
			u.inst, u.seat = nil, -1
			u.client.SetState(packet.StateLoggedIn)
		}
		return err
	}
	return nil
}

// Use performs an action request of u.
func (l *Lobby) Use(u *User, msg *packet.UseMessage) error {
	inst, seat, err := l.seatOf(u, msg.GameID)
	if err != nil {
		return err
	}
	var targets []ecs.EntityID
	if msg.Target != 0 {
		targets = []ecs.EntityID{ecs.EntityID(msg.Target)}
	}
	ref := game.ActionRef{Owner: ecs.EntityID(msg.ID), Name: msg.Action}
	return inst.Game.Perform(inst.player(seat), ref, targets)
}

// RequestTargets answers u with the legal targets of an action.
func (l *Lobby) RequestTargets(u *User, msg *packet.RequestTargetsMessage) error {
	inst, seat, err := l.seatOf(u, msg.GameID)
	if err != nil {
		return err
	}
	ref := game.ActionRef{Owner: ecs.EntityID(msg.ID), Name: msg.Action}
	targets, err := inst.Game.Targets(inst.player(seat), ref)
	if err != nil {
		return err
	}
	out := make([]int32, len(targets))
	for i, t := range targets {
		out[i] = int32(t)
	}
	u.client.Send(&packet.TargetsMessage{Action: msg.Action, Entity: msg.ID, Targets: out})
	return nil
}

func (l *Lobby) seatOf(u *User, gameID int32) (*Instance, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if u.inst == nil || u.inst.ID != gameID {
		return nil, 0, fmt.Errorf("%w: %d", ErrNotInGame, gameID)
	}
	return u.inst, u.seat, nil
}

// Disconnect forgets the user of a closed session. Its seat is detached and
// the game ends when no human is left at the table.
func (l *Lobby) Disconnect(c Client) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.bySession[c.SessionID()]
	if !ok {
		return
	}
	delete(l.bySession, c.SessionID())
	delete(l.users, u.ID)
	delete(l.byName, strings.ToLower(u.Name))
	l.unqueue(u)
	l.log.Info("user logged out", zap.Int32("user", u.ID), zap.String("name", u.Name))

	inst := u.inst
	if inst == nil {
		return
	}
	seat := u.seat
	inst.detach(seat)
	u.inst, u.seat = nil, -1
	running := false
	notice := &packet.DisconnectMessage{Message: u.Name + " disconnected", PlayerIndex: int32(seat)}
	inst.Game.Do(func() {
		if running = inst.Game.State() == game.StateRunning; !running {
			return
		}
		for _, other := range inst.humans() {
			other.client.Send(notice)
		}
	})
	if running && len(inst.humans()) == 0 {
		if err := inst.Game.End("all players disconnected"); err != nil {
			l.log.Warn("end abandoned game", zap.Int32("game", inst.ID), zap.Error(err))
		}
	}
}

// finish runs once per game after it ended. It is called on its own
// goroutine because the game lock is held when GameEnded is published.
func (l *Lobby) finish(inst *Instance, res persist.GameResult) {
	defer l.wg.Done()
	inst.stop()

	l.mu.Lock()
	delete(l.games, inst.ID)
	for _, u := range inst.humans() {
		u.inst, u.seat = nil, -1
		u.client.SetState(packet.StateLoggedIn)
	}
	inst.clearSeats()
	l.mu.Unlock()

	if l.opts.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(l.ctx), 5*time.Second)
	defer cancel()
	id, err := l.opts.Store.Record(ctx, res)
	if err != nil {
		l.log.Error("record game failed", zap.Int32("game", inst.ID), zap.Error(err))
		return
	}
	l.log.Info("game recorded", zap.Int32("game", inst.ID), zap.String("record", id))
}

// Games returns the number of running games.
func (l *Lobby) Games() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.games)
}

// Users returns the number of logged in users.
func (l *Lobby) Users() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

// Game returns a running game by id.
func (l *Lobby) Game(id int32) (*Instance, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst, ok := l.games[id]
	return inst, ok
}

// Shutdown ends every running game and waits until their results are stored.
// StartGame fails with ErrShuttingDown from then on.
func (l *Lobby) Shutdown() {
	l.mu.Lock()
	l.closing = true
	games := make([]*Instance, 0, len(l.games))
	for _, inst := range l.games {
		games = append(games, inst)
	}
	l.mu.Unlock()
	for _, inst := range games {
		if err := inst.Game.End("server shutting down"); err != nil {
			l.log.Warn("end game on shutdown", zap.Int32("game", inst.ID), zap.Error(err))
		}
	}
	// Every game has ended under its own lock by now, so each recorder
	// already counted its finish goroutine.
	l.wg.Wait()
}
