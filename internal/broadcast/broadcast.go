// Package broadcast turns game events into per-client sync messages. Each
// client only learns what its seat may observe.
package broadcast

import (
	"sort"
	"sync"

	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/core/event"
	"github.com/cardshifter/server/internal/core/system"
	"github.com/cardshifter/server/internal/game"
	"github.com/cardshifter/server/internal/net/packet"
	"go.uber.org/zap"
)

// Client receives messages for one seat. Send must not block.
type Client interface {
	Send(msg packet.Message)
}

// Broadcaster is a sync-phase system. Its handlers run under the game lock,
// so messages reach every client in event order.
type Broadcaster struct {
	g   *game.Game
	log *zap.Logger

	mu      sync.Mutex
	clients map[int]Client // by seat index
	armed   bool
}

func New(g *game.Game, log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		g:       g,
		log:     log.With(zap.Int32("game", g.ID)),
		clients: make(map[int]Client),
	}
}

func (b *Broadcaster) Phase() system.Phase { return system.PhaseSync }

func (b *Broadcaster) Install(bus *event.Bus) error {
	event.On(bus, event.After, b.onGameStarted)
	event.On(bus, event.After, b.onResourceChanged)
	event.On(bus, event.After, b.onZoneChanged)
	event.On(bus, event.After, b.onEntityRemoved)
	event.On(bus, event.After, b.onActionPerformed)
	event.On(bus, event.After, b.onGameEnded)
	event.On(bus, event.After, b.onZoneRevealed)
	return nil
}

// Attach binds a client to a seat, replacing any previous one.
func (b *Broadcaster) Attach(index int, c Client) {
	b.mu.Lock()
	b.clients[index] = c
	b.mu.Unlock()
}

// Detach drops the client of a seat. Later events skip that seat.
func (b *Broadcaster) Detach(index int) {
	b.mu.Lock()
	delete(b.clients, index)
	b.mu.Unlock()
}

// Attached reports whether a seat has a client.
func (b *Broadcaster) Attached(index int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.clients[index]
	return ok
}

// SendSnapshot sends the full visible state to one seat. Call it under the
// game lock (game.Do) so no event interleaves with the snapshot.
func (b *Broadcaster) SendSnapshot(index int) {
	b.mu.Lock()
	c, ok := b.clients[index]
	b.mu.Unlock()
	if !ok {
		return
	}
	b.snapshot(index, c)
}

type target struct {
	index int
	c     Client
}

// targets returns the attached clients in seat order.
func (b *Broadcaster) targets() []target {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]target, 0, len(b.clients))
	for i, c := range b.clients {
		out = append(out, target{index: i, c: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

func (b *Broadcaster) sendAll(msg packet.Message) {
	for _, t := range b.targets() {
		t.c.Send(msg)
	}
}

// viewer returns the player entity seated at index.
func (b *Broadcaster) viewer(index int) ecs.EntityID {
	seats := b.g.Seats()
	if index < 0 || index >= len(seats) {
		return 0
	}
	return seats[index].Player
}

func (b *Broadcaster) onGameStarted(event.GameStarted) error {
	b.armed = true
	for _, t := range b.targets() {
		b.snapshot(t.index, t.c)
	}
	return nil
}

func (b *Broadcaster) onResourceChanged(ev event.ResourceChanged) error {
	if !b.armed {
		return nil
	}
	msg := &packet.UpdateMessage{ID: int32(ev.Entity), Key: ev.Resource, Value: ev.New}
	card, isCard := b.g.Card(ev.Entity)
	for _, t := range b.targets() {
		if isCard && !b.g.ZoneKnownTo(card.Zone, b.viewer(t.index)) {
			continue
		}
		t.c.Send(msg)
	}
	return nil
}

func (b *Broadcaster) onZoneChanged(ev event.ZoneChanged) error {
	if !b.armed {
		return nil
	}
	move := &packet.ZoneChangeMessage{
		DestinationZone: int32(ev.To),
		Entity:          int32(ev.Entity),
		SourceZone:      int32(ev.From),
	}
	for _, t := range b.targets() {
		t.c.Send(move)
		viewer := b.viewer(t.index)
		if b.g.ZoneKnownTo(ev.To, viewer) && !b.g.ZoneKnownTo(ev.From, viewer) {
			t.c.Send(b.cardMessage(ev.Entity))
		}
	}
	return nil
}

func (b *Broadcaster) onEntityRemoved(ev event.EntityRemoved) error {
	if !b.armed {
		return nil
	}
	b.sendAll(&packet.EntityRemovedMessage{Entity: int32(ev.Entity)})
	return nil
}

func (b *Broadcaster) onActionPerformed(event.ActionPerformed) error {
	if !b.armed {
		return nil
	}
	b.sendAll(&packet.ResetActionsMessage{})
	holder := b.g.CurrentPlayer()
	seat, ok := b.g.SeatOf(holder)
	if !ok {
		return nil
	}
	b.mu.Lock()
	c, ok := b.clients[seat.Index]
	b.mu.Unlock()
	if ok {
		b.sendActions(c, holder)
	}
	return nil
}

func (b *Broadcaster) onGameEnded(ev event.GameEnded) error {
	winner := int32(-1)
	if seat, ok := b.g.SeatOf(ev.Winner); ok {
		winner = int32(seat.Index)
	}
	b.sendAll(&packet.GameOverMessage{GameID: b.g.ID, Message: ev.Reason, Winner: winner})
	return nil
}

// onZoneRevealed tells the newly informed seat what the zone holds.
func (b *Broadcaster) onZoneRevealed(ev event.ZoneRevealed) error {
	if !b.armed {
		return nil
	}
	seat, ok := b.g.SeatOf(ev.Player)
	if !ok {
		return nil
	}
	b.mu.Lock()
	c, ok := b.clients[seat.Index]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	msg, cards := b.zoneMessage(ev.Zone, ev.Player)
	c.Send(msg)
	for _, card := range cards {
		c.Send(b.cardMessage(card))
	}
	return nil
}

// zoneMessage describes zone as viewer sees it and returns the cards viewer
// may be told about.
func (b *Broadcaster) zoneMessage(zid, viewer ecs.EntityID) (*packet.ZoneMessage, []ecs.EntityID) {
	z, _ := b.g.Zone(zid)
	cards := b.g.ZoneCards(zid)
	msg := &packet.ZoneMessage{
		ID:    int32(zid),
		Name:  z.Name,
		Owner: int32(z.Owner),
		Size:  int32(len(cards)),
		Known: b.g.ZoneKnownTo(zid, viewer),
	}
	if !msg.Known {
		return msg, nil
	}
	msg.Entities = toInts(cards)
	return msg, cards
}

func (b *Broadcaster) snapshot(index int, c Client) {
	g := b.g
	viewer := b.viewer(index)
	for _, s := range g.Seats() {
		c.Send(&packet.PlayerMessage{
			ID:         int32(s.Player),
			Index:      int32(s.Index),
			Name:       s.Name,
			Properties: g.Resources(s.Player),
		})
	}
	var known []ecs.EntityID
	for _, zid := range g.ZoneIDs() {
		msg, cards := b.zoneMessage(zid, viewer)
		known = append(known, cards...)
		c.Send(msg)
	}
	for _, card := range known {
		c.Send(b.cardMessage(card))
	}
	c.Send(&packet.ResetActionsMessage{})
	if g.State() == game.StateRunning && g.CurrentPlayer() == viewer {
		b.sendActions(c, viewer)
	}
}

func (b *Broadcaster) sendActions(c Client, player ecs.EntityID) {
	for _, av := range b.g.Engine().LegalActions(player) {
		c.Send(&packet.UseableMessage{
			Action:         av.Ref.Name,
			ID:             int32(av.Ref.Owner),
			TargetRequired: av.RequiresTarget,
		})
	}
}

func (b *Broadcaster) cardMessage(id ecs.EntityID) *packet.CardMessage {
	msg := &packet.CardMessage{ID: int32(id), Properties: b.g.Resources(id)}
	if card, ok := b.g.Card(id); ok {
		msg.Zone = int32(card.Zone)
	}
	return msg
}

func toInts(ids []ecs.EntityID) []int32 {
	out := make([]int32, len(ids))
	for i, id := range ids {
		out[i] = int32(id)
	}
	return out
}
