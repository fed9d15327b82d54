package packet

// Command tags.
const (
	CmdLogin          = "login"
	CmdLoginResponse  = "loginresponse"
	CmdStartGame      = "startgame"
	CmdWait           = "wait"
	CmdNewGame        = "newgame"
	CmdPlayer         = "player"
	CmdZone           = "zone"
	CmdCard           = "card"
	CmdZoneChange     = "zoneChange"
	CmdEntityRemoved  = "entityRemoved"
	CmdUpdate         = "update"
	CmdUseable        = "useable"
	CmdResetActions   = "resetActions"
	CmdRequestTargets = "requestTargets"
	CmdTargets        = "targets"
	CmdUse            = "use"
	CmdDisconnect     = "disconnect"
	CmdGameOver       = "gameover"
	CmdError          = "error"
)

var kinds = buildKinds(
	kind(Schema{CmdLogin, []Field{
		{"username", FieldString},
	}}, func() Message { return &LoginMessage{} }),
	kind(Schema{CmdLoginResponse, []Field{
		{"message", FieldString},
		{"ok", FieldBool},
		{"userId", FieldInt},
	}}, func() Message { return &LoginResponseMessage{} }),
	kind(Schema{CmdStartGame, []Field{
		{"gameType", FieldString},
		{"opponent", FieldInt},
	}}, func() Message { return &StartGameMessage{} }),
	kind(Schema{CmdWait, []Field{
		{"message", FieldString},
	}}, func() Message { return &WaitMessage{} }),
	kind(Schema{CmdNewGame, []Field{
		{"gameId", FieldInt},
		{"playerIndex", FieldInt},
	}}, func() Message { return &NewGameMessage{} }),
	kind(Schema{CmdPlayer, []Field{
		{"id", FieldInt},
		{"index", FieldInt},
		{"name", FieldString},
		{"properties", FieldIntMap},
	}}, func() Message { return &PlayerMessage{} }),
	kind(Schema{CmdZone, []Field{
		{"entities", FieldInts},
		{"id", FieldInt},
		{"known", FieldBool},
		{"name", FieldString},
		{"owner", FieldInt},
		{"size", FieldInt},
	}}, func() Message { return &ZoneMessage{} }),
	kind(Schema{CmdCard, []Field{
		{"id", FieldInt},
		{"properties", FieldIntMap},
		{"zone", FieldInt},
	}}, func() Message { return &CardMessage{} }),
	kind(Schema{CmdZoneChange, []Field{
		{"destinationZone", FieldInt},
		{"entity", FieldInt},
		{"sourceZone", FieldInt},
	}}, func() Message { return &ZoneChangeMessage{} }),
	kind(Schema{CmdEntityRemoved, []Field{
		{"entity", FieldInt},
	}}, func() Message { return &EntityRemovedMessage{} }),
	kind(Schema{CmdUpdate, []Field{
		{"id", FieldInt},
		{"key", FieldString},
		{"value", FieldInt},
	}}, func() Message { return &UpdateMessage{} }),
	kind(Schema{CmdUseable, []Field{
		{"action", FieldString},
		{"id", FieldInt},
		{"targetId", FieldInt},
		{"targetRequired", FieldBool},
	}}, func() Message { return &UseableMessage{} }),
	kind(Schema{CmdResetActions, nil}, func() Message { return &ResetActionsMessage{} }),
	kind(Schema{CmdRequestTargets, []Field{
		{"action", FieldString},
		{"gameId", FieldInt},
		{"id", FieldInt},
	}}, func() Message { return &RequestTargetsMessage{} }),
	kind(Schema{CmdTargets, []Field{
		{"action", FieldString},
		{"entity", FieldInt},
		{"targets", FieldInts},
	}}, func() Message { return &TargetsMessage{} }),
	kind(Schema{CmdUse, []Field{
		{"action", FieldString},
		{"gameId", FieldInt},
		{"id", FieldInt},
		{"target", FieldInt},
	}}, func() Message { return &UseMessage{} }),
	kind(Schema{CmdDisconnect, []Field{
		{"message", FieldString},
		{"playerIndex", FieldInt},
	}}, func() Message { return &DisconnectMessage{} }),
	kind(Schema{CmdGameOver, []Field{
		{"gameId", FieldInt},
		{"message", FieldString},
		{"winner", FieldInt},
	}}, func() Message { return &GameOverMessage{} }),
	kind(Schema{CmdError, []Field{
		{"code", FieldString},
		{"message", FieldString},
	}}, func() Message { return &ErrorMessage{} }),
)

// LoginMessage asks to join the server under a user name.
type LoginMessage struct {
	Username string
}

func (*LoginMessage) Command() string { return CmdLogin }
func (m *LoginMessage) Values() []any { return []any{&m.Username} }

type LoginResponseMessage struct {
	Message string
	OK      bool
	UserID  int32
}

func (*LoginResponseMessage) Command() string { return CmdLoginResponse }
func (m *LoginResponseMessage) Values() []any {
	return []any{&m.Message, &m.OK, &m.UserID}
}

// StartGameMessage asks for a game. Opponent -1 queues for the next free
// player, 0 plays the server AI, a user id challenges that user.
type StartGameMessage struct {
	GameType string
	Opponent int32
}

func (*StartGameMessage) Command() string { return CmdStartGame }
func (m *StartGameMessage) Values() []any { return []any{&m.GameType, &m.Opponent} }

type WaitMessage struct {
	Message string
}

func (*WaitMessage) Command() string { return CmdWait }
func (m *WaitMessage) Values() []any { return []any{&m.Message} }

type NewGameMessage struct {
	GameID      int32
	PlayerIndex int32
}

func (*NewGameMessage) Command() string { return CmdNewGame }
func (m *NewGameMessage) Values() []any { return []any{&m.GameID, &m.PlayerIndex} }

type PlayerMessage struct {
	ID         int32
	Index      int32
	Name       string
	Properties map[string]int32
}

func (*PlayerMessage) Command() string { return CmdPlayer }
func (m *PlayerMessage) Values() []any {
	return []any{&m.ID, &m.Index, &m.Name, &m.Properties}
}

// ZoneMessage describes a zone. Entities is filled only when the zone is
// known to the receiver; Size is always set.
type ZoneMessage struct {
	Entities []int32
	ID       int32
	Known    bool
	Name     string
	Owner    int32
	Size     int32
}

func (*ZoneMessage) Command() string { return CmdZone }
func (m *ZoneMessage) Values() []any {
	return []any{&m.Entities, &m.ID, &m.Known, &m.Name, &m.Owner, &m.Size}
}

type CardMessage struct {
	ID         int32
	Properties map[string]int32
	Zone       int32
}

func (*CardMessage) Command() string { return CmdCard }
func (m *CardMessage) Values() []any { return []any{&m.ID, &m.Properties, &m.Zone} }

type ZoneChangeMessage struct {
	DestinationZone int32
	Entity          int32
	SourceZone      int32
}

func (*ZoneChangeMessage) Command() string { return CmdZoneChange }
func (m *ZoneChangeMessage) Values() []any {
	return []any{&m.DestinationZone, &m.Entity, &m.SourceZone}
}

type EntityRemovedMessage struct {
	Entity int32
}

func (*EntityRemovedMessage) Command() string { return CmdEntityRemoved }
func (m *EntityRemovedMessage) Values() []any { return []any{&m.Entity} }

type UpdateMessage struct {
	ID    int32
	Key   string
	Value int32
}

func (*UpdateMessage) Command() string { return CmdUpdate }
func (m *UpdateMessage) Values() []any { return []any{&m.ID, &m.Key, &m.Value} }

// UseableMessage offers one legal action. TargetID is 0 when no target is
// preselected.
type UseableMessage struct {
	Action         string
	ID             int32
	TargetID       int32
	TargetRequired bool
}

func (*UseableMessage) Command() string { return CmdUseable }
func (m *UseableMessage) Values() []any {
	return []any{&m.Action, &m.ID, &m.TargetID, &m.TargetRequired}
}

type ResetActionsMessage struct{}

func (*ResetActionsMessage) Command() string { return CmdResetActions }
func (*ResetActionsMessage) Values() []any   { return nil }

type RequestTargetsMessage struct {
	Action string
	GameID int32
	ID     int32
}

func (*RequestTargetsMessage) Command() string { return CmdRequestTargets }
func (m *RequestTargetsMessage) Values() []any {
	return []any{&m.Action, &m.GameID, &m.ID}
}

type TargetsMessage struct {
	Action  string
	Entity  int32
	Targets []int32
}

func (*TargetsMessage) Command() string { return CmdTargets }
func (m *TargetsMessage) Values() []any {
	return []any{&m.Action, &m.Entity, &m.Targets}
}

// UseMessage performs an action. Target 0 means none.
type UseMessage struct {
	Action string
	GameID int32
	ID     int32
	Target int32
}

func (*UseMessage) Command() string { return CmdUse }
func (m *UseMessage) Values() []any {
	return []any{&m.Action, &m.GameID, &m.ID, &m.Target}
}

type DisconnectMessage struct {
	Message     string
	PlayerIndex int32
}

func (*DisconnectMessage) Command() string { return CmdDisconnect }
func (m *DisconnectMessage) Values() []any { return []any{&m.Message, &m.PlayerIndex} }

// GameOverMessage ends a game. Winner is a player index, -1 for none.
type GameOverMessage struct {
	GameID  int32
	Message string
	Winner  int32
}

func (*GameOverMessage) Command() string { return CmdGameOver }
func (m *GameOverMessage) Values() []any {
	return []any{&m.GameID, &m.Message, &m.Winner}
}

// ErrorMessage reports a rejected request to its sender only.
type ErrorMessage struct {
	Code    string
	Message string
}

func (*ErrorMessage) Command() string { return CmdError }
func (m *ErrorMessage) Values() []any { return []any{&m.Code, &m.Message} }
