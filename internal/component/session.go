package component

// SessionRef links a player entity to its network session.
// This is a reference, not the session itself. The session lives in net/.
// A detached seat has SessionID 0.
type SessionRef struct {
	SessionID uint64
	UserID    int32
}
