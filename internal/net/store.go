package net

import "sync"

// SessionStore indexes live sessions by id.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (st *SessionStore) Add(s *Session) {
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
}

func (st *SessionStore) Remove(id uint64) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

func (st *SessionStore) Get(id uint64) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

func (st *SessionStore) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Each visits a snapshot of the sessions; fn may call back into the store.
func (st *SessionStore) Each(fn func(*Session)) {
	st.mu.RLock()
	list := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		list = append(list, s)
	}
	st.mu.RUnlock()
	for _, s := range list {
		fn(s)
	}
}
