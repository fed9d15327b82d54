package net

import (
	"fmt"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
)

// Server accepts connections and creates Sessions. TCP and websocket
// connections share one id space and one session store.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	store    *SessionStore
	dispatch Dispatcher
	onClose  func(*Session)
	opts     Options
	log      *zap.Logger
	closeCh  chan struct{}
}

func NewServer(bindAddr string, opts Options, d Dispatcher, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: ln,
		store:    NewSessionStore(),
		dispatch: d,
		opts:     opts.withDefaults(),
		log:      log,
		closeCh:  make(chan struct{}),
	}
	return s, nil
}

// OnClose sets the function told about every closed session. Set it before
// AcceptLoop.
func (s *Server) OnClose(fn func(*Session)) {
	s.onClose = fn
}

// AcceptLoop runs in its own goroutine until Shutdown.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return // server shutting down
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}
		s.Attach(conn, conn.RemoteAddr().String())
	}
}

// Attach wraps an established connection in a running session.
func (s *Server) Attach(conn net.Conn, ip string) *Session {
	id := s.nextID.Add(1)
	sess := NewSession(conn, id, ip, s.opts, s.dispatch, s.log)
	sess.OnClose(func(sess *Session) {
		s.store.Remove(sess.ID)
		s.log.Info(fmt.Sprintf("client disconnected  session=%d  ip=%s", sess.ID, sess.IP))
		if s.onClose != nil {
			s.onClose(sess)
		}
	})
	s.store.Add(sess)
	sess.Start()
	s.log.Info(fmt.Sprintf("client connected  session=%d  ip=%s", id, ip))
	return sess
}

// Sessions returns the live session store.
func (s *Server) Sessions() *SessionStore {
	return s.store
}

// Shutdown stops accepting new connections and closes every session.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
	s.store.Each(func(sess *Session) { sess.Close() })
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
