package net

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cardshifter/server/internal/net/packet"
	"go.uber.org/zap"
)

// Dispatcher routes decoded messages to handlers.
type Dispatcher interface {
	Dispatch(sess any, sessionID uint64, state packet.SessionState, msg packet.Message) error
}

// Options tune every session of a server.
type Options struct {
	OutQueueSize     int
	WriteTimeout     time.Duration
	MaxFrame         int
	PacketsPerSecond int // 0 = unlimited
}

func (o Options) withDefaults() Options {
	if o.OutQueueSize <= 0 {
		o.OutQueueSize = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxFrame <= 0 {
		o.MaxFrame = DefaultMaxFrame
	}
	return o
}

// Session represents a single client connection. The read loop dispatches
// messages on its own goroutine; outbound messages go through an ordered
// queue drained by the write loop.
type Session struct {
	ID   uint64
	conn net.Conn
	IP   string

	state    atomic.Int32 // packet.SessionState stored as int32
	userID   atomic.Int32
	userName atomic.Pointer[string]

	OutQueue chan []byte
	opts     Options
	dispatch Dispatcher
	onClose  func(*Session)

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	faultMu   sync.Mutex
	fault     error

	// Per-second packet rate limiter (readLoop goroutine only, no lock needed)
	pktCount   int
	pktResetAt int64

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, ip string, opts Options, d Dispatcher, log *zap.Logger) *Session {
	opts = opts.withDefaults()
	s := &Session{
		ID:       id,
		conn:     conn,
		IP:       ip,
		OutQueue: make(chan []byte, opts.OutQueueSize),
		opts:     opts,
		dispatch: d,
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(packet.StateConnected))
	return s
}

// SessionID returns the session's id.
func (s *Session) SessionID() uint64 { return s.ID }

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// SetUser records who logged in on this session.
func (s *Session) SetUser(id int32, name string) {
	s.userID.Store(id)
	s.userName.Store(&name)
}

func (s *Session) UserID() int32 { return s.userID.Load() }

func (s *Session) UserName() string {
	if p := s.userName.Load(); p != nil {
		return *p
	}
	return ""
}

// OnClose sets the function called once, from the read loop, after the
// session has closed. Set it before Start.
func (s *Session) OnClose(fn func(*Session)) {
	s.onClose = fn
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send encodes msg and queues it. Messages are written in Send order.
// Non-blocking: if OutQueue is full, the session is disconnected (backpressure).
func (s *Session) Send(msg packet.Message) {
	if s.closed.Load() {
		return
	}
	data, err := packet.Encode(msg)
	if err != nil {
		s.log.Error("encode failed", zap.String("command", msg.Command()), zap.Error(err))
		return
	}
	select {
	case s.OutQueue <- data:
	default:
		s.log.Warn("output queue full, dropping slow connection")
		s.Close()
	}
}

// Fault closes the session because its stream can no longer be trusted.
func (s *Session) Fault(err error) {
	s.faultMu.Lock()
	if s.fault == nil {
		s.fault = err
	}
	s.faultMu.Unlock()
	s.log.Error("fatal transport fault", zap.String("ip", s.IP), zap.Error(err))
	s.Close()
}

// Err returns the fault that closed the session, if any.
func (s *Session) Err() error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.fault
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.closeCh
}

// readLoop runs in its own goroutine. It reads frames, decodes them and
// dispatches each message before reading the next.
func (s *Session) readLoop() {
	defer func() {
		s.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
	}()

	for {
		payload, err := ReadFrame(s.conn, s.opts.MaxFrame)
		if err != nil {
			switch {
			case s.closed.Load():
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				s.log.Debug("connection closed by peer")
			case errors.Is(err, packet.ErrFraming):
				s.Fault(err)
			default:
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if s.opts.PacketsPerSecond > 0 {
			now := time.Now().Unix()
			if now != s.pktResetAt {
				s.pktCount = 0
				s.pktResetAt = now
			}
			s.pktCount++
			if s.pktCount > s.opts.PacketsPerSecond {
				s.log.Warn("message rate exceeded, disconnecting", zap.Int("pps", s.pktCount))
				return
			}
		}

		msg, err := packet.Decode(payload)
		if err != nil {
			s.Fault(err)
			return
		}
		if err := s.dispatch.Dispatch(s, s.ID, s.State(), msg); err != nil {
			s.log.Warn("request failed", zap.String("command", msg.Command()), zap.Error(err))
			s.Send(&packet.ErrorMessage{Code: "REQUEST_FAILED", Message: err.Error()})
		}
	}
}

// writeLoop runs in its own goroutine. It writes queued payloads as frames.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeOne(data) {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeOne(data []byte) bool {
	s.log.Debug("TX", zap.Int("len", len(data)))
	s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	if err := WriteFrame(s.conn, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
