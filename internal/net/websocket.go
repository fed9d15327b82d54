package net

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ServeWebSocket accepts websocket clients on addr until ctx is done. Each
// binary websocket connection carries the same framed stream as TCP.
func (s *Server) ServeWebSocket(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	s.log.Info("websocket listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c.SetReadLimit(int64(s.opts.MaxFrame) + 4)
	conn := websocket.NetConn(context.Background(), c, websocket.MessageBinary)
	sess := s.Attach(conn, r.RemoteAddr)
	<-sess.Done()
}
