// Package ws carries the replication protocol over websockets: a server
// handler that attaches each connection to the host as an observer session,
// and the matching observer client.
package ws

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/cloudsync/internal/protocol"
	"github.com/vovakirdan/cloudsync/internal/replication"
)

const (
	defaultWriteWait = 5 * time.Second
	defaultPongWait  = 60 * time.Second
	maxInboundFrame  = 64 * 1024
)

// ServerOptions configures a Server.
type ServerOptions struct {
	CompressAbove int     // Snapshot size in bytes above which frames are compressed; 0 disables
	AnchorRateHz  float64 // set_anchor messages accepted per second per connection; 0 means unlimited
	AnchorBurst   int
	WriteWait     time.Duration
	PongWait      time.Duration
	Logger        *log.Logger
}

// ServerStats counts inbound traffic across all connections.
type ServerStats struct {
	Connections uint64
	Accepted    uint64 // set_anchor messages forwarded to the host
	RateLimited uint64
	Malformed   uint64
}

// Server upgrades HTTP requests and bridges each socket to a host session.
type Server struct {
	host     *replication.Host
	opts     ServerOptions
	codec    *protocol.Codec
	logger   *log.Logger
	upgrader websocket.Upgrader

	connections atomic.Uint64
	accepted    atomic.Uint64
	limited     atomic.Uint64
	malformed   atomic.Uint64
}

// NewServer creates a websocket server for host.
func NewServer(host *replication.Host, opts ServerOptions) (*Server, error) {
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.AnchorBurst < 1 {
		opts.AnchorBurst = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	codec, err := protocol.NewCodec(opts.CompressAbove)
	if err != nil {
		return nil, err
	}
	return &Server{
		host:   host,
		opts:   opts,
		codec:  codec,
		logger: opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Observers are read-only
		},
	}, nil
}

// Stats returns inbound counters.
func (s *Server) Stats() ServerStats {
	return ServerStats{
		Connections: s.connections.Load(),
		Accepted:    s.accepted.Load(),
		RateLimited: s.limited.Load(),
		Malformed:   s.malformed.Load(),
	}
}

// Close releases the frame codec.
func (s *Server) Close() {
	s.codec.Close()
}

// ServeHTTP handles one observer connection until either side goes away.
func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	session := s.host.NewSession()
	if err := s.host.Connect(session); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "host stopped"),
			time.Now().Add(time.Second))
		return
	}
	s.connections.Add(1)
	s.logger.Debug("socket attached", "conn", session.ID(), "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		s.writePump(ctx, conn, session)
	}()

	s.readPump(conn, session)

	cancel()
	session.Close()
	_ = s.host.Disconnect(session.ID()) //nolint:errcheck // host may already be stopped

	// Best-effort wait for the writer to stop so it doesn't outlive conn.
	select {
	case <-writeDone:
	case <-time.After(500 * time.Millisecond):
	}
}

// writePump is the only goroutine writing data frames to conn.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, session *replication.ChannelSession) {
	ping := time.NewTicker(s.opts.PongWait * 9 / 10)
	defer ping.Stop()
	// A dead writer must also stop the reader.
	defer conn.Close()

	for {
		select {
		case msg := <-session.Messages():
			frame, err := s.codec.Encode(msg)
			if err != nil {
				s.logger.Error("cannot encode message", "conn", session.ID(), "type", msg.Kind(), "err", err)
				continue
			}
			kind := websocket.TextMessage
			if frame.Binary {
				kind = websocket.BinaryMessage
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := conn.WriteMessage(kind, frame.Data); err != nil {
				session.Close()
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait)); err != nil {
				session.Close()
				return
			}
		case <-session.Done():
			// Overflowed or torn down by the host: the observer must rejoin.
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
				time.Now().Add(time.Second))
			return
		case <-ctx.Done():
			return
		}
	}
}

// readPump forwards validated set_anchor requests until the socket fails.
func (s *Server) readPump(conn *websocket.Conn, session *replication.ChannelSession) {
	limiter := rate.NewLimiter(rate.Inf, s.opts.AnchorBurst)
	if s.opts.AnchorRateHz > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.AnchorRateHz), s.opts.AnchorBurst)
	}

	conn.SetReadLimit(maxInboundFrame)
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		if kind != websocket.TextMessage {
			s.malformed.Add(1)
			continue
		}
		if err := protocol.Validate(payload); err != nil {
			s.malformed.Add(1)
			s.logger.Debug("discarding malformed message", "conn", session.ID(), "err", err)
			continue
		}
		msg, err := protocol.Unmarshal(payload)
		if err != nil {
			s.malformed.Add(1)
			continue
		}

		anchor, ok := msg.(protocol.SetAnchor)
		if !ok {
			// Observers only steer; everything else flows host to observer.
			s.malformed.Add(1)
			continue
		}
		if !limiter.Allow() {
			s.limited.Add(1)
			continue
		}
		if err := s.host.Send(replication.SetAnchorMsg{SessionID: session.ID(), Pos: anchor.Pos.Vec2()}); err != nil {
			return
		}
		s.accepted.Add(1)
	}
}
