// Package server accepts client connections and answers length-prefixed
// request frames, one response frame per request.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/correlatr/internal/observability"
	"github.com/danmuck/correlatr/internal/protocol/frame"
	"github.com/rs/zerolog"
)

type Mode string

const (
	// ModeOneShot reads one request, answers it and closes the connection.
	ModeOneShot Mode = "oneshot"
	// ModePersistent answers requests until the client closes.
	ModePersistent Mode = "persistent"
)

var ErrInvalidMode = errors.New("server: invalid mode")

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeOneShot, "":
		return ModeOneShot, nil
	case ModePersistent:
		return ModePersistent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

type Config struct {
	ListenAddr string
	Mode       Mode
	// ReadTimeout and WriteTimeout bound each frame; zero blocks indefinitely.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Limits       frame.Limits
}

func DefaultConfig() Config {
	return Config{
		ListenAddr: ":42069",
		Mode:       ModeOneShot,
		Limits:     frame.DefaultLimits(),
	}
}

// Handler answers one request payload with one response payload. A non-nil
// error drops the connection without a reply.
type Handler interface {
	HandleFrame(ctx context.Context, payload []byte) ([]byte, error)
}

type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

func (f HandlerFunc) HandleFrame(ctx context.Context, payload []byte) ([]byte, error) {
	return f(ctx, payload)
}

type Server struct {
	cfg     Config
	handler Handler
	logger  zerolog.Logger

	addrMu sync.Mutex
	addr   net.Addr

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	wg      sync.WaitGroup

	clientCount atomic.Int64
}

func New(cfg Config, h Handler) *Server {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if cfg.Limits.MaxPayloadBytes == 0 {
		cfg.Limits = def.Limits
	}
	observability.RegisterMetrics()
	return &Server{
		cfg:     cfg,
		handler: h,
		logger:  observability.Component("server"),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Addr returns the bound listener address once serving, or nil.
func (s *Server) Addr() net.Addr {
	s.addrMu.Lock()
	defer s.addrMu.Unlock()
	return s.addr
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done. Cancellation closes the listener and
// every open connection; Serve returns after their handlers exit.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.wg.Wait()
	defer ln.Close()
	s.addrMu.Lock()
	s.addr = ln.Addr()
	s.addrMu.Unlock()
	s.logger.Info().Str("addr", ln.Addr().String()).Str("mode", string(s.cfg.Mode)).Msg("correlatr listening")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = ln.Close()
		s.closeAllConns()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)
	remote := conn.RemoteAddr().String()
	active := s.clientCount.Add(1)
	observability.ConnOpened()
	s.logger.Debug().Str("remote", remote).Int64("active_clients", active).Msg("client connected")
	defer func() {
		remaining := s.clientCount.Add(-1)
		observability.ConnClosed()
		s.logger.Debug().Str("remote", remote).Int64("active_clients", remaining).Msg("client disconnected")
	}()

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		payload, err := frame.ReadFrame(conn, s.cfg.Limits)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			observability.RecordFrameError(frameErrorReason(err))
			s.logger.Warn().Err(err).Str("remote", remote).Msg("read frame")
			return
		}

		out, err := s.handler.HandleFrame(ctx, payload)
		if err != nil {
			s.logger.Error().Err(err).Str("remote", remote).Msg("handle frame")
			return
		}

		if s.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if err := frame.WriteFrame(conn, out); err != nil {
			observability.RecordFrameError(frameErrorReason(err))
			s.logger.Warn().Err(err).Str("remote", remote).Msg("write frame")
			return
		}
		if s.cfg.Mode != ModePersistent {
			return
		}
	}
}

func frameErrorReason(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, frame.ErrShortHeader):
		return "short_header"
	case errors.Is(err, frame.ErrTruncatedPayload):
		return "truncated_payload"
	case errors.Is(err, frame.ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "io"
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}
