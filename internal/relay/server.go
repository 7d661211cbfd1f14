package relay

import (
	"log/slog"
	"net"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Server owns the listener, the shared registry, and the reaper.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	reg        *Registry
	delivery   *Delivery
	dispatcher *Dispatcher
	reaper     *Reaper
	listener   net.Listener
}

func NewServer(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	reg := NewRegistry(logger)
	delivery := NewDelivery(reg, logger)
	return &Server{
		cfg:        cfg,
		logger:     logger,
		reg:        reg,
		delivery:   delivery,
		dispatcher: NewDispatcher(reg, delivery, cfg.MaxMessageLen, logger),
		reaper:     NewReaper(reg, delivery, cfg.ReapInterval(), cfg.IdleTimeout(), logger),
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	go s.reaper.Run()
	go s.acceptLoop(ln)

	s.logger.Info("server started", "addr", ln.Addr().String())
	return nil
}

// Addr reports the bound listen address, useful when the configured
// address was ":0".
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Stop() {
	s.logger.Info("shutting down")

	if s.listener != nil {
		s.listener.Close()
	}

	s.reaper.Stop()
	s.reaper.Wait()

	// Closing the sockets drives every session loop to its own cleanup.
	for _, p := range s.reg.Snapshot() {
		s.reg.Remove(p.Name)
		_ = p.Conn.Close()
	}

	s.logger.Info("shutdown complete")
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// listener closed, normal shutdown path
			return
		}

		cl := &client{
			id:      uuid.NewString(),
			conn:    newLineConn(conn, s.cfg.WriteTimeout()),
			limiter: rate.NewLimiter(rate.Limit(s.cfg.RateLimit.PerSecond), s.cfg.RateLimit.Burst),
		}
		s.logger.Info("client connected", "conn_id", cl.id, "addr", conn.RemoteAddr().String())
		go s.handleSession(cl)
	}
}
