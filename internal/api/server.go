package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/simplecut/simplecut-agent/internal/editor"
	"github.com/simplecut/simplecut-agent/internal/hwaccel"
	"github.com/simplecut/simplecut-agent/internal/store"
)

// EncoderProbe reports the detected encoder once detection has run.
type EncoderProbe interface {
	Peek() (hwaccel.Encoder, bool)
}

type Server struct {
	httpServer *http.Server
	hub        *Hub
	logger     *slog.Logger
	unsub      func()
}

type ServerConfig struct {
	Port       int
	Workspace  *editor.Workspace
	Repository store.Repository
	Playback   http.Handler
	Encoders   EncoderProbe // optional
	Hub        *Hub
	Logger     *slog.Logger
	StartTime  time.Time
	Version    string
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Hub == nil {
		cfg.Hub = NewHub(cfg.Logger)
	}
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      0, // playback and /events stream indefinitely
			IdleTimeout:       60 * time.Second,
		},
		hub:    cfg.Hub,
		logger: cfg.Logger,
		unsub:  cfg.Workspace.Subscribe(cfg.Hub.Publish),
	}
}

// Start serves until Shutdown. It returns nil on a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the server on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.unsub()
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
