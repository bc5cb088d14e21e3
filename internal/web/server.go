package web

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/focusnudge/focusnudge/internal/config"
)

type Server struct {
	config  *config.Config
	handler *Handler
	server  *http.Server
}

func NewServer(cfg *config.Config, handler *Handler) *Server {
	httpServer := &http.Server{
		Addr:        cfg.Address(),
		Handler:     handler.Routes(),
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: a dialog request waits for the user and the
		// event stream stays open
		IdleTimeout: 60 * time.Second,
	}

	return &Server{
		config:  cfg,
		handler: handler,
		server:  httpServer,
	}
}

// Listen binds the configured address, so a port conflict is reported
// before the server is started
func (s *Server) Listen() (net.Listener, error) {
	l, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return l, nil
}

// Serve runs the server on a listener from Listen
func (s *Server) Serve(l net.Listener) error {
	log.Printf("Starting web server on http://%s", l.Addr())
	return s.server.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return s.server.Addr
}
