// Package shellapi serves the workspace state to external shells over a
// localhost HTTP API with a websocket push stream.
package shellapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjoeboo/dockyard/internal/layout"
	"github.com/sjoeboo/dockyard/internal/logging"
	"github.com/sjoeboo/dockyard/internal/workspace"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Workspace is the part of the controller the API drives.
type Workspace interface {
	State() workspace.State
	TogglePanel(id layout.PanelID) (bool, error)
	ResetLayout()
	Subscribe(fn func(workspace.State)) func()
}

// Server is the shell API. It is lifecycle-bound to the TUI process.
type Server struct {
	addr     string
	ws       Workspace
	server   *http.Server
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New creates a server for addr ("127.0.0.1:7420"; a bare ":port" binds
// localhost). Use ServeHTTP directly in tests.
func New(addr string, ws Workspace) *Server {
	s := &Server{
		addr:    addr,
		ws:      ws,
		log:     logging.ForComponent(logging.CompAPI),
		clients: map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     sameHostOrigin,
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("POST /panels/{id}/toggle", s.handleToggle)
	mux.HandleFunc("POST /layout/reset", s.handleReset)
	mux.HandleFunc("GET /ws", s.handleWS)
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// Start listens and serves until ctx is cancelled. Returns nil on clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := s.addr
	if host, port, err := net.SplitHostPort(addr); err == nil && host == "" {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("shellapi listen %s: %w", addr, err)
	}
	s.log.Info("shellapi_started", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutCtx)
		s.closeClients()
		return nil
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.State())
}

type toggleResponse struct {
	ID      layout.PanelID `json:"id"`
	Visible bool           `json:"visible"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := layout.ParsePanel(r.PathValue("id"))
	if !ok {
		http.Error(w, "unknown panel", http.StatusNotFound)
		return
	}
	visible, err := s.ws.TogglePanel(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{ID: id, Visible: visible})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.ws.ResetLayout()
	writeJSON(w, http.StatusOK, s.ws.State())
}

// sameHostOrigin accepts non-browser clients and pages served from the
// same host.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
