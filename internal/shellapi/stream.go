package shellapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjoeboo/dockyard/internal/workspace"
)

// client is one websocket subscriber. frames holds at most the newest state.
type client struct {
	conn   *websocket.Conn
	frames chan workspace.State
	done   chan struct{}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{conn: conn, frames: make(chan workspace.State, 1), done: make(chan struct{})}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	unsubscribe := s.ws.Subscribe(c.push)
	c.push(s.ws.State())

	go c.writePump(s.log)
	c.readPump()

	unsubscribe()
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	close(c.done)
}

// push replaces any unsent frame with st.
func (c *client) push(st workspace.State) {
	for {
		select {
		case c.frames <- st:
			return
		default:
		}
		select {
		case <-c.frames:
		default:
		}
	}
}

// readPump discards client frames and returns when the connection closes.
func (c *client) readPump() {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump(log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case st := <-c.frames:
			data, err := json.Marshal(st)
			if err != nil {
				log.Warn("state encode failed", slog.String("error", err.Error()))
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		c.conn.Close()
	}
}
