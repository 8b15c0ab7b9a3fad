package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rbright/voxlate/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 16 << 10
)

// clientMessage is one command from a session socket.
type clientMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Target string `json:"target,omitempty"`
}

// serverMessage is one push to a session socket.
type serverMessage struct {
	Type  string         `json:"type"`
	State *session.State `json:"state,omitempty"`
	Error string         `json:"error,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.opts.NewSession == nil {
		writeError(w, http.StatusServiceUnavailable, "", "live sessions are not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "request_id", requestIDFrom(r.Context()), "error", err.Error())
		return
	}

	coordinator := s.opts.NewSession(uuid.NewString())
	logger := s.logger.With("session_id", coordinator.ID())
	logger.Info("session socket opened", "remote", r.RemoteAddr)

	states, detach := coordinator.Subscribe()
	replies := make(chan serverMessage, 8)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(conn, states, replies)
	}()

	initial := coordinator.Snapshot()
	replies <- serverMessage{Type: "state", State: &initial}

	s.readPump(conn, coordinator, replies)

	detach()
	coordinator.Close()
	close(replies)
	<-writerDone
	_ = conn.Close()
	logger.Info("session socket closed")
}

// readPump applies client commands until the socket fails or closes.
func (s *Server) readPump(conn *websocket.Conn, coordinator *session.Coordinator, replies chan<- serverMessage) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				replies <- serverMessage{Type: "error", Error: fmt.Sprintf("decode message: %v", err)}
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("session socket read failed", "session_id", coordinator.ID(), "error", err.Error())
			}
			return
		}

		if err := apply(coordinator, msg); err != nil {
			replies <- serverMessage{Type: "error", Error: err.Error()}
		}
	}
}

func apply(coordinator *session.Coordinator, msg clientMessage) error {
	switch strings.ToLower(strings.TrimSpace(msg.Type)) {
	case "input":
		return coordinator.SetInput(msg.Text)
	case "flush":
		coordinator.Flush()
		return nil
	case "target":
		return coordinator.SetTarget(msg.Target)
	case "swap":
		return coordinator.Swap()
	case "clear":
		return coordinator.Clear()
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// writePump owns all writes to conn: state pushes, replies, and pings.
func (s *Server) writePump(conn *websocket.Conn, states <-chan session.State, replies <-chan serverMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(msg serverMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg) == nil
	}
	fail := func() {
		_ = conn.Close()
		drain(replies)
	}

	for {
		select {
		case state, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			if !write(serverMessage{Type: "state", State: &state}) {
				fail()
				return
			}
		case msg, ok := <-replies:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if !write(msg) {
				fail()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				fail()
				return
			}
		}
	}
}

// drain consumes replies until closed so the reader never blocks.
func drain(replies <-chan serverMessage) {
	for range replies {
	}
}
