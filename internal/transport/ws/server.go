// Package ws provides the WebSocket endpoint of the game client.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/config"
	"github.com/bouteflan/penrose-experiment/internal/domain"
	"github.com/bouteflan/penrose-experiment/internal/hub"
	"github.com/bouteflan/penrose-experiment/internal/service"
)

const (
	writeTimeout   = 10 * time.Second
	requestTimeout = 30 * time.Second
)

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	service  *service.Service
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, svc *service.Service) *Server {
	return &Server{
		cfg:     cfg,
		hub:     h,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.WithError(err).Warn("failed to upgrade websocket")
		return err
	}

	// Create and register connection
	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	// Set up connection parameters
	ws.SetReadLimit(s.cfg.WSReadLimit)

	// Start reader and writer goroutines
	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

func (s *Server) pongWait() time.Duration {
	return 2 * s.cfg.WSPingInterval
}

// readPump reads messages from the WebSocket connection. Messages of one
// connection are handled in order.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.pongWait()))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongWait()))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("websocket error")
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.WSPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithError(err).Debug("failed to write message")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch baseMsg.Type {
	case TypeSessionInit:
		s.handleSessionInit(ctx, conn, data)
	case TypePlayerAction:
		s.handlePlayerAction(ctx, conn, data)
	case TypePlayerHesitation:
		s.handlePlayerHesitation(ctx, conn, data)
	case TypeGameStateRequest:
		s.handleGameState(ctx, conn, baseMsg)
	case TypeEndSession:
		s.handleEndSession(ctx, conn, data)
	case TypePing:
		s.send(conn, newBase(TypePong, baseMsg.RequestID, s.hub.SessionOf(conn)))
	default:
		s.sendError(conn, baseMsg.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type)
	}
}

// handleSessionInit starts a session, or resumes it when it is already active.
func (s *Server) handleSessionInit(ctx context.Context, conn *hub.Connection, data []byte) {
	var msg SessionInitMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid session_init message")
		return
	}

	ready := SessionReadyMessage{BaseMessage: newBase(TypeSessionReady, msg.RequestID, "")}
	started, err := s.service.StartSession(ctx, msg.SessionID, msg.PlayerName)
	switch {
	case errors.Is(err, domain.ErrSessionExists):
		status, err := s.service.Status(ctx, msg.SessionID)
		if err != nil {
			s.sendServiceError(conn, msg.RequestID, err)
			return
		}
		ready.Resumed = true
		ready.Status = status
	case err != nil:
		s.sendServiceError(conn, msg.RequestID, err)
		return
	default:
		ready.Status = started.Status
		ready.Narrator = started.Narrator
	}

	s.hub.BindSession(conn, ready.Status.SessionID)
	ready.SessionID = ready.Status.SessionID
	s.send(conn, ready)

	log.WithFields(log.Fields{"session_id": ready.SessionID, "resumed": ready.Resumed}).Info("websocket session ready")
}

func (s *Server) handlePlayerAction(ctx context.Context, conn *hub.Connection, data []byte) {
	var msg PlayerActionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, msg.RequestID, ErrorCodeInvalidMessage, "invalid player_action message")
		return
	}
	sessionID, ok := s.boundSession(conn, msg.RequestID)
	if !ok {
		return
	}

	outcome, err := s.service.ProcessAction(ctx, sessionID, msg.Action)
	if err != nil {
		s.sendServiceError(conn, msg.RequestID, err)
		return
	}
	s.send(conn, ActionProcessedMessage{
		BaseMessage: newBase(TypeActionProcessed, msg.RequestID, sessionID),
		Outcome:     outcome,
	})
}

func (s *Server) handlePlayerHesitation(ctx context.Context, conn *hub.Connection, data []byte) {
	var msg PlayerHesitationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid player_hesitation message")
		return
	}
	sessionID, ok := s.boundSession(conn, msg.RequestID)
	if !ok {
		return
	}

	outcome, err := s.service.ProcessHesitation(ctx, sessionID, msg.Duration)
	if err != nil {
		s.sendServiceError(conn, msg.RequestID, err)
		return
	}
	s.send(conn, HesitationProcessedMessage{
		BaseMessage: newBase(TypeHesitationProcessed, msg.RequestID, sessionID),
		Outcome:     outcome,
	})
}

func (s *Server) handleGameState(ctx context.Context, conn *hub.Connection, base BaseMessage) {
	sessionID, ok := s.boundSession(conn, base.RequestID)
	if !ok {
		return
	}

	status, err := s.service.Status(ctx, sessionID)
	if err != nil {
		s.sendServiceError(conn, base.RequestID, err)
		return
	}
	state := GameStateMessage{
		BaseMessage: newBase(TypeGameState, base.RequestID, sessionID),
		Status:      status,
	}
	if status.IsActive {
		if d, err := s.service.DescribeCorruption(sessionID); err == nil {
			state.Corruption = d
		}
	}
	s.send(conn, state)
}

// handleEndSession terminates the session. The session_ended message is
// pushed by the service to every bound connection.
func (s *Server) handleEndSession(ctx context.Context, conn *hub.Connection, data []byte) {
	var msg EndSessionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid end_session message")
		return
	}
	sessionID, ok := s.boundSession(conn, msg.RequestID)
	if !ok {
		return
	}
	reason := msg.Reason
	if reason == "" {
		reason = "player_request"
	}

	if _, err := s.service.EndSession(ctx, sessionID, reason); err != nil {
		s.sendServiceError(conn, msg.RequestID, err)
	}
}

func (s *Server) boundSession(conn *hub.Connection, requestID string) (string, bool) {
	sessionID := s.hub.SessionOf(conn)
	if sessionID == "" {
		s.sendError(conn, requestID, ErrorCodeSessionRequired, "must send session_init first")
		return "", false
	}
	return sessionID, true
}

func (s *Server) send(conn *hub.Connection, v interface{}) {
	if err := s.hub.SendJSONToConnection(conn, v); err != nil {
		log.WithField("conn_id", conn.ID).WithError(err).Warn("failed to send message")
	}
}

func newBase(msgType, requestID, sessionID string) BaseMessage {
	return BaseMessage{
		Type:      msgType,
		Ts:        time.Now().UnixMilli(),
		RequestID: requestID,
		SessionID: sessionID,
	}
}

func (s *Server) sendServiceError(conn *hub.Connection, requestID string, err error) {
	if errors.Is(err, domain.ErrSessionNotActive) {
		s.sendError(conn, requestID, ErrorCodeSessionNotActive, err.Error())
		return
	}
	log.WithError(err).Error("websocket request failed")
	s.sendError(conn, requestID, ErrorCodeInternal, err.Error())
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	s.send(conn, ErrorMessage{
		BaseMessage: newBase(TypeError, requestID, s.hub.SessionOf(conn)),
		Code:        code,
		Message:     message,
	})
}
