package ws

import (
	"github.com/bouteflan/penrose-experiment/internal/corruption"
	"github.com/bouteflan/penrose-experiment/internal/domain"
	"github.com/bouteflan/penrose-experiment/internal/service"
)

// Message types from client to server
const (
	TypeSessionInit      = "session_init"
	TypePlayerAction     = "player_action"
	TypePlayerHesitation = "player_hesitation"
	TypeGameStateRequest = "game_state_request"
	TypeEndSession       = "end_session"
	TypePing             = "ping"
)

// Message types from server to client. Pushed events (phase_transition,
// corruption_update, narrator_message, ending, session_ended) come from the
// service through the hub.
const (
	TypeSessionReady        = "session_ready"
	TypeActionProcessed     = "action_processed"
	TypeHesitationProcessed = "hesitation_processed"
	TypeGameState           = "game_state"
	TypePong                = "pong"
	TypeError               = "error"
)

// Error codes
const (
	ErrorCodeInvalidMessage   = "invalid_message"
	ErrorCodeSessionRequired  = "session_required"
	ErrorCodeSessionNotActive = "session_not_active"
	ErrorCodeInternal         = "internal_error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// SessionInitMessage starts or resumes a session.
type SessionInitMessage struct {
	BaseMessage
	PlayerName string `json:"player_name,omitempty"`
}

// PlayerActionMessage carries one player action.
type PlayerActionMessage struct {
	BaseMessage
	Action domain.Action `json:"action"`
}

// PlayerHesitationMessage reports a hesitation.
type PlayerHesitationMessage struct {
	BaseMessage
	Duration float64 `json:"duration"`
}

// EndSessionMessage asks to terminate the session.
type EndSessionMessage struct {
	BaseMessage
	Reason string `json:"reason,omitempty"`
}

// SessionReadyMessage answers session_init.
type SessionReadyMessage struct {
	BaseMessage
	Resumed  bool                     `json:"resumed"`
	Status   *domain.SessionStatus    `json:"status"`
	Narrator *service.NarratorMessage `json:"narrator,omitempty"`
}

// ActionProcessedMessage answers player_action.
type ActionProcessedMessage struct {
	BaseMessage
	Outcome *service.ActionOutcome `json:"outcome"`
}

// HesitationProcessedMessage answers player_hesitation.
type HesitationProcessedMessage struct {
	BaseMessage
	Outcome *service.HesitationOutcome `json:"outcome"`
}

// GameStateMessage answers game_state_request.
type GameStateMessage struct {
	BaseMessage
	Status     *domain.SessionStatus   `json:"status"`
	Corruption *corruption.Description `json:"corruption,omitempty"`
}

// ErrorMessage reports a failed request.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}
