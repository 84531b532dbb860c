package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/domain"
	"github.com/bouteflan/penrose-experiment/internal/repository"
)

// recordEvent queues a timeline event for the session.
func (s *Service) recordEvent(sessionID string, eventType domain.EventType, payload interface{}) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.WithField("session_id", sessionID).WithError(err).Warn("failed to marshal event payload")
		return
	}

	event := &domain.Event{
		EventID:   "evt_" + uuid.New().String()[:8],
		SessionID: sessionID,
		Ts:        s.now().UnixMilli(),
		Type:      eventType,
		Payload:   payloadBytes,
	}

	s.recorder.enqueue("event", sessionID, func(ctx context.Context, st store.Store) error {
		return st.CreateEvent(ctx, event)
	})
}

// push sends a server-initiated message to the session's connections.
func (s *Service) push(sessionID, msgType string, data interface{}) {
	msg := map[string]interface{}{
		"type":       msgType,
		"session_id": sessionID,
		"ts":         time.Now().UnixMilli(),
		"data":       data,
	}
	if err := s.sink.PushEvent(sessionID, msg); err != nil {
		log.WithFields(log.Fields{"session_id": sessionID, "type": msgType}).WithError(err).Debug("push failed")
	}
}
