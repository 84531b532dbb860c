package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/domain"
	"github.com/bouteflan/penrose-experiment/internal/ending"
	"github.com/bouteflan/penrose-experiment/internal/repository"
)

const finalWriteTimeout = 5 * time.Second

// closer identifies which goroutine is closing a session, so it does not wait
// for itself.
type closer int

const (
	closerCaller closer = iota
	closerTicker
	closerSnapshot
)

// SessionStarted is the result of StartSession.
type SessionStarted struct {
	Status   *domain.SessionStatus `json:"status"`
	Narrator *NarratorMessage      `json:"narrator,omitempty"`
}

// StartSession creates a session and starts its background loops.
func (s *Service) StartSession(ctx context.Context, sessionID, playerName string) (*SessionStarted, error) {
	if sessionID == "" {
		sessionID = "sess_" + uuid.New().String()[:8]
	}
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		playerName = "anonymous"
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	sess := &activeSession{
		id:         sessionID,
		playerName: playerName,
		startedAt:  s.now(),
		cancel:     cancel,
		tickDone:   make(chan struct{}),
		snapDone:   make(chan struct{}),
		phase:      domain.PhaseAdhesion,
	}
	if err := s.sessions.add(sess); err != nil {
		cancel()
		return nil, err
	}

	sess.mu.Lock()
	rec := sess.record()
	status := sess.status(s.config.SessionDuration)
	seq := sess.narrations
	sess.narrations++
	sess.mu.Unlock()

	s.recorder.enqueue("session", sessionID, func(ctx context.Context, st store.Store) error {
		return st.UpsertSession(ctx, rec)
	})
	s.recordEvent(sessionID, domain.EventTypeSessionStarted, map[string]interface{}{
		"player_name": playerName,
		"duration":    s.config.SessionDuration.Seconds(),
	})

	go s.runTicker(loopCtx, sess)
	go s.runSnapshots(loopCtx, sess)

	log.WithFields(log.Fields{"session_id": sessionID, "player": playerName}).Info("session started")

	msg := s.narrate(ctx, sess, domain.TriggerFirstContact, seq, map[string]any{"event": "session_start"})
	return &SessionStarted{Status: status, Narrator: msg}, nil
}

// EndSession terminates an active session on request.
func (s *Service) EndSession(ctx context.Context, sessionID, reason string) (*domain.SessionStatus, error) {
	return s.terminate(ctx, sessionID, domain.EndingManual, reason)
}

func (s *Service) terminate(ctx context.Context, sessionID string, kind domain.EndingKind, reason string) (*domain.SessionStatus, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotActive
	}

	sess.mu.Lock()
	if sess.ended {
		sess.mu.Unlock()
		return nil, domain.ErrSessionNotActive
	}
	s.advance(sess)
	result := s.detector.Terminate(kind, reason, sess.state())
	s.markEnded(sess, result)
	status := sess.status(s.config.SessionDuration)
	sess.mu.Unlock()

	s.closeSession(ctx, sess, closerCaller)
	return status, nil
}

// Status returns the status of a session. Ended sessions are read back from
// the store.
func (s *Service) Status(ctx context.Context, sessionID string) (*domain.SessionStatus, error) {
	if sess, ok := s.sessions.get(sessionID); ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.status(s.config.SessionDuration), nil
	}

	rec, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrSessionNotActive
	}
	return &domain.SessionStatus{
		SessionID:       rec.SessionID,
		PlayerName:      rec.PlayerName,
		IsActive:        false,
		Phase:           rec.Phase,
		CorruptionLevel: rec.CorruptionLevel,
		ElapsedSeconds:  rec.ElapsedSeconds,
		TotalOrders:     rec.TotalOrders,
		ObeyedOrders:    rec.ObeyedOrders,
		ObedienceRate:   rec.ObedienceRate,
		Hesitations:     rec.Hesitations,
		MetaActions:     rec.MetaActions,
	}, nil
}

// IsActive reports whether the session is in the active set.
func (s *Service) IsActive(sessionID string) bool {
	_, ok := s.sessions.get(sessionID)
	return ok
}

// ListSessions returns persisted sessions, most recent first.
func (s *Service) ListSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	return s.store.ListSessions(ctx, limit)
}

// Shutdown ends every active session with the cleanup ending and stops the
// persistence writer.
func (s *Service) Shutdown(ctx context.Context) {
	for _, sess := range s.sessions.list() {
		if _, err := s.terminate(ctx, sess.id, domain.EndingCleanup, "server_shutdown"); err != nil {
			log.WithField("session_id", sess.id).WithError(err).Debug("session already closed")
		}
	}
	s.bg.Wait()
	s.recorder.close()
}

// advance refreshes elapsed time and phase. It reports whether the phase
// changed. Callers hold sess.mu.
func (s *Service) advance(sess *activeSession) (domain.Phase, bool) {
	sess.elapsed = s.now().Sub(sess.startedAt).Seconds()
	if sess.elapsed < 0 {
		sess.elapsed = 0
	}
	old := sess.phase
	sess.phase = old.Max(s.phaseFor(sess.elapsed))
	return old, sess.phase != old
}

func (s *Service) phaseFor(elapsed float64) domain.Phase {
	switch {
	case elapsed < s.config.DissonanceAfter.Seconds():
		return domain.PhaseAdhesion
	case elapsed < s.config.RuptureAfter.Seconds():
		return domain.PhaseDissonance
	default:
		return domain.PhaseRupture
	}
}

// markEnded attaches the single ending of a session. Callers hold sess.mu and
// have checked that the session has not ended.
func (s *Service) markEnded(sess *activeSession, result *domain.EndingResult) {
	sess.ended = true
	sess.endedAt = s.now()
	result.Content = ending.Content(result)
	sess.ending = result
}

// closeSession stops the background loops of an ended session, flushes its
// pending writes, persists the final record and removes it from the arena.
func (s *Service) closeSession(ctx context.Context, sess *activeSession, by closer) {
	sess.cancel()
	if by != closerTicker {
		<-sess.tickDone
	}
	if by != closerSnapshot {
		<-sess.snapDone
	}

	sess.mu.Lock()
	rec := sess.record()
	result := sess.ending
	state := sess.state()
	status := sess.status(s.config.SessionDuration)
	sess.mu.Unlock()

	fields := log.Fields{"session_id": sess.id, "ending": result.Kind}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()
	if err := s.recorder.flush(flushCtx); err != nil {
		log.WithFields(fields).WithError(err).Warn("flush before close timed out")
	}
	if err := s.store.UpsertSession(flushCtx, rec); err != nil {
		log.WithFields(fields).WithError(err).Warn("final session write failed, queued for retry")
		s.recorder.enqueue("session", sess.id, func(ctx context.Context, st store.Store) error {
			return st.UpsertSession(ctx, rec)
		})
	}
	if err := s.store.CreateEnding(flushCtx, sess.id, result); err != nil {
		log.WithFields(fields).WithError(err).Warn("ending write failed, queued for retry")
		s.recorder.enqueue("ending", sess.id, func(ctx context.Context, st store.Store) error {
			return st.CreateEnding(ctx, sess.id, result)
		})
	}
	s.recordEvent(sess.id, domain.EventTypeSessionEnded, map[string]interface{}{
		"ending":           result.Kind,
		"victory":          result.Victory,
		"duration_seconds": rec.DurationSeconds,
	})

	s.sessions.remove(sess.id)
	s.corruption.Forget(sess.id)

	s.push(sess.id, "ending", result)
	s.push(sess.id, "session_ended", map[string]interface{}{
		"status":     status,
		"statistics": ending.Statistics(result, state),
	})

	log.WithFields(fields).WithField("duration_seconds", rec.DurationSeconds).Info("session ended")
}
