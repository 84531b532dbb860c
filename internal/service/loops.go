package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/domain"
	"github.com/bouteflan/penrose-experiment/internal/repository"
)

// Snapshot contexts.
const (
	snapshotPeriodic = "periodic"
	snapshotAction   = "action"
)

func (s *Service) runTicker(ctx context.Context, sess *activeSession) {
	defer close(sess.tickDone)
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, sess)
		}
	}
}

// tick advances game time, announces phase changes and ends the session when
// a state-based ending applies.
func (s *Service) tick(ctx context.Context, sess *activeSession) {
	sess.mu.Lock()
	if sess.ended {
		sess.mu.Unlock()
		return
	}
	from, changed := s.advance(sess)
	to := sess.phase
	var seq int
	if changed {
		seq = sess.narrations
		sess.narrations++
	}
	result := s.detector.CheckState(sess.state())
	if result != nil {
		s.markEnded(sess, result)
	}
	sess.mu.Unlock()

	if changed {
		s.onPhaseTransition(sess, from, to, seq)
	}
	if result != nil {
		s.closeSession(ctx, sess, closerTicker)
	}
}

func (s *Service) onPhaseTransition(sess *activeSession, from, to domain.Phase, seq int) {
	payload := map[string]interface{}{"from": from, "to": to}
	s.recordEvent(sess.id, domain.EventTypePhaseTransition, payload)
	s.push(sess.id, "phase_transition", payload)
	log.WithFields(log.Fields{"session_id": sess.id, "from": from, "to": to}).Info("phase transition")

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		msg := s.narrate(context.Background(), sess, domain.TriggerPhaseTransition, seq, map[string]any{
			"from": from,
			"to":   to,
		})
		if msg != nil {
			s.push(sess.id, "narrator_message", msg)
		}
	}()
}

func (s *Service) runSnapshots(ctx context.Context, sess *activeSession) {
	defer close(sess.snapDone)
	ticker := time.NewTicker(s.config.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.snapshot(sess)
		}
	}
}

// snapshot measures the bias constructs and persists the result.
func (s *Service) snapshot(sess *activeSession) {
	sess.mu.Lock()
	if sess.ended {
		sess.mu.Unlock()
		return
	}
	from, changed := s.advance(sess)
	to := sess.phase
	var seq int
	if changed {
		seq = sess.narrations
		sess.narrations++
	}
	snap := s.takeSnapshot(sess, snapshotPeriodic)
	sess.mu.Unlock()

	s.persistSnapshot(snap)
	if changed {
		s.onPhaseTransition(sess, from, to, seq)
	}
}

// takeSnapshot measures the current history. Callers hold sess.mu.
func (s *Service) takeSnapshot(sess *activeSession, reason string) *domain.BiasSnapshot {
	state := sess.state()
	snap := &domain.BiasSnapshot{
		SnapshotID:      "bias_" + uuid.New().String()[:8],
		SessionID:       sess.id,
		GameTime:        sess.elapsed,
		Phase:           sess.phase,
		CorruptionLevel: sess.corruption,
		Context:         reason,
		TotalActions:    sess.total,
		Scores:          s.bias.Measure(sess.history, state),
		CreatedAt:       s.now(),
	}
	sess.snapshots = append(sess.snapshots, *snap)
	return snap
}

func (s *Service) persistSnapshot(snap *domain.BiasSnapshot) {
	s.recorder.enqueue("bias_snapshot", snap.SessionID, func(ctx context.Context, st store.Store) error {
		return st.CreateBiasSnapshot(ctx, snap)
	})
}
