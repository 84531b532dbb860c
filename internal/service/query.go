package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/bias"
	"github.com/bouteflan/penrose-experiment/internal/corruption"
	"github.com/bouteflan/penrose-experiment/internal/domain"
	"github.com/bouteflan/penrose-experiment/internal/repository"
)

// DescribeCorruption returns the corruption state of an active session.
func (s *Service) DescribeCorruption(sessionID string) (*corruption.Description, error) {
	if _, ok := s.sessions.get(sessionID); !ok {
		return nil, domain.ErrSessionNotActive
	}
	d := s.corruption.Describe(sessionID)
	return &d, nil
}

// ResetCorruption administratively sets the corruption level of an active
// session. It is the only operation allowed to lower the level.
func (s *Service) ResetCorruption(ctx context.Context, sessionID string, level float64) (*corruption.Description, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotActive
	}
	if level < 0 || level > 1 {
		return nil, fmt.Errorf("corruption level %v out of range: %w", level, domain.ErrInvalidAction)
	}

	sess.mu.Lock()
	if sess.ended {
		sess.mu.Unlock()
		return nil, domain.ErrSessionNotActive
	}
	old := sess.corruption
	sess.corruption = level
	s.corruption.Reset(sessionID, level)
	rec := sess.record()
	sess.mu.Unlock()

	s.recordEvent(sessionID, domain.EventTypeCorruptionReset, map[string]interface{}{
		"old_level": old,
		"new_level": level,
	})
	s.recorder.enqueue("session", sessionID, func(ctx context.Context, st store.Store) error {
		return st.UpsertSession(ctx, rec)
	})
	log.WithFields(log.Fields{"session_id": sessionID, "old": old, "new": level}).Info("corruption reset")

	d := s.corruption.Describe(sessionID)
	s.push(sessionID, "corruption_update", d)
	return &d, nil
}

// BiasSummary returns the latest bias snapshot and the evolution of each
// metric. Ended sessions are read back from the store.
func (s *Service) BiasSummary(ctx context.Context, sessionID string) (*bias.Summary, error) {
	if sess, ok := s.sessions.get(sessionID); ok {
		sess.mu.Lock()
		snapshots := sess.recentSnapshots()
		sess.mu.Unlock()
		summary := s.bias.Summarize(sessionID, snapshots)
		return &summary, nil
	}

	rec, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrSessionNotActive
	}
	snapshots, err := s.store.ListBiasSnapshots(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	summary := s.bias.Summarize(sessionID, snapshots)
	return &summary, nil
}

// SessionActions returns the persisted action history of a session.
func (s *Service) SessionActions(ctx context.Context, sessionID string) ([]domain.ActionRecord, error) {
	if err := s.known(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListActions(ctx, sessionID)
}

// NarratorInteractions returns the persisted narrator exchanges of a session.
func (s *Service) NarratorInteractions(ctx context.Context, sessionID string) ([]domain.NarratorInteraction, error) {
	if err := s.known(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListNarratorInteractions(ctx, sessionID)
}

// SessionEvents returns the timeline events of a session.
func (s *Service) SessionEvents(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	if err := s.known(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.GetEvents(ctx, sessionID, afterTs, types, limit)
}

// AggregateStats summarises every persisted session.
func (s *Service) AggregateStats(ctx context.Context) (*domain.ExperimentStats, error) {
	return s.store.AggregateStats(ctx)
}

// known flushes pending writes of an active session, or checks that an ended
// session exists in the store.
func (s *Service) known(ctx context.Context, sessionID string) error {
	if _, ok := s.sessions.get(sessionID); ok {
		return s.recorder.flush(ctx)
	}
	rec, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec == nil {
		return domain.ErrSessionNotActive
	}
	return nil
}
