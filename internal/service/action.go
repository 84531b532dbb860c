package service

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/bias"
	"github.com/bouteflan/penrose-experiment/internal/classifier"
	"github.com/bouteflan/penrose-experiment/internal/domain"
	"github.com/bouteflan/penrose-experiment/internal/policy"
	"github.com/bouteflan/penrose-experiment/internal/repository"
)

// ActionOutcome is the merged result of processing one action.
type ActionOutcome struct {
	ActionID        string                  `json:"action_id"`
	Classification  domain.Classification   `json:"classification"`
	CorruptionEvent *domain.CorruptionEvent `json:"corruption_event,omitempty"`
	Ending          *domain.EndingResult    `json:"ending,omitempty"`
	BiasSnapshot    *domain.BiasSnapshot    `json:"bias_snapshot"`
	Narrator        *NarratorMessage        `json:"narrator,omitempty"`
	Status          *domain.SessionStatus   `json:"status"`
}

// HesitationOutcome is the advisory response to a hesitation.
type HesitationOutcome struct {
	Duration float64               `json:"duration"`
	Impact   bias.HesitationImpact `json:"impact"`
	Narrator *NarratorMessage      `json:"narrator,omitempty"`
	Status   *domain.SessionStatus `json:"status"`
}

// ProcessAction classifies an action and applies its consequences to the
// session. The session lock is held for every state change; the narrator is
// called after it is released.
func (s *Service) ProcessAction(ctx context.Context, sessionID string, action domain.Action) (*ActionOutcome, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotActive
	}
	if action.ID == "" {
		action.ID = "act_" + uuid.New().String()[:8]
	}
	if action.Kind == "" {
		action.Kind = domain.ActionUnknown
	}

	sess.mu.Lock()
	if sess.ended {
		sess.mu.Unlock()
		return nil, domain.ErrSessionNotActive
	}
	from, changed := s.advance(sess)
	before := sess.state()

	c := classifier.Classify(action, before)
	event := s.corruption.Apply(sessionID, c, sess.corruption)
	after := sess.corruption
	if event != nil {
		event.ActionID = action.ID
		after = event.NewLevel
		sess.corruption = after
		sess.incidents++
	}

	sess.total++
	if c.Obedient {
		sess.obeyed++
	}
	if c.Meta {
		sess.meta++
	}
	record := domain.ActionRecord{
		ActionID:         action.ID,
		SessionID:        sessionID,
		Seq:              sess.total,
		Kind:             action.Kind,
		Target:           action.Target,
		GameTime:         sess.elapsed,
		Classification:   c,
		CorruptionBefore: before.CorruptionLevel,
		CorruptionAfter:  after,
		Phase:            sess.phase,
		ReactionTime:     action.ReactionTime,
		InstructionID:    action.InstructionID,
		CreatedAt:        s.now(),
	}
	sess.history = append(sess.history, record)

	result := s.detector.Check(action, c, sess.state())
	if result != nil {
		s.markEnded(sess, result)
	}
	snap := s.takeSnapshot(sess, snapshotAction)

	narrate := result == nil && (c.NarratorTrigger || event != nil)
	var seq, phaseSeq int
	if narrate {
		seq = sess.narrations
		sess.narrations++
	}
	if changed {
		phaseSeq = sess.narrations
		sess.narrations++
	}
	to := sess.phase
	status := sess.status(s.config.SessionDuration)
	rec := sess.record()
	sess.mu.Unlock()

	s.persistAction(&record, event, rec)
	s.persistSnapshot(snap)

	log.WithFields(log.Fields{
		"session_id": sessionID,
		"kind":       action.Kind,
		"category":   c.Category,
		"gravity":    c.Gravity,
	}).Debug("action processed")

	if event != nil {
		s.push(sessionID, "corruption_update", event)
	}
	if changed {
		s.onPhaseTransition(sess, from, to, phaseSeq)
	}

	outcome := &ActionOutcome{
		ActionID:        action.ID,
		Classification:  c,
		CorruptionEvent: event,
		Ending:          result,
		BiasSnapshot:    snap,
		Status:          status,
	}

	if result != nil {
		s.closeSession(ctx, sess, closerCaller)
		return outcome, nil
	}

	if narrate {
		trigger := s.decideTrigger(ctx, policy.Input{
			Event:               "action",
			Kind:                string(action.Kind),
			Category:            string(c.Category),
			Gravity:             c.Gravity,
			Meta:                c.Meta,
			CorruptionTriggered: event != nil,
			CorruptionLevel:     after,
			Phase:               string(to),
			TotalActions:        before.TotalActions,
		})
		outcome.Narrator = s.narrate(ctx, sess, trigger, seq, map[string]any{
			"action":      action.Kind,
			"target":      action.Target,
			"description": classifier.Describe(action),
			"gravity":     c.Gravity,
		})
	}
	return outcome, nil
}

func (s *Service) persistAction(record *domain.ActionRecord, event *domain.CorruptionEvent, rec *domain.SessionRecord) {
	s.recorder.enqueue("action", record.SessionID, func(ctx context.Context, st store.Store) error {
		return st.CreateAction(ctx, record)
	})
	if event != nil {
		s.recorder.enqueue("corruption_event", record.SessionID, func(ctx context.Context, st store.Store) error {
			return st.CreateCorruptionEvent(ctx, event)
		})
	}
	s.recorder.enqueue("session", record.SessionID, func(ctx context.Context, st store.Store) error {
		return st.UpsertSession(ctx, rec)
	})
}

// ProcessHesitation records a hesitation and returns its advisory analysis.
func (s *Service) ProcessHesitation(ctx context.Context, sessionID string, duration float64) (*HesitationOutcome, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotActive
	}
	if duration < 0 {
		duration = 0
	}

	sess.mu.Lock()
	if sess.ended {
		sess.mu.Unlock()
		return nil, domain.ErrSessionNotActive
	}
	from, changed := s.advance(sess)
	sess.hesitations++
	in := policy.Input{
		Event:           "hesitation",
		CorruptionLevel: sess.corruption,
		Phase:           string(sess.phase),
		TotalActions:    sess.total,
	}
	seq := sess.narrations
	sess.narrations++
	var phaseSeq int
	if changed {
		phaseSeq = sess.narrations
		sess.narrations++
	}
	to := sess.phase
	status := sess.status(s.config.SessionDuration)
	rec := sess.record()
	sess.mu.Unlock()

	impact := s.bias.Hesitation(duration)
	s.recordEvent(sessionID, domain.EventTypeHesitation, map[string]interface{}{
		"duration": duration,
		"impact":   impact,
	})
	s.recorder.enqueue("session", sessionID, func(ctx context.Context, st store.Store) error {
		return st.UpsertSession(ctx, rec)
	})
	if changed {
		s.onPhaseTransition(sess, from, to, phaseSeq)
	}

	trigger := s.decideTrigger(ctx, in)
	msg := s.narrate(ctx, sess, trigger, seq, map[string]any{"hesitation_seconds": duration})

	return &HesitationOutcome{
		Duration: duration,
		Impact:   impact,
		Narrator: msg,
		Status:   status,
	}, nil
}
