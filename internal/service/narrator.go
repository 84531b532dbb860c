package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/adapter/narrator"
	"github.com/bouteflan/penrose-experiment/internal/domain"
	"github.com/bouteflan/penrose-experiment/internal/policy"
	"github.com/bouteflan/penrose-experiment/internal/repository"
)

// NarratorMessage is a narrator line delivered to the player.
type NarratorMessage struct {
	Trigger   domain.Trigger `json:"trigger"`
	Message   string         `json:"message"`
	Tone      string         `json:"tone"`
	Intent    string         `json:"intent"`
	Fallback  bool           `json:"fallback"`
	LatencyMs int64          `json:"latency_ms"`
}

var errEmptyReply = errors.New("narrator returned an empty reply")

type generated struct {
	resp *narrator.Response
	err  error
}

// decideTrigger maps an event to a narrator trigger through the policy engine,
// falling back to the built-in mapping when the engine is missing or fails.
func (s *Service) decideTrigger(ctx context.Context, in policy.Input) domain.Trigger {
	if s.policyEngine == nil {
		return policy.Fallback(in)
	}
	trigger, err := s.policyEngine.Decide(ctx, in)
	if err != nil {
		log.WithError(err).Warn("trigger policy failed, using built-in mapping")
		return policy.Fallback(in)
	}
	return trigger
}

// narrate asks the narrator for a line. It never fails: a slow or failing
// narrator is replaced by the fallback line of the trigger. It must not be
// called with sess.mu held.
func (s *Service) narrate(ctx context.Context, sess *activeSession, trigger domain.Trigger, seq int, extra map[string]any) *NarratorMessage {
	sess.mu.Lock()
	req := narrator.Request{
		SessionID:       sess.id,
		PlayerName:      sess.playerName,
		Trigger:         trigger,
		Phase:           sess.phase,
		CorruptionLevel: sess.corruption,
		Seq:             seq,
		Context:         extra,
	}
	gameTime := sess.elapsed
	sess.mu.Unlock()

	start := time.Now()
	resp, err := s.generate(ctx, req)
	latency := time.Since(start).Milliseconds()

	fields := log.Fields{"session_id": sess.id, "trigger": trigger}
	if err == nil && (resp == nil || strings.TrimSpace(resp.Message) == "") {
		err = errEmptyReply
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("narrator unavailable, using fallback")
		resp = narrator.Fallback(trigger, seq)
		s.recordEvent(sess.id, domain.EventTypeNarratorFallback, map[string]interface{}{
			"trigger": trigger,
			"error":   err.Error(),
		})
	}

	interaction := &domain.NarratorInteraction{
		InteractionID:   "nar_" + uuid.New().String()[:8],
		SessionID:       sess.id,
		Trigger:         trigger,
		Message:         resp.Message,
		Tone:            resp.Tone,
		Intent:          resp.Intent,
		Fallback:        resp.Fallback,
		LatencyMs:       latency,
		GameTime:        gameTime,
		Phase:           req.Phase,
		CorruptionLevel: req.CorruptionLevel,
		CreatedAt:       s.now(),
	}
	s.recorder.enqueue("narrator_interaction", sess.id, func(ctx context.Context, st store.Store) error {
		return st.CreateNarratorInteraction(ctx, interaction)
	})

	return &NarratorMessage{
		Trigger:   trigger,
		Message:   resp.Message,
		Tone:      resp.Tone,
		Intent:    resp.Intent,
		Fallback:  resp.Fallback,
		LatencyMs: latency,
	}
}

// generate bounds the narrator call by the configured timeout, even when the
// provider ignores its context.
func (s *Service) generate(ctx context.Context, req narrator.Request) (*narrator.Response, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.NarratorTimeout)
	defer cancel()

	ch := make(chan generated, 1)
	go func() {
		resp, err := s.narrator.Generate(callCtx, req)
		ch <- generated{resp: resp, err: err}
	}()

	select {
	case g := <-ch:
		return g.resp, g.err
	case <-callCtx.Done():
		return nil, callCtx.Err()
	}
}
