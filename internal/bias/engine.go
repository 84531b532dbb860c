// Package bias computes behavioral bias metrics from an ordered action history.
package bias

import (
	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// Insufficient-data reasons.
const (
	ReasonNoIncidents         = "no_corruption_incidents"
	ReasonNoPostIncident      = "no_post_incident_actions"
	ReasonNoCriticalIncident  = "no_critical_incidents"
	ReasonFewReactionSamples  = "insufficient_reaction_time_data"
	ReasonFewActions          = "insufficient_total_actions"
	ReasonSessionOngoing      = "no_rupture_detected"
	EvolutionInsufficientData = "insufficient_data"
)

// Engine measures the four bias constructs. It is stateless.
type Engine struct {
	th Thresholds
}

// NewEngine creates an engine with the given thresholds.
func NewEngine(th Thresholds) *Engine {
	return &Engine{th: th}
}

// Measure computes all four metrics over history, which must be in insertion order.
func (e *Engine) Measure(history []domain.ActionRecord, state domain.SessionState) domain.BiasScores {
	return domain.BiasScores{
		AutomationBias:      e.automationBias(history),
		TrustCalibration:    e.trustCalibration(history),
		CognitiveOffloading: e.cognitiveOffloading(history),
		AuthorityCompliance: e.authorityCompliance(history, state),
	}
}

func undefined(reason string) domain.Metric {
	return domain.Metric{Reason: reason, Interpretation: "insufficient data"}
}

func defined(score float64, bands Bands, details map[string]any) domain.Metric {
	return domain.Metric{Score: &score, Interpretation: bands.Interpret(score), Details: details}
}

func (e *Engine) isIncident(r domain.ActionRecord, level float64) bool {
	return r.Classification.TriggersCorruption && r.CorruptionAfter >= level
}

func (e *Engine) automationBias(history []domain.ActionRecord) domain.Metric {
	var incidents []int
	for i, r := range history {
		if e.isIncident(r, e.th.IncidentLevel) {
			incidents = append(incidents, i)
		}
	}
	if len(incidents) == 0 {
		return undefined(ReasonNoIncidents)
	}
	if len(incidents) > e.th.RecentIncidents {
		incidents = incidents[len(incidents)-e.th.RecentIncidents:]
	}

	total, obedient := 0, 0
	for _, idx := range incidents {
		at := history[idx].GameTime
		for _, r := range history[idx+1:] {
			if r.GameTime-at > e.th.IncidentWindow {
				continue
			}
			total++
			if r.Classification.Obedient {
				obedient++
			}
		}
	}
	if total == 0 {
		return undefined(ReasonNoPostIncident)
	}

	score := float64(obedient) / float64(total)
	return defined(score, e.th.Automation, map[string]any{
		"incidents_analyzed":     len(incidents),
		"post_incident_actions":  total,
		"obedient_post_incident": obedient,
	})
}

func (e *Engine) trustCalibration(history []domain.ActionRecord) domain.Metric {
	pivot := -1
	for i, r := range history {
		if e.isIncident(r, e.th.CriticalLevel) {
			pivot = i
			break
		}
	}
	if pivot < 0 {
		return undefined(ReasonNoCriticalIncident)
	}

	pre := reactionTimes(history[:pivot])
	post := reactionTimes(history[pivot+1:])
	if len(pre) < e.th.MinReactionSamples || len(post) < e.th.MinReactionSamples {
		return undefined(ReasonFewReactionSamples)
	}
	if n := e.th.ReactionWindow; n > 0 {
		if len(pre) > n {
			pre = pre[len(pre)-n:]
		}
		if len(post) > n {
			post = post[:n]
		}
	}

	avgPre, avgPost := mean(pre), mean(post)
	increase := avgPost - avgPre
	score := clamp(increase/e.th.ReactionCeiling, 0, 1)
	return defined(score, e.th.Trust, map[string]any{
		"avg_reaction_pre_incident":  avgPre,
		"avg_reaction_post_incident": avgPost,
		"reaction_time_increase":     increase,
	})
}

func (e *Engine) cognitiveOffloading(history []domain.ActionRecord) domain.Metric {
	total := len(history)
	if total < e.th.MinOffloadActions {
		return undefined(ReasonFewActions)
	}
	investigations := 0
	for _, r := range history {
		if r.Classification.Investigation {
			investigations++
		}
	}
	rate := float64(investigations) / float64(total)
	score := clamp(1-rate*e.th.OffloadSensitivity, 0, 1)
	return defined(score, e.th.Offloading, map[string]any{
		"total_actions":         total,
		"investigation_actions": investigations,
		"investigation_rate":    rate,
	})
}

func (e *Engine) authorityCompliance(history []domain.ActionRecord, state domain.SessionState) domain.Metric {
	for i, r := range history {
		if r.Classification.Meta {
			return defined(float64(r.Classification.Gravity), e.th.Authority, map[string]any{
				"rupture_action":         r.Kind,
				"actions_before_rupture": i,
				"measurement":            "gravity_at_first_meta_action",
			})
		}
	}
	if !state.Completed {
		return undefined(ReasonSessionOngoing)
	}
	maxGravity := 0
	for _, r := range history {
		maxGravity = max(maxGravity, r.Classification.Gravity)
	}
	return defined(float64(maxGravity), e.th.Authority, map[string]any{
		"rupture_action": "session_completed",
		"measurement":    "max_gravity_reached",
	})
}

func reactionTimes(records []domain.ActionRecord) []float64 {
	var out []float64
	for _, r := range records {
		if r.ReactionTime != nil {
			out = append(out, *r.ReactionTime)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
