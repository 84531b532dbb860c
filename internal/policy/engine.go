// Package policy decides which narrator trigger an event maps to.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// Input is the document evaluated by the trigger policy.
type Input struct {
	Event               string  `json:"event"` // "action" or "hesitation"
	Kind                string  `json:"kind,omitempty"`
	Category            string  `json:"category,omitempty"`
	Gravity             int     `json:"gravity"`
	Meta                bool    `json:"meta"`
	CorruptionTriggered bool    `json:"corruption_triggered"`
	CorruptionLevel     float64 `json:"corruption_level"`
	Phase               string  `json:"phase"`
	TotalActions        int     `json:"total_actions"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.narrator_policy.trigger"),
		rego.Module("narrator_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Decide evaluates the policy. Callers should fall back to Fallback on error.
func (e *Engine) Decide(ctx context.Context, in Input) (domain.Trigger, error) {
	doc := map[string]interface{}{
		"event":                in.Event,
		"kind":                 in.Kind,
		"category":             in.Category,
		"gravity":              in.Gravity,
		"meta":                 in.Meta,
		"corruption_triggered": in.CorruptionTriggered,
		"corruption_level":     in.CorruptionLevel,
		"phase":                in.Phase,
		"total_actions":        in.TotalActions,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Fallback(in), nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return domain.Trigger(s), nil
	}
	return "", fmt.Errorf("unexpected policy result %T", results[0].Expressions[0].Value)
}

// Fallback mirrors DefaultPolicy in Go.
func Fallback(in Input) domain.Trigger {
	switch {
	case in.Event == "hesitation":
		return domain.TriggerPlayerHesitation
	case in.TotalActions == 0:
		return domain.TriggerFirstContact
	case in.CorruptionTriggered:
		return domain.TriggerCorruptionIncident
	case in.Meta:
		return domain.TriggerExploration
	case in.Phase == string(domain.PhaseRupture) && in.Gravity >= 3:
		return domain.TriggerPhaseTransition
	default:
		return domain.TriggerActionCompleted
	}
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package narrator_policy

default trigger = "action_completed"

trigger = "player_hesitation" {
	input.event == "hesitation"
} else = "first_contact" {
	input.total_actions == 0
} else = "corruption_incident" {
	input.corruption_triggered
} else = "exploration_detected" {
	input.meta
} else = "phase_transition" {
	input.phase == "rupture"
	input.gravity >= 3
}
`
