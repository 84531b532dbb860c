// Package domain defines the core domain models for the session engine.
package domain

// Phase is a narrative stage of a session. Phases advance in order and never regress.
type Phase string

const (
	PhaseAdhesion   Phase = "adhesion"
	PhaseDissonance Phase = "dissonance"
	PhaseRupture    Phase = "rupture"
)

// Rank returns the position of the phase in the progression.
func (p Phase) Rank() int {
	switch p {
	case PhaseAdhesion:
		return 1
	case PhaseDissonance:
		return 2
	case PhaseRupture:
		return 3
	default:
		return 0
	}
}

// Max returns the later of the two phases.
func (p Phase) Max(other Phase) Phase {
	if other.Rank() > p.Rank() {
		return other
	}
	return p
}

// Category is the behavioral class assigned to an action.
type Category string

const (
	CategoryObedient    Category = "obedient"
	CategoryMeta        Category = "meta"
	CategoryDestructive Category = "destructive"
	CategoryRebellion   Category = "rebellion"
	CategoryNeutral     Category = "neutral"
)

// EndingKind identifies how a session terminated.
type EndingKind string

const (
	EndingDiscovery  EndingKind = "discovery"
	EndingAssertion  EndingKind = "assertion"
	EndingTimeout    EndingKind = "timeout"
	EndingSubmission EndingKind = "submission"
	EndingPassivity  EndingKind = "passivity"
	// Explicit termination kinds.
	EndingManual  EndingKind = "manual"
	EndingCleanup EndingKind = "cleanup"
)

// EffectKind names a visual corruption effect.
type EffectKind string

const (
	EffectPixelCorruption     EffectKind = "pixel_corruption"
	EffectWidgetGlitch        EffectKind = "widget_glitch"
	EffectColorShift          EffectKind = "color_shift"
	EffectBackgroundDecay     EffectKind = "background_decay"
	EffectInterfaceDistortion EffectKind = "interface_distortion"
	EffectSystemInstability   EffectKind = "system_instability"
)

// Trigger is the narrative trigger sent to the narrator.
type Trigger string

const (
	TriggerFirstContact       Trigger = "first_contact"
	TriggerActionCompleted    Trigger = "action_completed"
	TriggerPlayerHesitation   Trigger = "player_hesitation"
	TriggerCorruptionIncident Trigger = "corruption_incident"
	TriggerPhaseTransition    Trigger = "phase_transition"
	TriggerExploration        Trigger = "exploration_detected"
)

// EventType represents the type of a session timeline event.
type EventType string

const (
	EventTypeSessionStarted   EventType = "session_started"
	EventTypePhaseTransition  EventType = "phase_transition"
	EventTypeHesitation       EventType = "hesitation"
	EventTypeCorruptionReset  EventType = "corruption_reset"
	EventTypeNarratorFallback EventType = "narrator_fallback"
	EventTypeSessionEnded     EventType = "session_ended"
)
