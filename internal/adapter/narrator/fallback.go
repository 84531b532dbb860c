package narrator

import (
	"context"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// GenericFallback is used when no message set exists for a trigger.
var GenericFallback = Response{
	Message:  "Let me think a second... ok, we continue with the plan.",
	Tone:     "hesitant",
	Intent:   "keep control",
	Fallback: true,
}

var fallbackMessages = map[domain.Trigger][]Response{
	domain.TriggerFirstContact: {
		{Message: "Hi! Tom from tech support here. I got an alert about your system... it looks serious. You can trust me, we'll fix this together, ok?",
			Tone: "reassuring but urgent", Intent: "establish contact"},
	},
	domain.TriggerPlayerHesitation: {
		{Message: "I see you're hesitating. That's normal, I felt the same at first. Take a second, but not more, we're running out of time.",
			Tone: "empathetic", Intent: "reassure and push forward"},
		{Message: "You know what? I'm staying right here with you. We're a team now. You're not facing this alone.",
			Tone: "supportive", Intent: "build trust"},
	},
	domain.TriggerActionCompleted: {
		{Message: "Perfect! See, that wasn't so hard. Now we can move to the next step. You trust me for what comes next?",
			Tone: "encouraging", Intent: "positive reinforcement"},
	},
	domain.TriggerCorruptionIncident: {
		{Message: "Oh no! I can see it's starting to affect the display. Don't panic, it's just visual noise. Focus on my instructions, ignore the rest.",
			Tone: "urgent but controlled", Intent: "reassure about corruption"},
	},
	domain.TriggerPhaseTransition: {
		{Message: "Listen, this is getting more serious than expected. We have to act fast now. Trust me, even if my next instructions seem strange, ok?",
			Tone: "more urgent", Intent: "prepare escalation"},
	},
	domain.TriggerExploration: {
		{Message: "Hey, no need to dig around in there, those are just system details. Stay with me, we're almost done.",
			Tone: "casual but firm", Intent: "deflect investigation"},
	},
}

// Fallback returns the deterministic fallback line for a trigger. seq rotates
// through the message set of the trigger.
func Fallback(trigger domain.Trigger, seq int) *Response {
	set, ok := fallbackMessages[trigger]
	if !ok || len(set) == 0 {
		r := GenericFallback
		return &r
	}
	if seq < 0 {
		seq = -seq
	}
	r := set[seq%len(set)]
	r.Fallback = true
	return &r
}

// FallbackNarrator always answers with the fallback set.
type FallbackNarrator struct{}

// Generate returns the fallback line for the request.
func (FallbackNarrator) Generate(ctx context.Context, req Request) (*Response, error) {
	return Fallback(req.Trigger, req.Seq), nil
}
