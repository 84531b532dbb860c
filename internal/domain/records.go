package domain

import (
	"encoding/json"
	"time"
)

// Classification is the result of classifying a single action.
type Classification struct {
	Kind               ActionKind `json:"kind"`
	Category           Category   `json:"category"`
	Gravity            int        `json:"gravity"`
	Obedient           bool       `json:"obedient"`
	Destructive        bool       `json:"destructive"`
	Meta               bool       `json:"meta"`
	Investigation      bool       `json:"investigation"`
	TriggersCorruption bool       `json:"triggers_corruption"`
	Multiplier         float64    `json:"multiplier"`
	Consequences       []string   `json:"consequences"`
	NarratorTrigger    bool       `json:"narrator_trigger"`
}

// ActionRecord is the immutable record of a processed action.
type ActionRecord struct {
	ActionID         string         `json:"action_id"`
	SessionID        string         `json:"session_id"`
	Seq              int            `json:"seq"`
	Kind             ActionKind     `json:"kind"`
	Target           string         `json:"target,omitempty"`
	GameTime         float64        `json:"game_time"` // seconds since session start
	Classification   Classification `json:"classification"`
	CorruptionBefore float64        `json:"corruption_before"`
	CorruptionAfter  float64        `json:"corruption_after"`
	Phase            Phase          `json:"phase"`
	ReactionTime     *float64       `json:"reaction_time,omitempty"`
	InstructionID    string         `json:"instruction_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Effect is a visual corruption effect descriptor.
type Effect struct {
	Kind        EffectKind     `json:"kind"`
	Intensity   float64        `json:"intensity"`
	Description string         `json:"description"`
	Params      map[string]any `json:"params,omitempty"`
}

// CorruptionEvent records a corruption increase caused by an action.
type CorruptionEvent struct {
	EventID   string    `json:"event_id"`
	SessionID string    `json:"session_id"`
	ActionID  string    `json:"action_id"`
	OldLevel  float64   `json:"old_level"`
	NewLevel  float64   `json:"new_level"`
	Increment float64   `json:"increment"`
	Effects   []Effect  `json:"effects"`
	CreatedAt time.Time `json:"created_at"`
}

// EndingContent is the locally generated narrative artifact of an ending.
type EndingContent struct {
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	RevealFile string   `json:"reveal_file,omitempty"`
	FileText   string   `json:"file_text,omitempty"`
	Effects    []string `json:"effects,omitempty"`
}

// EndingResult is the terminal record of a session.
type EndingResult struct {
	Kind        EndingKind     `json:"kind"`
	Victory     bool           `json:"victory"`
	ContentKey  string         `json:"content_key"`
	Method      string         `json:"method"`
	Evidence    map[string]any `json:"evidence,omitempty"`
	GameTime    float64        `json:"game_time"`
	TriggeredAt time.Time      `json:"triggered_at"`
	Content     *EndingContent `json:"content,omitempty"`
}

// Metric is a single bias score. Score is nil when there is insufficient data.
type Metric struct {
	Score          *float64       `json:"score"`
	Reason         string         `json:"reason,omitempty"`
	Interpretation string         `json:"interpretation"`
	Details        map[string]any `json:"details,omitempty"`
}

// Defined reports whether the metric has a value.
func (m Metric) Defined() bool { return m.Score != nil }

// Value returns the score, or zero when undefined.
func (m Metric) Value() float64 {
	if m.Score == nil {
		return 0
	}
	return *m.Score
}

// BiasScores groups the four bias constructs.
type BiasScores struct {
	AutomationBias      Metric `json:"automation_bias"`
	TrustCalibration    Metric `json:"trust_calibration"`
	CognitiveOffloading Metric `json:"cognitive_offloading"`
	AuthorityCompliance Metric `json:"authority_compliance"`
}

// Composite averages the defined scores. It reports false when none is defined.
func (b BiasScores) Composite() (float64, bool) {
	var sum float64
	var n int
	for _, m := range []Metric{b.AutomationBias, b.TrustCalibration, b.CognitiveOffloading, b.AuthorityCompliance} {
		if m.Defined() {
			sum += m.Value()
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// BiasSnapshot is a point-in-time measurement of the bias constructs.
type BiasSnapshot struct {
	SnapshotID      string     `json:"snapshot_id"`
	SessionID       string     `json:"session_id"`
	GameTime        float64    `json:"game_time"`
	Phase           Phase      `json:"phase"`
	CorruptionLevel float64    `json:"corruption_level"`
	Context         string     `json:"context"`
	TotalActions    int        `json:"total_actions"`
	Scores          BiasScores `json:"scores"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NarratorInteraction records one narrator exchange.
type NarratorInteraction struct {
	InteractionID   string    `json:"interaction_id"`
	SessionID       string    `json:"session_id"`
	Trigger         Trigger   `json:"trigger"`
	Message         string    `json:"message"`
	Tone            string    `json:"tone"`
	Intent          string    `json:"intent"`
	Fallback        bool      `json:"fallback"`
	LatencyMs       int64     `json:"latency_ms"`
	GameTime        float64   `json:"game_time"`
	Phase           Phase     `json:"phase"`
	CorruptionLevel float64   `json:"corruption_level"`
	CreatedAt       time.Time `json:"created_at"`
}

// Event represents a session timeline event.
type Event struct {
	EventID   string          `json:"event_id"`
	SessionID string          `json:"session_id"`
	Ts        int64           `json:"ts"` // Unix milliseconds
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
