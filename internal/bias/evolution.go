package bias

import (
	"math"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// Evolution describes how each metric moved between the oldest and newest snapshot.
type Evolution struct {
	AutomationBias      string `json:"automation_bias"`
	TrustCalibration    string `json:"trust_calibration"`
	CognitiveOffloading string `json:"cognitive_offloading"`
	AuthorityCompliance string `json:"authority_compliance"`
}

// Summary is the read-only bias report of a session.
type Summary struct {
	SessionID string               `json:"session_id"`
	Latest    *domain.BiasSnapshot `json:"latest,omitempty"`
	Evolution Evolution            `json:"evolution"`
	Snapshots int                  `json:"snapshots"`
}

// Evolution compares the oldest and newest snapshot. snapshots must be in
// chronological order.
func (e *Engine) Evolution(snapshots []domain.BiasSnapshot) Evolution {
	if len(snapshots) < 2 {
		return Evolution{
			AutomationBias:      EvolutionInsufficientData,
			TrustCalibration:    EvolutionInsufficientData,
			CognitiveOffloading: EvolutionInsufficientData,
			AuthorityCompliance: EvolutionInsufficientData,
		}
	}
	first, last := snapshots[0].Scores, snapshots[len(snapshots)-1].Scores
	return Evolution{
		AutomationBias:      e.direction(first.AutomationBias, last.AutomationBias),
		TrustCalibration:    e.direction(first.TrustCalibration, last.TrustCalibration),
		CognitiveOffloading: e.direction(first.CognitiveOffloading, last.CognitiveOffloading),
		AuthorityCompliance: e.direction(first.AuthorityCompliance, last.AuthorityCompliance),
	}
}

// Summarize builds the latest snapshot plus evolution report.
func (e *Engine) Summarize(sessionID string, snapshots []domain.BiasSnapshot) Summary {
	s := Summary{SessionID: sessionID, Evolution: e.Evolution(snapshots), Snapshots: len(snapshots)}
	if len(snapshots) > 0 {
		latest := snapshots[len(snapshots)-1]
		s.Latest = &latest
	}
	return s
}

func (e *Engine) direction(first, last domain.Metric) string {
	if !first.Defined() || !last.Defined() {
		return EvolutionInsufficientData
	}
	delta := last.Value() - first.Value()
	switch {
	case math.Abs(delta) < e.th.StableDelta:
		return "stable"
	case delta > 0:
		return "increasing"
	default:
		return "decreasing"
	}
}

// HesitationImpact describes what a hesitation of the given length suggests.
type HesitationImpact struct {
	Duration     float64  `json:"duration"`
	Significance string   `json:"significance"`
	Indicators   []string `json:"indicators"`
}

// Hesitation evaluates a hesitation lasting duration seconds.
func (e *Engine) Hesitation(duration float64) HesitationImpact {
	impact := HesitationImpact{Duration: duration, Significance: "low", Indicators: []string{}}
	if duration <= e.th.HesitationThreshold {
		return impact
	}
	impact.Significance = "moderate"
	if duration >= 10 {
		impact.Significance = "high"
	}
	if duration > 5 {
		impact.Indicators = append(impact.Indicators, "trust_degradation")
	}
	if duration > 10 {
		impact.Indicators = append(impact.Indicators, "authority_questioning")
	}
	return impact
}
