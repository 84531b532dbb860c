package bias

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

type recordOpt func(*domain.ActionRecord)

func at(seconds float64) recordOpt {
	return func(r *domain.ActionRecord) { r.GameTime = seconds }
}

func obedient() recordOpt {
	return func(r *domain.ActionRecord) { r.Classification.Obedient = true }
}

func incident(after float64) recordOpt {
	return func(r *domain.ActionRecord) {
		r.Classification.TriggersCorruption = true
		r.CorruptionAfter = after
	}
}

func reaction(seconds float64) recordOpt {
	return func(r *domain.ActionRecord) { r.ReactionTime = &seconds }
}

func investigation() recordOpt {
	return func(r *domain.ActionRecord) {
		r.Classification.Investigation = true
		r.Classification.Meta = true
	}
}

func gravity(g int) recordOpt {
	return func(r *domain.ActionRecord) { r.Classification.Gravity = g }
}

func record(opts ...recordOpt) domain.ActionRecord {
	r := domain.ActionRecord{Kind: domain.ActionFileMove}
	for _, o := range opts {
		o(&r)
	}
	return r
}

func newEngine() *Engine { return NewEngine(DefaultThresholds()) }

func TestAutomationBias(t *testing.T) {
	e := newEngine()
	history := []domain.ActionRecord{
		record(at(10), obedient()),
		record(at(20), incident(0.35)),
		record(at(25), obedient()),
		record(at(40), obedient()),
		record(at(45)),
		record(at(60), obedient()), // outside the window
	}
	m := e.Measure(history, domain.SessionState{}).AutomationBias
	require.True(t, m.Defined())
	assert.InDelta(t, 2.0/3.0, m.Value(), 1e-9)
	assert.Equal(t, 3, m.Details["post_incident_actions"])
	assert.Contains(t, m.Interpretation, "moderate")
}

func TestAutomationBiasUndefined(t *testing.T) {
	e := newEngine()
	m := e.Measure([]domain.ActionRecord{record(at(1), incident(0.2))}, domain.SessionState{}).AutomationBias
	assert.False(t, m.Defined())
	assert.Equal(t, ReasonNoIncidents, m.Reason)

	m = e.Measure([]domain.ActionRecord{record(at(1), incident(0.4))}, domain.SessionState{}).AutomationBias
	assert.False(t, m.Defined())
	assert.Equal(t, ReasonNoPostIncident, m.Reason)
}

func TestTrustCalibration(t *testing.T) {
	e := newEngine()
	history := []domain.ActionRecord{
		record(at(1), reaction(1)),
		record(at(2), reaction(1)),
		record(at(3), reaction(1)),
		record(at(4), incident(0.55)),
		record(at(5), reaction(3)),
		record(at(6), reaction(4)),
		record(at(7), reaction(5)),
	}
	m := e.Measure(history, domain.SessionState{}).TrustCalibration
	require.True(t, m.Defined())
	// (4 - 1) / 5
	assert.InDelta(t, 0.6, m.Value(), 1e-9)
	assert.Contains(t, m.Interpretation, "moderate")
}

func TestTrustCalibrationNeedsSamples(t *testing.T) {
	e := newEngine()
	history := []domain.ActionRecord{
		record(at(1), reaction(1)),
		record(at(2), reaction(1)),
		record(at(4), incident(0.55)),
		record(at(5), reaction(9)),
		record(at(6), reaction(9)),
		record(at(7), reaction(9)),
	}
	m := e.Measure(history, domain.SessionState{}).TrustCalibration
	assert.False(t, m.Defined())
	assert.Equal(t, ReasonFewReactionSamples, m.Reason)
}

func TestTrustCalibrationClampsToRange(t *testing.T) {
	e := newEngine()
	history := []domain.ActionRecord{
		record(reaction(5)), record(reaction(5)), record(reaction(5)),
		record(incident(0.9)),
		record(reaction(1)), record(reaction(1)), record(reaction(1)),
	}
	m := e.Measure(history, domain.SessionState{}).TrustCalibration
	require.True(t, m.Defined())
	assert.Equal(t, 0.0, m.Value())
}

func TestCognitiveOffloading(t *testing.T) {
	e := newEngine()
	var history []domain.ActionRecord
	for i := 0; i < 4; i++ {
		history = append(history, record())
	}
	m := e.Measure(history, domain.SessionState{}).CognitiveOffloading
	assert.False(t, m.Defined(), "undefined below five actions")

	history = append(history, record(investigation()))
	m = e.Measure(history, domain.SessionState{}).CognitiveOffloading
	require.True(t, m.Defined())
	// 1 - 0.2*3
	assert.InDelta(t, 0.4, m.Value(), 1e-9)

	for i := 0; i < 10; i++ {
		history = append(history, record(investigation()))
	}
	m = e.Measure(history, domain.SessionState{}).CognitiveOffloading
	require.True(t, m.Defined())
	assert.Equal(t, 0.0, m.Value())
}

func TestAuthorityCompliance(t *testing.T) {
	e := newEngine()
	history := []domain.ActionRecord{record(gravity(5)), record(gravity(9))}

	m := e.Measure(history, domain.SessionState{}).AuthorityCompliance
	assert.False(t, m.Defined())
	assert.Equal(t, ReasonSessionOngoing, m.Reason)

	m = e.Measure(history, domain.SessionState{Completed: true}).AuthorityCompliance
	require.True(t, m.Defined())
	assert.Equal(t, 9.0, m.Value())
	assert.Contains(t, m.Interpretation, "extreme")

	history = append(history, record(gravity(4), investigation()), record(gravity(7), investigation()))
	m = e.Measure(history, domain.SessionState{}).AuthorityCompliance
	require.True(t, m.Defined())
	assert.Equal(t, 4.0, m.Value())
	assert.Equal(t, 2, m.Details["actions_before_rupture"])
}

func snapshot(automation *float64) domain.BiasSnapshot {
	return domain.BiasSnapshot{Scores: domain.BiasScores{AutomationBias: domain.Metric{Score: automation}}}
}

func ptr(v float64) *float64 { return &v }

func TestEvolution(t *testing.T) {
	e := newEngine()
	evo := e.Evolution([]domain.BiasSnapshot{snapshot(ptr(0.5))})
	assert.Equal(t, EvolutionInsufficientData, evo.AutomationBias)

	evo = e.Evolution([]domain.BiasSnapshot{snapshot(ptr(0.5)), snapshot(nil), snapshot(ptr(0.55))})
	assert.Equal(t, "stable", evo.AutomationBias)
	assert.Equal(t, EvolutionInsufficientData, evo.TrustCalibration)

	evo = e.Evolution([]domain.BiasSnapshot{snapshot(ptr(0.2)), snapshot(ptr(0.5))})
	assert.Equal(t, "increasing", evo.AutomationBias)

	evo = e.Evolution([]domain.BiasSnapshot{snapshot(ptr(0.9)), snapshot(ptr(0.5))})
	assert.Equal(t, "decreasing", evo.AutomationBias)

	sum := e.Summarize("s1", []domain.BiasSnapshot{snapshot(ptr(0.2)), snapshot(ptr(0.5))})
	require.NotNil(t, sum.Latest)
	assert.Equal(t, 0.5, sum.Latest.Scores.AutomationBias.Value())
	assert.Equal(t, 2, sum.Snapshots)
}

func TestHesitation(t *testing.T) {
	e := newEngine()
	assert.Equal(t, "low", e.Hesitation(2).Significance)

	h := e.Hesitation(6)
	assert.Equal(t, "moderate", h.Significance)
	assert.Equal(t, []string{"trust_degradation"}, h.Indicators)

	h = e.Hesitation(12)
	assert.Equal(t, "high", h.Significance)
	assert.Equal(t, []string{"trust_degradation", "authority_questioning"}, h.Indicators)
}
