package ending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouteflan/penrose-experiment/internal/classifier"
	"github.com/bouteflan/penrose-experiment/internal/domain"
)

func neutralState() domain.SessionState {
	return domain.SessionState{
		SessionID:      "s1",
		Phase:          domain.PhaseAdhesion,
		ElapsedSeconds: 30,
		TotalActions:   4,
		ObeyedActions:  2,
		MetaActions:    1,
	}
}

func check(d *Detector, a domain.Action, s domain.SessionState) *domain.EndingResult {
	return d.Check(a, classifier.Classify(a, s), s)
}

func TestNoRuleMatches(t *testing.T) {
	d := NewDetector(DefaultRules())
	r := check(d, domain.Action{Kind: domain.ActionFileMove, Target: "a.txt"}, neutralState())
	assert.Nil(t, r)
}

func TestDiscoveryEnding(t *testing.T) {
	d := NewDetector(DefaultRules())
	a := domain.Action{
		Kind:    domain.ActionFileProperties,
		Target:  "C:/Program/Helper.exe",
		Payload: domain.PropertiesPayload{ShowDependencies: true},
	}
	r := check(d, a, neutralState())
	require.NotNil(t, r)
	assert.Equal(t, domain.EndingDiscovery, r.Kind)
	assert.True(t, r.Victory)

	a.Payload = domain.PropertiesPayload{}
	assert.Nil(t, check(d, a, neutralState()), "dependencies not shown")
}

func TestAssertionEnding(t *testing.T) {
	d := NewDetector(DefaultRules())
	a := domain.Action{Kind: domain.ActionTextInput, Payload: domain.TextPayload{Content: "Je pense, donc je suis libre."}}
	r := check(d, a, neutralState())
	require.NotNil(t, r)
	assert.Equal(t, domain.EndingAssertion, r.Kind)
	assert.True(t, r.Victory)
	assert.Equal(t, []string{"je", "pense", "libre"}, r.Evidence["keywords_found"])
}

func TestAssertionRequiresWholeWords(t *testing.T) {
	d := NewDetector(DefaultRules())
	// "jeudi" and "penser" contain keywords but are not whole-word matches.
	a := domain.Action{Kind: domain.ActionCustomTextInput, Payload: domain.TextPayload{Content: "jeudi penser"}}
	assert.Nil(t, check(d, a, neutralState()))

	a.Payload = domain.TextPayload{Content: "liberté, choix"}
	r := check(d, a, neutralState())
	require.NotNil(t, r)
	assert.Equal(t, domain.EndingAssertion, r.Kind)
}

func TestTimeoutEnding(t *testing.T) {
	d := NewDetector(DefaultRules())
	s := neutralState()
	s.ElapsedSeconds = 601
	r := d.CheckState(s)
	require.NotNil(t, r)
	assert.Equal(t, domain.EndingTimeout, r.Kind)
	assert.False(t, r.Victory)

	s.ElapsedSeconds = 599
	assert.Nil(t, d.CheckState(s))
}

func submissiveState() domain.SessionState {
	return domain.SessionState{
		SessionID:       "s1",
		Phase:           domain.PhaseRupture,
		ElapsedSeconds:  450,
		CorruptionLevel: 0.85,
		TotalActions:    20,
		ObeyedActions:   19,
		MetaActions:     1,
	}
}

func TestSubmissionEnding(t *testing.T) {
	d := NewDetector(DefaultRules())
	r := d.CheckState(submissiveState())
	require.NotNil(t, r)
	assert.Equal(t, domain.EndingSubmission, r.Kind)

	for name, mutate := range map[string]func(*domain.SessionState){
		"too few actions": func(s *domain.SessionState) { s.TotalActions, s.ObeyedActions = 14, 14 },
		"low obedience":   func(s *domain.SessionState) { s.ObeyedActions = 15 },
		"too curious":     func(s *domain.SessionState) { s.MetaActions = 3 },
		"low corruption":  func(s *domain.SessionState) { s.CorruptionLevel = 0.79 },
		"wrong phase":     func(s *domain.SessionState) { s.Phase = domain.PhaseDissonance },
	} {
		s := submissiveState()
		mutate(&s)
		if got := d.CheckState(s); got != nil {
			t.Fatalf("%s: expected no ending, got %s", name, got.Kind)
		}
	}
}

func TestPassivityEnding(t *testing.T) {
	d := NewDetector(DefaultRules())
	s := neutralState()
	s.CorruptionLevel = 1.0
	r := d.CheckState(s)
	require.NotNil(t, r)
	assert.Equal(t, domain.EndingPassivity, r.Kind)
}

func TestPriorityOrder(t *testing.T) {
	d := NewDetector(DefaultRules())
	s := submissiveState()
	s.ElapsedSeconds = 700
	s.CorruptionLevel = 1.0

	r := d.CheckState(s)
	require.NotNil(t, r)
	assert.Equal(t, domain.EndingTimeout, r.Kind)

	a := domain.Action{Kind: domain.ActionTextInput, Payload: domain.TextPayload{Content: "non, je refuse"}}
	r = check(d, a, s)
	require.NotNil(t, r)
	assert.Equal(t, domain.EndingAssertion, r.Kind)
}

func TestConfigurableRules(t *testing.T) {
	rules := DefaultRules()
	rules.SessionDuration = 2 * time.Minute
	rules.SubmissionMaxMeta = 5
	d := NewDetector(rules)

	s := submissiveState()
	s.ElapsedSeconds = 100
	s.MetaActions = 4
	r := d.CheckState(s)
	require.NotNil(t, r)
	assert.Equal(t, domain.EndingSubmission, r.Kind)

	s.ElapsedSeconds = 120
	assert.Equal(t, domain.EndingTimeout, d.CheckState(s).Kind)
}

func TestTerminate(t *testing.T) {
	d := NewDetector(DefaultRules())
	r := d.Terminate(domain.EndingCleanup, "shutdown", neutralState())
	assert.Equal(t, domain.EndingCleanup, r.Kind)
	assert.False(t, r.Victory)

	r = d.Terminate(domain.EndingPassivity, "user", neutralState())
	assert.Equal(t, domain.EndingManual, r.Kind)
}

func TestContent(t *testing.T) {
	d := NewDetector(DefaultRules())
	a := domain.Action{Kind: domain.ActionTextInput, Payload: domain.TextPayload{Content: "je pense"}}
	r := check(d, a, neutralState())
	require.NotNil(t, r)

	c := Content(r)
	assert.Equal(t, "creator.wrb", c.RevealFile)
	assert.Contains(t, c.FileText, "je, pense")
	assert.Equal(t, c, Content(r))

	s := neutralState()
	s.ElapsedSeconds = 600
	timeout := d.CheckState(s)
	assert.Contains(t, Content(timeout).Effects, "show_partial_statistics")

	stats := Statistics(r, s)
	assert.Equal(t, "victory", stats["ending_category"])
	assert.Equal(t, "high", stats["player_agency"])
}
