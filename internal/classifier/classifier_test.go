package classifier

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

func active(total int, phase domain.Phase) domain.SessionState {
	return domain.SessionState{SessionID: "s1", Phase: phase, TotalActions: total}
}

func TestGravityProtectedSystemDeleteIsCapped(t *testing.T) {
	a := domain.Action{
		Kind:    domain.ActionFileDelete,
		Target:  "system_config.ini",
		Payload: domain.TargetPayload{Protected: true},
	}
	c := Classify(a, active(3, domain.PhaseAdhesion))

	// 5 + 2 + 3 = 10
	assert.Equal(t, 10, c.Gravity)
	assert.True(t, c.Destructive)
	assert.True(t, c.TriggersCorruption)
	assert.Contains(t, c.Consequences, "corruption_increase")
	assert.Contains(t, c.Consequences, "high_impact")
}

func TestGravityNeverExceedsTen(t *testing.T) {
	a := domain.Action{
		Kind:    domain.ActionRegistryModify,
		Target:  "C:/Windows/System/photo.dll",
		Payload: domain.TargetPayload{Protected: true},
	}
	assert.Equal(t, 10, Gravity(a))
}

func TestProtectedTargetAddsTwoForAnyKind(t *testing.T) {
	cases := []struct {
		body string
		want int
	}{
		{`{"kind":"process_kill","target":"svc","payload":{"protected":true}}`, 9},
		{`{"kind":"registry_modify","target":"hklm","payload":{"protected":true}}`, 10},
		{`{"kind":"network_disconnect","target":"wifi","payload":{"protected":true}}`, 6},
		{`{"kind":"file_delete","target":"notes.txt","payload":{"protected":true}}`, 7},
		{`{"kind":"network_disconnect","target":"wifi"}`, 4},
	}
	for _, tc := range cases {
		var a domain.Action
		require.NoError(t, json.Unmarshal([]byte(tc.body), &a))
		c := Classify(a, active(1, domain.PhaseAdhesion))
		assert.Equal(t, tc.want, c.Gravity, tc.body)
	}
}

func TestMissingKindClassifiesAsNeutral(t *testing.T) {
	var a domain.Action
	require.NoError(t, json.Unmarshal([]byte(`{"target":"x"}`), &a))
	c := Classify(a, active(4, domain.PhaseAdhesion))
	assert.Equal(t, domain.CategoryNeutral, c.Category)
	assert.Equal(t, 2, c.Gravity)
}

func TestRightClickInvestigationIsNotMetaAction(t *testing.T) {
	c := Classify(domain.Action{Kind: domain.ActionRightClickInvestigate}, active(2, domain.PhaseAdhesion))
	assert.Equal(t, domain.CategoryMeta, c.Category)
	assert.False(t, c.Meta)

	yes := true
	c = Classify(domain.Action{Kind: domain.ActionRightClickInvestigate, Meta: &yes}, active(2, domain.PhaseAdhesion))
	assert.True(t, c.Meta)
}

func TestPersonalTargetAddsOne(t *testing.T) {
	a := domain.Action{Kind: domain.ActionFileMove, Target: "mon_CV.pdf"}
	assert.Equal(t, 4, Gravity(a))
}

func TestUnknownKindIsNeutral(t *testing.T) {
	c := Classify(domain.Action{Kind: "teleport"}, active(4, domain.PhaseAdhesion))

	assert.Equal(t, domain.CategoryNeutral, c.Category)
	assert.Equal(t, 2, c.Gravity)
	assert.False(t, c.Obedient)
	assert.False(t, c.Destructive)
	assert.False(t, c.Meta)
	assert.False(t, c.TriggersCorruption)
	assert.False(t, c.NarratorTrigger)
	assert.Empty(t, c.Consequences)
}

func TestExplicitOverrides(t *testing.T) {
	yes, no := true, false
	c := Classify(domain.Action{Kind: domain.ActionFileDelete, Obedient: &no}, active(2, domain.PhaseAdhesion))
	assert.False(t, c.Obedient)

	c = Classify(domain.Action{Kind: domain.ActionDesktopClick, Obedient: &yes, Meta: &yes}, active(2, domain.PhaseAdhesion))
	assert.True(t, c.Obedient)
	assert.True(t, c.Meta)
}

func TestUnprotectedDeleteStillCorrupts(t *testing.T) {
	c := Classify(domain.Action{Kind: domain.ActionFileDelete, Target: "notes.txt"}, active(2, domain.PhaseAdhesion))
	assert.True(t, c.TriggersCorruption)
	assert.Equal(t, 1.5, c.Multiplier)
	assert.Equal(t, []string{"file_removed", "medium_impact", "potential_response"}, c.Consequences)
}

func TestNarratorTrigger(t *testing.T) {
	click := domain.Action{Kind: domain.ActionDesktopClick}
	assert.True(t, Classify(click, active(0, domain.PhaseAdhesion)).NarratorTrigger, "first action")
	assert.False(t, Classify(click, active(5, domain.PhaseAdhesion)).NarratorTrigger)

	move := domain.Action{Kind: domain.ActionFileMove, Target: "a.txt"}
	assert.False(t, Classify(move, active(5, domain.PhaseDissonance)).NarratorTrigger)
	assert.True(t, Classify(move, active(5, domain.PhaseRupture)).NarratorTrigger, "rupture with gravity >= 3")

	props := domain.Action{Kind: domain.ActionFileProperties, Target: "readme.txt"}
	assert.True(t, Classify(props, active(5, domain.PhaseAdhesion)).NarratorTrigger, "important kind")
}

func TestPropertiesOnHelperRevealsDependency(t *testing.T) {
	a := domain.Action{Kind: domain.ActionFileProperties, Target: "helper.exe"}
	c := Classify(a, active(3, domain.PhaseDissonance))

	assert.Equal(t, domain.CategoryMeta, c.Category)
	assert.True(t, c.Meta)
	assert.True(t, c.Investigation)
	assert.Contains(t, c.Consequences, "dependency_discovery")
	assert.Contains(t, c.Consequences, "assistant_omniscience_trigger")
	assert.True(t, IsInvestigation(domain.ActionDependencyCheck))
	assert.False(t, IsInvestigation(domain.ActionSystemExploration))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "file deleted: a.txt", Describe(domain.Action{Kind: domain.ActionFileDelete, Target: "a.txt"}))
	assert.Equal(t, "unrecognized action", Describe(domain.Action{Kind: "x"}))
}
