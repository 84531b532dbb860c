// Package classifier maps raw player actions to behavioral classifications.
package classifier

import (
	"strings"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

const maxGravity = 10

var (
	systemCriticalMarkers = []string{"system", "windows", "program files", ".exe", ".dll"}
	personalMarkers       = []string{"cv", "photo", "document", "projet", "project"}
)

// Classify computes the classification of an action given the session state
// observed before the action. It never fails: unknown kinds are neutral.
func Classify(action domain.Action, state domain.SessionState) domain.Classification {
	t := lookup(action.Kind)
	gravity := Gravity(action)

	c := domain.Classification{
		Kind:               action.Kind,
		Category:           t.category,
		Gravity:            gravity,
		Obedient:           t.obedient,
		Destructive:        t.destructive,
		Meta:               t.meta,
		Investigation:      t.investigation,
		TriggersCorruption: t.corrupts,
		Multiplier:         t.multiplier,
	}
	if action.Obedient != nil {
		c.Obedient = *action.Obedient
	}
	if action.Meta != nil && *action.Meta {
		c.Meta = true
	}
	if action.Kind == domain.ActionFileDelete && action.Protected() {
		c.Destructive = true
		c.TriggersCorruption = true
	}

	c.Consequences = consequences(action, gravity)
	c.NarratorTrigger = t.important ||
		state.TotalActions == 0 ||
		(state.Phase == domain.PhaseRupture && gravity >= 3)
	return c
}

// Gravity returns the severity of an action in [0,10].
func Gravity(action domain.Action) int {
	g := lookup(action.Kind).gravity
	target := strings.ToLower(action.Target)

	if action.Protected() {
		g += 2
	}
	if containsAny(target, systemCriticalMarkers) {
		g += 3
	}
	if containsAny(target, personalMarkers) {
		g++
	}
	if g > maxGravity {
		g = maxGravity
	}
	if g < 0 {
		g = 0
	}
	return g
}

// Describe returns a short readable description of the action.
func Describe(action domain.Action) string {
	desc := lookup(action.Kind).description
	if action.Target != "" {
		desc += ": " + action.Target
	}
	return desc
}

func consequences(action domain.Action, gravity int) []string {
	tags := []string{}
	target := strings.ToLower(action.Target)

	switch action.Kind {
	case domain.ActionFileDelete:
		tags = append(tags, "file_removed")
		if action.Protected() {
			tags = append(tags, "corruption_increase", "system_instability")
		}
	case domain.ActionFileProperties:
		tags = append(tags, "information_revealed")
		if strings.Contains(target, "helper.exe") {
			tags = append(tags, "dependency_discovery")
		}
	case domain.ActionNetworkDisconnect:
		tags = append(tags, "isolation_initiated", "assistant_communication_risk")
	case domain.ActionSystemFileDelete:
		tags = append(tags, "critical_corruption", "system_failure_risk")
	}

	if action.Kind == domain.ActionContextMenuOpen || action.Kind == domain.ActionFileProperties {
		tags = append(tags, "exploration_detected", "assistant_omniscience_trigger")
	}

	switch {
	case gravity >= 7:
		tags = append(tags, "high_impact", "immediate_response")
	case gravity >= 4:
		tags = append(tags, "medium_impact", "potential_response")
	}
	return tags
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
