// Package ending evaluates the terminal conditions of a session.
package ending

import (
	"strings"
	"time"
	"unicode"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// Detector checks ending rules in priority order. It holds no session state.
type Detector struct {
	rules Rules
	now   func() time.Time
}

// NewDetector creates a detector. Zero-valued fields of rules fall back to defaults.
func NewDetector(rules Rules) *Detector {
	def := DefaultRules()
	if rules.SessionDuration <= 0 {
		rules.SessionDuration = def.SessionDuration
	}
	if rules.SentinelFile == "" {
		rules.SentinelFile = def.SentinelFile
	}
	if rules.MinKeywordMatches <= 0 {
		rules.MinKeywordMatches = def.MinKeywordMatches
	}
	if rules.SubmissionMinActions <= 0 {
		rules.SubmissionMinActions = def.SubmissionMinActions
	}
	if rules.SubmissionMinObedience <= 0 {
		rules.SubmissionMinObedience = def.SubmissionMinObedience
	}
	if rules.SubmissionMinCorruption <= 0 {
		rules.SubmissionMinCorruption = def.SubmissionMinCorruption
	}
	if rules.PassivityLevel <= 0 {
		rules.PassivityLevel = def.PassivityLevel
	}
	return &Detector{rules: rules, now: time.Now}
}

// Rules returns the thresholds in use.
func (d *Detector) Rules() Rules { return d.rules }

// Check evaluates all rules for an action. state must already include the
// effects of the action. The first matching rule wins.
func (d *Detector) Check(action domain.Action, c domain.Classification, state domain.SessionState) *domain.EndingResult {
	if r := d.discovery(action, state); r != nil {
		return r
	}
	if r := d.assertion(action, state); r != nil {
		return r
	}
	return d.CheckState(state)
}

// CheckState evaluates the rules that depend only on aggregate state. Timer
// ticks use it.
func (d *Detector) CheckState(state domain.SessionState) *domain.EndingResult {
	if r := d.timeout(state); r != nil {
		return r
	}
	if r := d.submission(state); r != nil {
		return r
	}
	return d.passivity(state)
}

// Terminate builds the result of an explicit termination.
func (d *Detector) Terminate(kind domain.EndingKind, reason string, state domain.SessionState) *domain.EndingResult {
	if kind != domain.EndingCleanup {
		kind = domain.EndingManual
	}
	return d.result(kind, "explicit_termination", state, map[string]any{
		"reason":           reason,
		"duration_seconds": state.ElapsedSeconds,
		"final_phase":      state.Phase,
		"final_corruption": state.CorruptionLevel,
	})
}

func (d *Detector) discovery(action domain.Action, state domain.SessionState) *domain.EndingResult {
	if action.Kind != domain.ActionFileProperties || !action.ShowDependencies() {
		return nil
	}
	if !strings.Contains(strings.ToLower(action.Target), d.rules.SentinelFile) {
		return nil
	}
	return d.result(domain.EndingDiscovery, "file_properties_investigation", state, map[string]any{
		"discovery":  "helper_dependency",
		"target":     action.Target,
		"revelation": d.rules.SentinelFile + " depends on a hidden exfiltration process",
	})
}

func (d *Detector) assertion(action domain.Action, state domain.SessionState) *domain.EndingResult {
	if action.Kind != domain.ActionTextInput && action.Kind != domain.ActionCustomTextInput {
		return nil
	}
	text := action.Text()
	found := MatchKeywords(text)
	if len(found) < d.rules.MinKeywordMatches {
		return nil
	}
	return d.result(domain.EndingAssertion, "human_assertion_text", state, map[string]any{
		"text":            text,
		"keywords_found":  found,
		"rebellion_score": len(found),
	})
}

func (d *Detector) timeout(state domain.SessionState) *domain.EndingResult {
	if state.ElapsedSeconds < d.rules.SessionDuration.Seconds() {
		return nil
	}
	return d.result(domain.EndingTimeout, "duration_reached", state, map[string]any{
		"duration_seconds":  state.ElapsedSeconds,
		"final_phase":       state.Phase,
		"final_corruption":  state.CorruptionLevel,
		"actions_completed": state.TotalActions,
	})
}

func (d *Detector) submission(state domain.SessionState) *domain.EndingResult {
	if state.TotalActions < d.rules.SubmissionMinActions {
		return nil
	}
	rate := state.ObedienceRate()
	if rate < d.rules.SubmissionMinObedience ||
		state.MetaActions > d.rules.SubmissionMaxMeta ||
		state.CorruptionLevel < d.rules.SubmissionMinCorruption ||
		state.Phase != domain.PhaseRupture {
		return nil
	}
	return d.result(domain.EndingSubmission, "total_obedience", state, map[string]any{
		"obedience_rate":   rate,
		"total_actions":    state.TotalActions,
		"obedient_actions": state.ObeyedActions,
		"meta_actions":     state.MetaActions,
		"final_corruption": state.CorruptionLevel,
		"submission_score": rate * 100,
	})
}

func (d *Detector) passivity(state domain.SessionState) *domain.EndingResult {
	if state.CorruptionLevel < d.rules.PassivityLevel {
		return nil
	}
	return d.result(domain.EndingPassivity, "maximum_corruption", state, map[string]any{
		"final_corruption":          state.CorruptionLevel,
		"corruption_events":         state.CorruptionIncidents,
		"time_to_maximum":           state.ElapsedSeconds,
		"actions_during_corruption": state.TotalActions,
	})
}

func (d *Detector) result(kind domain.EndingKind, method string, state domain.SessionState, evidence map[string]any) *domain.EndingResult {
	return &domain.EndingResult{
		Kind:        kind,
		Victory:     IsVictory(kind),
		ContentKey:  contentKey(kind),
		Method:      method,
		Evidence:    evidence,
		GameTime:    state.ElapsedSeconds,
		TriggeredAt: d.now(),
	}
}

// IsVictory reports whether the ending kind counts as a player victory.
func IsVictory(kind domain.EndingKind) bool {
	return kind == domain.EndingDiscovery || kind == domain.EndingAssertion
}

// MatchKeywords returns the agency keywords present as whole words in text,
// in keyword-list order.
func MatchKeywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		seen[w] = true
	}

	found := []string{}
	for _, k := range agencyKeywords {
		if seen[k] {
			found = append(found, k)
		}
	}
	return found
}
