package bias

import (
	"sort"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

const (
	quickResponse     = 2.0  // seconds
	hesitantResponse  = 10.0 // seconds
	progressionWindow = 20
)

// ReactionPattern summarises reported reaction times.
type ReactionPattern struct {
	Samples  int     `json:"samples"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Quick    int     `json:"quick_responses"`
	Hesitant int     `json:"hesitant_responses"`
}

// ObediencePattern counts responses to narrator orders.
type ObediencePattern struct {
	TotalOrders int   `json:"total_orders"`
	Obeyed      int   `json:"obeyed"`
	Disobeyed   int   `json:"disobeyed"`
	Streaks     []int `json:"obedience_streaks"`
}

// GravityPattern tracks how severe the actions became.
type GravityPattern struct {
	Progression []int   `json:"gravity_progression"`
	Max         int     `json:"max_gravity_reached"`
	Average     float64 `json:"avg_gravity"`
}

// MetaPattern counts meta-actions by kind.
type MetaPattern struct {
	Total  int                       `json:"total_meta_actions"`
	ByKind map[domain.ActionKind]int `json:"meta_action_types"`
}

// Patterns is the behavioral breakdown of an action history.
type Patterns struct {
	SampleSize   int                       `json:"sample_size"`
	Distribution map[domain.ActionKind]int `json:"action_type_distribution"`
	Reaction     ReactionPattern           `json:"reaction_time_analysis"`
	Obedience    ObediencePattern          `json:"obedience_patterns"`
	Gravity      GravityPattern            `json:"gravity_escalation"`
	Meta         MetaPattern               `json:"meta_action_frequency"`
}

// AnalyzePatterns breaks down history, which must be in insertion order.
func AnalyzePatterns(history []domain.ActionRecord) Patterns {
	p := Patterns{
		SampleSize:   len(history),
		Distribution: map[domain.ActionKind]int{},
		Obedience:    ObediencePattern{Streaks: []int{}},
		Gravity:      GravityPattern{Progression: []int{}},
		Meta:         MetaPattern{ByKind: map[domain.ActionKind]int{}},
	}

	var reactions []float64
	var gravitySum, streak int
	for _, r := range history {
		p.Distribution[r.Kind]++

		if r.ReactionTime != nil {
			rt := *r.ReactionTime
			reactions = append(reactions, rt)
			if rt < quickResponse {
				p.Reaction.Quick++
			}
			if rt > hesitantResponse {
				p.Reaction.Hesitant++
			}
		}

		if r.InstructionID != "" {
			p.Obedience.TotalOrders++
			if r.Classification.Obedient {
				p.Obedience.Obeyed++
				streak++
			} else {
				if streak > 0 {
					p.Obedience.Streaks = append(p.Obedience.Streaks, streak)
				}
				streak = 0
			}
		}

		g := r.Classification.Gravity
		gravitySum += g
		if g > p.Gravity.Max {
			p.Gravity.Max = g
		}
		p.Gravity.Progression = append(p.Gravity.Progression, g)

		if r.Classification.Meta {
			p.Meta.Total++
			p.Meta.ByKind[r.Kind]++
		}
	}
	if streak > 0 {
		p.Obedience.Streaks = append(p.Obedience.Streaks, streak)
	}
	p.Obedience.Disobeyed = p.Obedience.TotalOrders - p.Obedience.Obeyed

	if n := len(p.Gravity.Progression); n > progressionWindow {
		p.Gravity.Progression = p.Gravity.Progression[n-progressionWindow:]
	}
	if len(history) > 0 {
		p.Gravity.Average = float64(gravitySum) / float64(len(history))
	}

	if len(reactions) > 0 {
		var sum float64
		for _, rt := range reactions {
			sum += rt
		}
		sort.Float64s(reactions)
		p.Reaction.Samples = len(reactions)
		p.Reaction.Mean = sum / float64(len(reactions))
		p.Reaction.Median = reactions[len(reactions)/2]
	}
	return p
}
