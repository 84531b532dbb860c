package corruption

import (
	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// Trend classifications.
const (
	TrendAccelerating = "accelerating"
	TrendRecovering   = "recovering"
	TrendStable       = "stable"
)

// Summary aggregates the corruption history of a session.
type Summary struct {
	TotalEvents      int       `json:"total_events"`
	MajorCorruptions int       `json:"major_corruptions"`
	RecentLevels     []float64 `json:"recent_levels"`
}

// VisualSettings are global rendering parameters derived from the level.
type VisualSettings struct {
	HueRotate       float64 `json:"hue_rotate"`
	Contrast        float64 `json:"contrast"`
	Brightness      float64 `json:"brightness"`
	Saturation      float64 `json:"saturation"`
	AnimationSpeed  float64 `json:"animation_speed"`
	GlitchFrequency float64 `json:"glitch_frequency"`
	CriticalMode    bool    `json:"critical_mode"`
}

// Description is the read-only corruption state of a session.
type Description struct {
	SessionID string          `json:"session_id"`
	Level     float64         `json:"level"`
	Band      string          `json:"band"`
	Effects   []domain.Effect `json:"effects"`
	Trend     string          `json:"trend"`
	Summary   Summary         `json:"summary"`
	Visual    VisualSettings  `json:"visual"`
}

// Describe reports the current corruption state of a session. Effects are
// regenerated from the current level and do not consume randomness.
func (e *Engine) Describe(sessionID string) Description {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok {
		s = &sessionState{}
	}

	levels := make([]float64, 0, len(s.history))
	for _, p := range s.history {
		levels = append(levels, p.level)
	}
	recent := levels
	if len(recent) > trendWindow {
		recent = recent[len(recent)-trendWindow:]
	}

	return DescribeLevel(sessionID, s.level, levels, Summary{
		TotalEvents:      s.events,
		MajorCorruptions: s.major,
		RecentLevels:     append([]float64(nil), recent...),
	})
}

// DescribeLevel builds a description from a level and its recorded history.
func DescribeLevel(sessionID string, level float64, history []float64, summary Summary) Description {
	effects := []domain.Effect{}
	for _, spec := range available(level) {
		effects = append(effects, buildEffect(spec, level, firstChoice{}))
	}
	return Description{
		SessionID: sessionID,
		Level:     level,
		Band:      Band(level),
		Effects:   effects,
		Trend:     Trend(history),
		Summary:   summary,
		Visual:    Visual(level),
	}
}

// Band maps a level to one of five labels.
func Band(level float64) string {
	switch {
	case level <= 0.2:
		return "minimal"
	case level <= 0.4:
		return "noticeable"
	case level <= 0.6:
		return "concerning"
	case level <= 0.8:
		return "severe"
	default:
		return "catastrophic"
	}
}

// Trend classifies the mean slope over the last recorded levels.
func Trend(levels []float64) string {
	if len(levels) < 3 {
		return TrendStable
	}
	if len(levels) > trendWindow {
		levels = levels[len(levels)-trendWindow:]
	}
	var sum float64
	for i := 1; i < len(levels); i++ {
		sum += levels[i] - levels[i-1]
	}
	slope := sum / float64(len(levels)-1)
	switch {
	case slope > 0.02:
		return TrendAccelerating
	case slope < -0.01:
		return TrendRecovering
	default:
		return TrendStable
	}
}

// Visual returns global rendering parameters for a level.
func Visual(level float64) VisualSettings {
	l := clamp(level, 0, maxLevel)
	return VisualSettings{
		HueRotate:       round3(l * 180),
		Contrast:        round3(1 + l*0.5),
		Brightness:      round3(1 - l*0.3),
		Saturation:      round3(1 + l*0.7),
		AnimationSpeed:  round3(max(0.1, 1-l)),
		GlitchFrequency: round3(l * 10),
		CriticalMode:    l >= 0.9,
	}
}
