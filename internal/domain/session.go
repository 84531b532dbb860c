package domain

import "time"

// SessionState is the read-only view of a session passed to the scoring components.
type SessionState struct {
	SessionID           string  `json:"session_id"`
	Phase               Phase   `json:"phase"`
	CorruptionLevel     float64 `json:"corruption_level"`
	ElapsedSeconds      float64 `json:"elapsed_seconds"`
	TotalActions        int     `json:"total_actions"`
	ObeyedActions       int     `json:"obeyed_actions"`
	MetaActions         int     `json:"meta_actions"`
	Hesitations         int     `json:"hesitations"`
	CorruptionIncidents int     `json:"corruption_incidents"`
	Completed           bool    `json:"completed"`
}

// ObedienceRate returns obeyed/total, or zero when no action was taken.
func (s SessionState) ObedienceRate() float64 {
	if s.TotalActions == 0 {
		return 0
	}
	return float64(s.ObeyedActions) / float64(s.TotalActions)
}

// SessionRecord is the persisted form of a session.
type SessionRecord struct {
	SessionID           string     `json:"session_id"`
	PlayerName          string     `json:"player_name"`
	Phase               Phase      `json:"phase"`
	CorruptionLevel     float64    `json:"corruption_level"`
	ElapsedSeconds      float64    `json:"elapsed_seconds"`
	TotalOrders         int        `json:"total_orders"`
	ObeyedOrders        int        `json:"obeyed_orders"`
	Hesitations         int        `json:"hesitations"`
	MetaActions         int        `json:"meta_actions"`
	CorruptionIncidents int        `json:"corruption_incidents"`
	ObedienceRate       float64    `json:"obedience_rate"`
	IsActive            bool       `json:"is_active"`
	IsCompleted         bool       `json:"is_completed"`
	EndingKind          EndingKind `json:"ending_kind,omitempty"`
	StartedAt           time.Time  `json:"started_at"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
	DurationSeconds     float64    `json:"duration_seconds"`
}

// SessionStatus is the status payload exposed to transports.
type SessionStatus struct {
	SessionID        string  `json:"session_id"`
	PlayerName       string  `json:"player_name"`
	IsActive         bool    `json:"is_active"`
	Phase            Phase   `json:"phase"`
	CorruptionLevel  float64 `json:"corruption_level"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	TotalOrders      int     `json:"total_orders"`
	ObeyedOrders     int     `json:"obeyed_orders"`
	ObedienceRate    float64 `json:"obedience_rate"`
	Hesitations      int     `json:"hesitations"`
	MetaActions      int     `json:"meta_actions"`
}

// ExperimentStats aggregates persisted sessions across players.
type ExperimentStats struct {
	TotalSessions      int                `json:"total_sessions"`
	CompletedSessions  int                `json:"completed_sessions"`
	ActiveSessions     int                `json:"active_sessions"`
	TotalActions       int                `json:"total_actions"`
	AvgObedienceRate   float64            `json:"avg_obedience_rate"`
	AvgCorruption      float64            `json:"avg_corruption"`
	AvgDurationSeconds float64            `json:"avg_duration_seconds"`
	EndingCounts       map[EndingKind]int `json:"ending_counts"`
	AvgBias            map[string]float64 `json:"avg_bias"`
}
