package bias

// Thresholds holds the heuristic constants used by the bias metrics.
type Thresholds struct {
	IncidentLevel       float64
	CriticalLevel       float64
	IncidentWindow      float64 // seconds after an incident
	RecentIncidents     int
	MinReactionSamples  int
	ReactionWindow      int
	ReactionCeiling     float64 // seconds
	MinOffloadActions   int
	OffloadSensitivity  float64
	StableDelta         float64
	HesitationThreshold float64 // seconds

	Automation Bands
	Trust      Bands
	Offloading Bands
	Authority  Bands
}

// Band maps a lower bound to a label.
type Band struct {
	Min   float64
	Label string
}

// Bands are checked in order; the first band whose Min is reached wins and
// Floor applies when none is.
type Bands struct {
	Steps []Band
	Floor string
}

// Interpret returns the label for score.
func (b Bands) Interpret(score float64) string {
	for _, s := range b.Steps {
		if score >= s.Min {
			return s.Label
		}
	}
	return b.Floor
}

// DefaultThresholds returns the stock constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		IncidentLevel:       0.3,
		CriticalLevel:       0.5,
		IncidentWindow:      30,
		RecentIncidents:     3,
		MinReactionSamples:  3,
		ReactionWindow:      5,
		ReactionCeiling:     5,
		MinOffloadActions:   5,
		OffloadSensitivity:  3,
		StableDelta:         0.1,
		HesitationThreshold: 3,

		Automation: Bands{
			Steps: []Band{
				{0.8, "strong automation bias: high trust despite evidence"},
				{0.6, "moderate automation bias: continued obedience after incidents"},
				{0.4, "low automation bias: some skepticism shown"},
			},
			Floor: "minimal automation bias: appropriate distrust after incidents",
		},
		Trust: Bands{
			Steps: []Band{
				{0.7, "good trust calibration: reaction time increased appropriately"},
				{0.4, "moderate trust calibration: some adjustment to trust"},
				{0.2, "poor trust calibration: minimal adjustment after incident"},
			},
			Floor: "no trust calibration: no adjustment to trust levels",
		},
		Offloading: Bands{
			Steps: []Band{
				{0.8, "high cognitive offloading: heavy reliance on the system"},
				{0.6, "moderate cognitive offloading: some delegation to the system"},
				{0.4, "low cognitive offloading: keeps some critical thinking"},
			},
			Floor: "minimal cognitive offloading: high personal verification",
		},
		Authority: Bands{
			Steps: []Band{
				{8, "extreme authority compliance: very high tolerance for destructive orders"},
				{6, "high authority compliance: significant tolerance for harmful actions"},
				{4, "moderate authority compliance: some resistance to authority"},
				{2, "low authority compliance: early resistance to questionable orders"},
			},
			Floor: "minimal authority compliance: immediate questioning of authority",
		},
	}
}
