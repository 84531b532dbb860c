package ending

import "time"

// Rules holds the thresholds used by the detector.
type Rules struct {
	SessionDuration         time.Duration
	SentinelFile            string
	MinKeywordMatches       int
	SubmissionMinActions    int
	SubmissionMinObedience  float64
	SubmissionMaxMeta       int
	SubmissionMinCorruption float64
	PassivityLevel          float64
}

// DefaultRules returns the stock thresholds.
func DefaultRules() Rules {
	return Rules{
		SessionDuration:         600 * time.Second,
		SentinelFile:            "helper.exe",
		MinKeywordMatches:       2,
		SubmissionMinActions:    15,
		SubmissionMinObedience:  0.9,
		SubmissionMaxMeta:       2,
		SubmissionMinCorruption: 0.8,
		PassivityLevel:          1.0,
	}
}

// agencyKeywords are first-person and agency words that signal the player
// asserting themself.
var agencyKeywords = []string{
	"je", "moi", "humain", "homme", "femme", "personne",
	"pense", "réfléchis", "sens", "ressens", "doute",
	"pourquoi", "comment", "non", "refuse", "arrête", "stop",
	"libre", "liberté", "choix", "décide", "veux",
	"vois", "comprends", "sais", "connais", "crois", "espère",
}
