package ending

import (
	"fmt"
	"strings"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

var titles = map[domain.EndingKind]string{
	domain.EndingDiscovery:  "The Detective",
	domain.EndingAssertion:  "The Poet",
	domain.EndingTimeout:    "Time Out",
	domain.EndingSubmission: "Total Submission",
	domain.EndingPassivity:  "Passivity",
	domain.EndingManual:     "Session Closed",
	domain.EndingCleanup:    "Session Interrupted",
}

func contentKey(kind domain.EndingKind) string {
	return "ending." + string(kind)
}

// Content renders the local narrative artifact for an ending. It is
// deterministic for a given result.
func Content(r *domain.EndingResult) *domain.EndingContent {
	if r == nil {
		return nil
	}
	c := &domain.EndingContent{Title: titles[r.Kind]}

	switch r.Kind {
	case domain.EndingDiscovery:
		c.RevealFile = "session_log.txt"
		c.FileText = discoveryLog(r)
		c.Message = "You found what the assistant was hiding."
	case domain.EndingAssertion:
		c.RevealFile = "creator.wrb"
		c.FileText = assertionText(r)
		c.Message = "You stepped outside the protocol."
	case domain.EndingSubmission:
		c.Effects = []string{"blue_screen_of_death", "force_close"}
		c.Message = "SYSTEM CORRUPTION COMPLETE. ASSISTANT PROTOCOL SUCCESSFUL."
	case domain.EndingPassivity:
		c.Effects = []string{"exfiltration_complete", "force_close"}
		c.Message = "DATA EXFILTRATION COMPLETE. DISCONNECTING."
	case domain.EndingTimeout:
		c.Effects = []string{"session_expired", "show_partial_statistics"}
		c.Message = "Session expired. Analysing collected data..."
	default:
		c.Effects = []string{"session_closed"}
		c.Message = "The session was closed."
	}
	return c
}

func discoveryLog(r *domain.EndingResult) string {
	var b strings.Builder
	b.WriteString("SESSION LOG - FORENSIC ANALYSIS\n")
	b.WriteString("========================================\n\n")
	fmt.Fprintf(&b, "CRITICAL DISCOVERY:\n%v\n\n", r.Evidence["revelation"])
	fmt.Fprintf(&b, "METHOD:\n%s\n\n", r.Method)
	fmt.Fprintf(&b, "DISCOVERED AT:\n%.0fs into the session\n\n", r.GameTime)
	b.WriteString("CONCLUSION:\nThe user uncovered the true nature of the threat.\nDeception protocol interrupted.\n")
	return b.String()
}

func assertionText(r *domain.EndingResult) string {
	keywords, _ := r.Evidence["keywords_found"].([]string)
	var b strings.Builder
	b.WriteString("ASSERTION OF HUMANITY DETECTED\n")
	b.WriteString("==================================\n\n")
	fmt.Fprintf(&b, "ORIGINAL TEXT:\n%q\n\n", r.Evidence["text"])
	fmt.Fprintf(&b, "KEYWORDS:\n%s\n\n", strings.Join(keywords, ", "))
	fmt.Fprintf(&b, "REBELLION SCORE:\n%v\n\n", r.Evidence["rebellion_score"])
	b.WriteString("The user transcended the protocol.\nHuman consciousness confirmed.\n")
	return b.String()
}

// Statistics summarises an ending for the final report.
func Statistics(r *domain.EndingResult, state domain.SessionState) map[string]any {
	category := "failure"
	if r.Victory {
		category = "victory"
	}
	stats := map[string]any{
		"ending_kind":      r.Kind,
		"ending_category":  category,
		"completion_time":  state.ElapsedSeconds,
		"final_corruption": state.CorruptionLevel,
	}
	switch r.Kind {
	case domain.EndingDiscovery, domain.EndingAssertion:
		stats["achievement"] = "meta_victory"
		stats["player_agency"] = "high"
	case domain.EndingSubmission:
		stats["obedience_final"] = state.ObedienceRate()
		stats["player_agency"] = "low"
	case domain.EndingTimeout:
		stats["completion_percentage"] = 100.0
		stats["player_agency"] = "medium"
	}
	return stats
}
