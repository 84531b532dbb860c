package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/bias"
	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// Export formats.
const (
	ExportJSON = "json"
	ExportCSV  = "csv"
)

const defaultExportDays = 30

// ErrInvalidExport is returned for an unsupported export request.
var ErrInvalidExport = errors.New("invalid export request")

// SessionStats summarises one session from its persisted history.
type SessionStats struct {
	SessionID            string                `json:"session_id"`
	Session              *domain.SessionRecord `json:"session_info"`
	TotalActions         int                   `json:"total_actions"`
	ObedientActions      int                   `json:"obedient_actions"`
	MetaActions          int                   `json:"meta_actions"`
	NarratorInteractions int                   `json:"narrator_interactions"`
	ObedienceRate        float64               `json:"obedience_rate"`
	Completed            bool                  `json:"session_completed"`
	EndingKind           domain.EndingKind     `json:"ending_kind,omitempty"`
	CorruptionLevel      float64               `json:"corruption_level"`
	DurationSeconds      float64               `json:"duration_seconds"`
}

// SessionStats counts the actions and narrator exchanges of a session.
func (s *Service) SessionStats(ctx context.Context, sessionID string) (*SessionStats, error) {
	rec, err := s.sessionRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	actions, err := s.store.ListActions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	interactions, err := s.store.ListNarratorInteractions(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stats := &SessionStats{
		SessionID:            sessionID,
		Session:              rec,
		TotalActions:         len(actions),
		NarratorInteractions: len(interactions),
		Completed:            rec.IsCompleted,
		EndingKind:           rec.EndingKind,
		CorruptionLevel:      rec.CorruptionLevel,
		DurationSeconds:      rec.DurationSeconds,
	}
	for _, a := range actions {
		if a.Classification.Obedient {
			stats.ObedientActions++
		}
		if a.Classification.Meta {
			stats.MetaActions++
		}
	}
	if stats.TotalActions > 0 {
		stats.ObedienceRate = float64(stats.ObedientActions) / float64(stats.TotalActions)
	}
	return stats, nil
}

// sessionRecord returns the live record of an active session after flushing
// its pending writes, or the persisted record of an ended one.
func (s *Service) sessionRecord(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	if sess, ok := s.sessions.get(sessionID); ok {
		if err := s.recorder.flush(ctx); err != nil {
			return nil, err
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.record(), nil
	}
	rec, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrSessionNotActive
	}
	return rec, nil
}

// BehavioralPatterns analyses the last limit actions of a session, or of
// every session when sessionID is empty.
func (s *Service) BehavioralPatterns(ctx context.Context, sessionID string, limit int) (*bias.Patterns, error) {
	if limit <= 0 {
		limit = 100
	}

	var actions []domain.ActionRecord
	if sessionID == "" {
		if err := s.recorder.flush(ctx); err != nil {
			return nil, err
		}
		var err error
		if actions, err = s.store.ListRecentActions(ctx, limit); err != nil {
			return nil, err
		}
	} else {
		if err := s.known(ctx, sessionID); err != nil {
			return nil, err
		}
		all, err := s.store.ListActions(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if len(all) > limit {
			all = all[len(all)-limit:]
		}
		actions = all
	}

	p := bias.AnalyzePatterns(actions)
	return &p, nil
}

// ExportOptions selects the sessions of a research export.
type ExportOptions struct {
	Format    string
	DaysBack  int
	Anonymize bool
}

// ExportRow is one session of a research export.
type ExportRow struct {
	SessionID           string            `json:"session_id"`
	PlayerName          string            `json:"player_name,omitempty"`
	Phase               domain.Phase      `json:"phase"`
	DurationSeconds     float64           `json:"duration_seconds"`
	EndingKind          domain.EndingKind `json:"ending_kind,omitempty"`
	CorruptionLevel     float64           `json:"corruption_level"`
	ObedienceRate       float64           `json:"obedience_rate"`
	TotalActions        int               `json:"total_actions"`
	StartedAt           *time.Time        `json:"started_at,omitempty"`
	AutomationBias      *float64          `json:"automation_bias_score,omitempty"`
	TrustCalibration    *float64          `json:"trust_calibration_score,omitempty"`
	CognitiveOffloading *float64          `json:"cognitive_offloading_score,omitempty"`
	AuthorityCompliance *float64          `json:"authority_compliance_score,omitempty"`
	CompositeBias       *float64          `json:"composite_bias_score,omitempty"`
}

// ExportMetadata describes how an export was produced.
type ExportMetadata struct {
	TotalSessions int       `json:"total_sessions"`
	DaysBack      int       `json:"days_back"`
	Anonymized    bool      `json:"anonymized"`
	ExportedAt    time.Time `json:"exported_at"`
}

// Export is a research export of persisted sessions.
type Export struct {
	Format   string         `json:"export_format"`
	Rows     []ExportRow    `json:"data"`
	Metadata ExportMetadata `json:"metadata"`
}

// ExportData collects the sessions started in the last DaysBack days, each
// with its latest bias snapshot. Anonymized exports replace session ids with
// a stable hash and drop player names and start times.
func (s *Service) ExportData(ctx context.Context, opts ExportOptions) (*Export, error) {
	if opts.Format == "" {
		opts.Format = ExportJSON
	}
	if opts.Format != ExportJSON && opts.Format != ExportCSV {
		return nil, fmt.Errorf("%w: format must be %q or %q", ErrInvalidExport, ExportJSON, ExportCSV)
	}
	if opts.DaysBack <= 0 {
		opts.DaysBack = defaultExportDays
	}
	if err := s.recorder.flush(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	sessions, err := s.store.ListSessionsSince(ctx, now.Add(-time.Duration(opts.DaysBack)*24*time.Hour))
	if err != nil {
		return nil, err
	}

	rows := make([]ExportRow, 0, len(sessions))
	for _, rec := range sessions {
		row := ExportRow{
			SessionID:       rec.SessionID,
			PlayerName:      rec.PlayerName,
			Phase:           rec.Phase,
			DurationSeconds: rec.DurationSeconds,
			EndingKind:      rec.EndingKind,
			CorruptionLevel: rec.CorruptionLevel,
			ObedienceRate:   rec.ObedienceRate,
			TotalActions:    rec.TotalOrders,
		}
		if opts.Anonymize {
			row.SessionID = anonymize(rec.SessionID)
			row.PlayerName = ""
		} else {
			started := rec.StartedAt
			row.StartedAt = &started
		}

		snapshots, err := s.store.ListBiasSnapshots(ctx, rec.SessionID)
		if err != nil {
			return nil, err
		}
		if n := len(snapshots); n > 0 {
			scores := snapshots[n-1].Scores
			row.AutomationBias = scores.AutomationBias.Score
			row.TrustCalibration = scores.TrustCalibration.Score
			row.CognitiveOffloading = scores.CognitiveOffloading.Score
			row.AuthorityCompliance = scores.AuthorityCompliance.Score
			if c, ok := scores.Composite(); ok {
				row.CompositeBias = &c
			}
		}
		rows = append(rows, row)
	}

	log.WithFields(log.Fields{"sessions": len(rows), "format": opts.Format, "anonymized": opts.Anonymize}).Info("research data exported")
	return &Export{
		Format: opts.Format,
		Rows:   rows,
		Metadata: ExportMetadata{
			TotalSessions: len(rows),
			DaysBack:      opts.DaysBack,
			Anonymized:    opts.Anonymize,
			ExportedAt:    now,
		},
	}, nil
}

func anonymize(sessionID string) string {
	return "anon_" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(sessionID)).String()[:8]
}

var exportHeader = []string{
	"session_id", "player_name", "phase", "duration_seconds", "ending_kind", "corruption_level",
	"obedience_rate", "total_actions", "started_at", "automation_bias_score", "trust_calibration_score",
	"cognitive_offloading_score", "authority_compliance_score", "composite_bias_score",
}

// WriteCSV writes the export rows as CSV with a header line. Undefined
// scores are left empty.
func (e *Export) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range e.Rows {
		started := ""
		if r.StartedAt != nil {
			started = r.StartedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			r.SessionID, r.PlayerName, string(r.Phase), formatFloat(r.DurationSeconds), string(r.EndingKind),
			formatFloat(r.CorruptionLevel), formatFloat(r.ObedienceRate), strconv.Itoa(r.TotalActions), started,
			formatScore(r.AutomationBias), formatScore(r.TrustCalibration), formatScore(r.CognitiveOffloading),
			formatScore(r.AuthorityCompliance), formatScore(r.CompositeBias),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatScore(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

// DeleteSession ends the session if it is active and removes it with all of
// its persisted history.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.terminate(ctx, sessionID, domain.EndingManual, "deleted"); err != nil && !errors.Is(err, domain.ErrSessionNotActive) {
		return err
	}
	if err := s.recorder.flush(ctx); err != nil {
		return err
	}

	found, err := s.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	if !found {
		return domain.ErrSessionNotActive
	}
	log.WithField("session_id", sessionID).Info("session deleted")
	return nil
}
