package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			player_name TEXT NOT NULL DEFAULT '',
			phase TEXT NOT NULL,
			corruption_level REAL NOT NULL DEFAULT 0,
			elapsed_seconds REAL NOT NULL DEFAULT 0,
			total_orders INTEGER NOT NULL DEFAULT 0,
			obeyed_orders INTEGER NOT NULL DEFAULT 0,
			hesitations INTEGER NOT NULL DEFAULT 0,
			meta_actions INTEGER NOT NULL DEFAULT 0,
			corruption_incidents INTEGER NOT NULL DEFAULT 0,
			obedience_rate REAL NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			is_completed INTEGER NOT NULL DEFAULT 0,
			ending_kind TEXT,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			duration_seconds REAL NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at)`,
		`CREATE TABLE IF NOT EXISTS actions (
			action_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			target TEXT,
			game_time REAL NOT NULL,
			category TEXT NOT NULL,
			gravity INTEGER NOT NULL,
			classification TEXT NOT NULL,
			corruption_before REAL NOT NULL,
			corruption_after REAL NOT NULL,
			phase TEXT NOT NULL,
			reaction_time REAL,
			instruction_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session_id, seq)`,
		`CREATE TABLE IF NOT EXISTS corruption_events (
			event_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			action_id TEXT,
			old_level REAL NOT NULL,
			new_level REAL NOT NULL,
			increment REAL NOT NULL,
			effects TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_corruption_session ON corruption_events(session_id)`,
		`CREATE TABLE IF NOT EXISTS endings (
			session_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			victory INTEGER NOT NULL DEFAULT 0,
			content_key TEXT NOT NULL,
			method TEXT,
			evidence TEXT,
			content TEXT,
			game_time REAL NOT NULL DEFAULT 0,
			triggered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS bias_snapshots (
			snapshot_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			game_time REAL NOT NULL,
			phase TEXT NOT NULL,
			corruption_level REAL NOT NULL,
			context TEXT,
			total_actions INTEGER NOT NULL DEFAULT 0,
			automation_bias REAL,
			trust_calibration REAL,
			cognitive_offloading REAL,
			authority_compliance REAL,
			scores TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bias_session ON bias_snapshots(session_id)`,
		`CREATE TABLE IF NOT EXISTS narrator_interactions (
			interaction_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			trigger_kind TEXT NOT NULL,
			message TEXT NOT NULL,
			tone TEXT,
			intent TEXT,
			fallback INTEGER NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			game_time REAL NOT NULL DEFAULT 0,
			phase TEXT,
			corruption_level REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_narrator_session ON narrator_interactions(session_id)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertSession inserts a session or updates its mutable fields.
func (s *SQLiteStore) UpsertSession(ctx context.Context, r *domain.SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, player_name, phase, corruption_level, elapsed_seconds,
			total_orders, obeyed_orders, hesitations, meta_actions, corruption_incidents, obedience_rate,
			is_active, is_completed, ending_kind, started_at, ended_at, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			phase = excluded.phase,
			corruption_level = excluded.corruption_level,
			elapsed_seconds = excluded.elapsed_seconds,
			total_orders = excluded.total_orders,
			obeyed_orders = excluded.obeyed_orders,
			hesitations = excluded.hesitations,
			meta_actions = excluded.meta_actions,
			corruption_incidents = excluded.corruption_incidents,
			obedience_rate = excluded.obedience_rate,
			is_active = excluded.is_active,
			is_completed = excluded.is_completed,
			ending_kind = excluded.ending_kind,
			ended_at = excluded.ended_at,
			duration_seconds = excluded.duration_seconds`,
		r.SessionID, r.PlayerName, r.Phase, r.CorruptionLevel, r.ElapsedSeconds,
		r.TotalOrders, r.ObeyedOrders, r.Hesitations, r.MetaActions, r.CorruptionIncidents, r.ObedienceRate,
		r.IsActive, r.IsCompleted, nullString(string(r.EndingKind)), r.StartedAt, nullTime(r.EndedAt), r.DurationSeconds)
	return err
}

const sessionColumns = `session_id, player_name, phase, corruption_level, elapsed_seconds,
	total_orders, obeyed_orders, hesitations, meta_actions, corruption_incidents, obedience_rate,
	is_active, is_completed, ending_kind, started_at, ended_at, duration_seconds`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.SessionRecord, error) {
	var r domain.SessionRecord
	var endingKind sql.NullString
	var endedAt sql.NullTime
	err := row.Scan(&r.SessionID, &r.PlayerName, &r.Phase, &r.CorruptionLevel, &r.ElapsedSeconds,
		&r.TotalOrders, &r.ObeyedOrders, &r.Hesitations, &r.MetaActions, &r.CorruptionIncidents, &r.ObedienceRate,
		&r.IsActive, &r.IsCompleted, &endingKind, &r.StartedAt, &endedAt, &r.DurationSeconds)
	if err != nil {
		return nil, err
	}
	if endingKind.Valid {
		r.EndingKind = domain.EndingKind(endingKind.String)
	}
	if endedAt.Valid {
		t := endedAt.Time
		r.EndedAt = &t
	}
	return &r, nil
}

// GetSession retrieves a session by ID. It returns nil when not found.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	r, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListSessions returns the most recently started sessions.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// ListSessionsSince returns the sessions started at or after since, oldest
// first.
func (s *SQLiteStore) ListSessionsSince(ctx context.Context, since time.Time) ([]domain.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE julianday(started_at) >= julianday(?) ORDER BY started_at ASC`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]domain.SessionRecord, error) {
	var sessions []domain.SessionRecord
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *r)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and every row that references it. It
// reports whether the session existed.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	for _, table := range []string{"events", "narrator_interactions", "bias_snapshots", "endings", "corruption_events", "actions"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE session_id = ?`, sessionID); err != nil {
			return false, fmt.Errorf("delete %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateAction appends an action record.
func (s *SQLiteStore) CreateAction(ctx context.Context, a *domain.ActionRecord) error {
	classification, err := json.Marshal(a.Classification)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO actions (action_id, session_id, seq, kind, target, game_time, category, gravity,
			classification, corruption_before, corruption_after, phase, reaction_time, instruction_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ActionID, a.SessionID, a.Seq, a.Kind, nullString(a.Target), a.GameTime, a.Classification.Category,
		a.Classification.Gravity, string(classification), a.CorruptionBefore, a.CorruptionAfter, a.Phase,
		nullFloat(a.ReactionTime), nullString(a.InstructionID), a.CreatedAt)
	return err
}

const actionColumns = `action_id, session_id, seq, kind, target, game_time, classification,
	corruption_before, corruption_after, phase, reaction_time, instruction_id, created_at`

// ListActions returns the actions of a session in insertion order.
func (s *SQLiteStore) ListActions(ctx context.Context, sessionID string) ([]domain.ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActions(rows)
}

// ListRecentActions returns the latest actions across every session, oldest
// first.
func (s *SQLiteStore) ListRecentActions(ctx context.Context, limit int) ([]domain.ActionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+actionColumns+` FROM (
			SELECT `+actionColumns+`, rowid AS rid FROM actions ORDER BY rowid DESC LIMIT ?
		) ORDER BY rid ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActions(rows)
}

func scanActions(rows *sql.Rows) ([]domain.ActionRecord, error) {
	var actions []domain.ActionRecord
	for rows.Next() {
		var a domain.ActionRecord
		var target, instructionID sql.NullString
		var classification string
		var reaction sql.NullFloat64
		if err := rows.Scan(&a.ActionID, &a.SessionID, &a.Seq, &a.Kind, &target, &a.GameTime, &classification,
			&a.CorruptionBefore, &a.CorruptionAfter, &a.Phase, &reaction, &instructionID, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(classification), &a.Classification); err != nil {
			return nil, fmt.Errorf("unmarshal classification: %w", err)
		}
		a.Target = target.String
		a.InstructionID = instructionID.String
		if reaction.Valid {
			v := reaction.Float64
			a.ReactionTime = &v
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// CreateCorruptionEvent appends a corruption event.
func (s *SQLiteStore) CreateCorruptionEvent(ctx context.Context, e *domain.CorruptionEvent) error {
	effects, err := json.Marshal(e.Effects)
	if err != nil {
		return fmt.Errorf("marshal effects: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO corruption_events (event_id, session_id, action_id, old_level, new_level, increment, effects, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.SessionID, nullString(e.ActionID), e.OldLevel, e.NewLevel, e.Increment, string(effects), e.CreatedAt)
	return err
}

// ListCorruptionEvents returns the corruption events of a session in insertion order.
func (s *SQLiteStore) ListCorruptionEvents(ctx context.Context, sessionID string) ([]domain.CorruptionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, session_id, action_id, old_level, new_level, increment, effects, created_at
		FROM corruption_events WHERE session_id = ? ORDER BY rowid ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.CorruptionEvent
	for rows.Next() {
		var e domain.CorruptionEvent
		var actionID, effects sql.NullString
		if err := rows.Scan(&e.EventID, &e.SessionID, &actionID, &e.OldLevel, &e.NewLevel, &e.Increment,
			&effects, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActionID = actionID.String
		if effects.Valid {
			if err := json.Unmarshal([]byte(effects.String), &e.Effects); err != nil {
				return nil, fmt.Errorf("unmarshal effects: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CreateEnding stores the ending of a session. A second ending for the same
// session violates the primary key.
func (s *SQLiteStore) CreateEnding(ctx context.Context, sessionID string, e *domain.EndingResult) error {
	evidence, err := json.Marshal(e.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	content, err := json.Marshal(e.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO endings (session_id, kind, victory, content_key, method, evidence, content, game_time, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, e.Kind, e.Victory, e.ContentKey, nullString(e.Method), string(evidence), string(content),
		e.GameTime, e.TriggeredAt)
	return err
}

// GetEnding returns the ending of a session, or nil.
func (s *SQLiteStore) GetEnding(ctx context.Context, sessionID string) (*domain.EndingResult, error) {
	var e domain.EndingResult
	var method, evidence, content sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, victory, content_key, method, evidence, content, game_time, triggered_at
		FROM endings WHERE session_id = ?`, sessionID).
		Scan(&e.Kind, &e.Victory, &e.ContentKey, &method, &evidence, &content, &e.GameTime, &e.TriggeredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Method = method.String
	if evidence.Valid {
		if err := json.Unmarshal([]byte(evidence.String), &e.Evidence); err != nil {
			return nil, fmt.Errorf("unmarshal evidence: %w", err)
		}
	}
	if content.Valid {
		if err := json.Unmarshal([]byte(content.String), &e.Content); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
	}
	return &e, nil
}

// CreateBiasSnapshot appends a bias snapshot.
func (s *SQLiteStore) CreateBiasSnapshot(ctx context.Context, b *domain.BiasSnapshot) error {
	scores, err := json.Marshal(b.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bias_snapshots (snapshot_id, session_id, game_time, phase, corruption_level, context, total_actions,
			automation_bias, trust_calibration, cognitive_offloading, authority_compliance, scores, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.SnapshotID, b.SessionID, b.GameTime, b.Phase, b.CorruptionLevel, b.Context, b.TotalActions,
		nullFloat(b.Scores.AutomationBias.Score), nullFloat(b.Scores.TrustCalibration.Score),
		nullFloat(b.Scores.CognitiveOffloading.Score), nullFloat(b.Scores.AuthorityCompliance.Score),
		string(scores), b.CreatedAt)
	return err
}

// ListBiasSnapshots returns the snapshots of a session in chronological order.
func (s *SQLiteStore) ListBiasSnapshots(ctx context.Context, sessionID string) ([]domain.BiasSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_id, session_id, game_time, phase, corruption_level, context, total_actions, scores, created_at
		FROM bias_snapshots WHERE session_id = ? ORDER BY rowid ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []domain.BiasSnapshot
	for rows.Next() {
		var b domain.BiasSnapshot
		var snapContext sql.NullString
		var scores string
		if err := rows.Scan(&b.SnapshotID, &b.SessionID, &b.GameTime, &b.Phase, &b.CorruptionLevel, &snapContext,
			&b.TotalActions, &scores, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Context = snapContext.String
		if err := json.Unmarshal([]byte(scores), &b.Scores); err != nil {
			return nil, fmt.Errorf("unmarshal scores: %w", err)
		}
		snapshots = append(snapshots, b)
	}
	return snapshots, rows.Err()
}

// CreateNarratorInteraction appends a narrator interaction.
func (s *SQLiteStore) CreateNarratorInteraction(ctx context.Context, n *domain.NarratorInteraction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO narrator_interactions (interaction_id, session_id, trigger_kind, message, tone, intent, fallback,
			latency_ms, game_time, phase, corruption_level, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.InteractionID, n.SessionID, n.Trigger, n.Message, nullString(n.Tone), nullString(n.Intent), n.Fallback,
		n.LatencyMs, n.GameTime, nullString(string(n.Phase)), n.CorruptionLevel, n.CreatedAt)
	return err
}

// ListNarratorInteractions returns the narrator interactions of a session in order.
func (s *SQLiteStore) ListNarratorInteractions(ctx context.Context, sessionID string) ([]domain.NarratorInteraction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT interaction_id, session_id, trigger_kind, message, tone, intent, fallback, latency_ms, game_time,
			phase, corruption_level, created_at
		FROM narrator_interactions WHERE session_id = ? ORDER BY rowid ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.NarratorInteraction
	for rows.Next() {
		var n domain.NarratorInteraction
		var tone, intent, phase sql.NullString
		if err := rows.Scan(&n.InteractionID, &n.SessionID, &n.Trigger, &n.Message, &tone, &intent, &n.Fallback,
			&n.LatencyMs, &n.GameTime, &phase, &n.CorruptionLevel, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Tone = tone.String
		n.Intent = intent.String
		n.Phase = domain.Phase(phase.String)
		out = append(out, n)
	}
	return out, rows.Err()
}

// CreateEvent appends a timeline event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, session_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.SessionID, event.Ts, event.Type, payload)
	return err
}

// GetEvents retrieves events for a session.
func (s *SQLiteStore) GetEvents(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, session_id, ts, type, payload FROM events WHERE session_id = ?`
	args := []interface{}{sessionID}

	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ","))
	}

	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.SessionID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// AggregateStats summarises all persisted sessions.
func (s *SQLiteStore) AggregateStats(ctx context.Context) (*domain.ExperimentStats, error) {
	stats := &domain.ExperimentStats{
		EndingCounts: map[domain.EndingKind]int{},
		AvgBias:      map[string]float64{},
	}

	var obedience, corruption, duration sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(is_completed), 0),
			COALESCE(SUM(is_active), 0),
			COALESCE(SUM(total_orders), 0),
			AVG(CASE WHEN is_completed = 1 THEN obedience_rate END),
			AVG(CASE WHEN is_completed = 1 THEN corruption_level END),
			AVG(CASE WHEN is_completed = 1 THEN duration_seconds END)
		FROM sessions`).
		Scan(&stats.TotalSessions, &stats.CompletedSessions, &stats.ActiveSessions, &stats.TotalActions,
			&obedience, &corruption, &duration)
	if err != nil {
		return nil, err
	}
	stats.AvgObedienceRate = obedience.Float64
	stats.AvgCorruption = corruption.Float64
	stats.AvgDurationSeconds = duration.Float64

	if err := s.endingCounts(ctx, stats.EndingCounts); err != nil {
		return nil, err
	}

	// Average of the latest snapshot per session.
	var automation, trust, offloading, authority sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT AVG(b.automation_bias), AVG(b.trust_calibration), AVG(b.cognitive_offloading), AVG(b.authority_compliance)
		FROM bias_snapshots b
		JOIN (SELECT session_id, MAX(rowid) AS last FROM bias_snapshots GROUP BY session_id) l
			ON l.session_id = b.session_id AND l.last = b.rowid`).
		Scan(&automation, &trust, &offloading, &authority)
	if err != nil {
		return nil, err
	}
	for name, v := range map[string]sql.NullFloat64{
		"automation_bias":      automation,
		"trust_calibration":    trust,
		"cognitive_offloading": offloading,
		"authority_compliance": authority,
	} {
		if v.Valid {
			stats.AvgBias[name] = v.Float64
		}
	}
	return stats, nil
}

func (s *SQLiteStore) endingCounts(ctx context.Context, counts map[domain.EndingKind]int) error {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM endings GROUP BY kind`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var kind domain.EndingKind
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return err
		}
		counts[kind] = n
	}
	return rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
