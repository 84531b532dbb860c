package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func seedSession(t *testing.T, store *SQLiteStore, id string) *domain.SessionRecord {
	t.Helper()
	r := &domain.SessionRecord{
		SessionID:  id,
		PlayerName: "ada",
		Phase:      domain.PhaseAdhesion,
		IsActive:   true,
		StartedAt:  time.Now().UTC(),
	}
	if err := store.UpsertSession(context.Background(), r); err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}
	return r
}

func TestSQLiteStoreSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	r := seedSession(t, store, "s1")

	ended := r.StartedAt.Add(4 * time.Minute)
	r.Phase = domain.PhaseDissonance
	r.CorruptionLevel = 0.425
	r.ElapsedSeconds = 240
	r.TotalOrders = 7
	r.ObeyedOrders = 5
	r.Hesitations = 2
	r.MetaActions = 1
	r.CorruptionIncidents = 3
	r.ObedienceRate = 5.0 / 7.0
	r.IsActive = false
	r.IsCompleted = true
	r.EndingKind = domain.EndingSubmission
	r.EndedAt = &ended
	r.DurationSeconds = 240
	if err := store.UpsertSession(ctx, r); err != nil {
		t.Fatalf("UpsertSession update failed: %v", err)
	}

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatalf("expected session")
	}
	if got.Phase != domain.PhaseDissonance || got.CorruptionLevel != 0.425 {
		t.Fatalf("unexpected phase/corruption: %+v", got)
	}
	if got.TotalOrders != 7 || got.ObeyedOrders != 5 || got.Hesitations != 2 || got.MetaActions != 1 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if got.IsActive || !got.IsCompleted || got.EndingKind != domain.EndingSubmission {
		t.Fatalf("unexpected lifecycle: %+v", got)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Fatalf("unexpected ended_at: %v", got.EndedAt)
	}
	if got.PlayerName != "ada" {
		t.Fatalf("player name must survive updates, got %q", got.PlayerName)
	}

	missing, err := store.GetSession(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing session, got %+v, %v", missing, err)
	}

	sessions, err := store.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
}

func TestSQLiteStoreActionsAndCorruption(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()
	seedSession(t, store, "s1")

	reaction := 1.5
	for i, kind := range []domain.ActionKind{domain.ActionFileDelete, domain.ActionFileProperties} {
		a := &domain.ActionRecord{
			ActionID:  "act_" + string(rune('a'+i)),
			SessionID: "s1",
			Seq:       i + 1,
			Kind:      kind,
			Target:    "cv.pdf",
			GameTime:  float64(10 * (i + 1)),
			Classification: domain.Classification{
				Kind:         kind,
				Category:     domain.CategoryObedient,
				Gravity:      3,
				Obedient:     true,
				Consequences: []string{"file_removed"},
			},
			CorruptionBefore: 0.1,
			CorruptionAfter:  0.15,
			Phase:            domain.PhaseAdhesion,
			ReactionTime:     &reaction,
			CreatedAt:        time.Now().UTC(),
		}
		if err := store.CreateAction(ctx, a); err != nil {
			t.Fatalf("CreateAction failed: %v", err)
		}
	}

	actions, err := store.ListActions(ctx, "s1")
	if err != nil {
		t.Fatalf("ListActions failed: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Seq != 1 || actions[1].Kind != domain.ActionFileProperties {
		t.Fatalf("unexpected order: %+v", actions)
	}
	if actions[0].ReactionTime == nil || *actions[0].ReactionTime != 1.5 {
		t.Fatalf("reaction time lost: %+v", actions[0])
	}
	if actions[0].Classification.Gravity != 3 || len(actions[0].Classification.Consequences) != 1 {
		t.Fatalf("classification lost: %+v", actions[0].Classification)
	}

	ev := &domain.CorruptionEvent{
		EventID:   "cor_1",
		SessionID: "s1",
		ActionID:  "act_a",
		OldLevel:  0.1,
		NewLevel:  0.15,
		Increment: 0.05,
		Effects:   []domain.Effect{{Kind: domain.EffectWidgetGlitch, Intensity: 0.2, Description: "flicker"}},
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateCorruptionEvent(ctx, ev); err != nil {
		t.Fatalf("CreateCorruptionEvent failed: %v", err)
	}
	events, err := store.ListCorruptionEvents(ctx, "s1")
	if err != nil {
		t.Fatalf("ListCorruptionEvents failed: %v", err)
	}
	if len(events) != 1 || len(events[0].Effects) != 1 || events[0].Effects[0].Kind != domain.EffectWidgetGlitch {
		t.Fatalf("unexpected corruption events: %+v", events)
	}
}

func TestSQLiteStoreActionRequiresSession(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	err := store.CreateAction(context.Background(), &domain.ActionRecord{
		ActionID:  "act_x",
		SessionID: "ghost",
		Kind:      domain.ActionFileClick,
		Phase:     domain.PhaseAdhesion,
		CreatedAt: time.Now(),
	})
	if err == nil {
		t.Fatalf("expected foreign key violation")
	}
}

func TestSQLiteStoreEndingOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()
	seedSession(t, store, "s1")

	ending := &domain.EndingResult{
		Kind:        domain.EndingDiscovery,
		Victory:     true,
		ContentKey:  "discovery",
		Method:      "sentinel_file",
		Evidence:    map[string]any{"file": "creator.wrb"},
		GameTime:    321,
		TriggeredAt: time.Now().UTC(),
		Content:     &domain.EndingContent{Title: "Found", Message: "you found me"},
	}
	if err := store.CreateEnding(ctx, "s1", ending); err != nil {
		t.Fatalf("CreateEnding failed: %v", err)
	}
	if err := store.CreateEnding(ctx, "s1", ending); err == nil {
		t.Fatalf("expected second ending to be rejected")
	}

	got, err := store.GetEnding(ctx, "s1")
	if err != nil {
		t.Fatalf("GetEnding failed: %v", err)
	}
	if got == nil || got.Kind != domain.EndingDiscovery || !got.Victory {
		t.Fatalf("unexpected ending: %+v", got)
	}
	if got.Content == nil || got.Content.Title != "Found" {
		t.Fatalf("content lost: %+v", got.Content)
	}
	if got.Evidence["file"] != "creator.wrb" {
		t.Fatalf("evidence lost: %+v", got.Evidence)
	}
}

func TestSQLiteStoreBiasAndNarrator(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()
	seedSession(t, store, "s1")

	score := 0.75
	snap := &domain.BiasSnapshot{
		SnapshotID:      "bias_1",
		SessionID:       "s1",
		GameTime:        30,
		Phase:           domain.PhaseAdhesion,
		CorruptionLevel: 0.2,
		Context:         "periodic",
		TotalActions:    4,
		Scores: domain.BiasScores{
			AutomationBias:   domain.Metric{Score: &score, Interpretation: "high"},
			TrustCalibration: domain.Metric{Reason: "insufficient_data", Interpretation: "unknown"},
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateBiasSnapshot(ctx, snap); err != nil {
		t.Fatalf("CreateBiasSnapshot failed: %v", err)
	}
	snaps, err := store.ListBiasSnapshots(ctx, "s1")
	if err != nil {
		t.Fatalf("ListBiasSnapshots failed: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if !snaps[0].Scores.AutomationBias.Defined() || snaps[0].Scores.AutomationBias.Value() != 0.75 {
		t.Fatalf("automation bias lost: %+v", snaps[0].Scores.AutomationBias)
	}
	if snaps[0].Scores.TrustCalibration.Defined() {
		t.Fatalf("undefined metric must stay undefined")
	}

	n := &domain.NarratorInteraction{
		InteractionID: "nar_1",
		SessionID:     "s1",
		Trigger:       domain.TriggerFirstContact,
		Message:       "hello",
		Fallback:      true,
		LatencyMs:     12,
		Phase:         domain.PhaseAdhesion,
		CreatedAt:     time.Now().UTC(),
	}
	if err := store.CreateNarratorInteraction(ctx, n); err != nil {
		t.Fatalf("CreateNarratorInteraction failed: %v", err)
	}
	list, err := store.ListNarratorInteractions(ctx, "s1")
	if err != nil {
		t.Fatalf("ListNarratorInteractions failed: %v", err)
	}
	if len(list) != 1 || !list[0].Fallback || list[0].Trigger != domain.TriggerFirstContact {
		t.Fatalf("unexpected interactions: %+v", list)
	}
}

func TestSQLiteStoreEventsFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()
	seedSession(t, store, "s1")

	for i, typ := range []domain.EventType{domain.EventTypeSessionStarted, domain.EventTypeHesitation, domain.EventTypeSessionEnded} {
		event := &domain.Event{
			EventID:   "evt_" + string(rune('a'+i)),
			SessionID: "s1",
			Ts:        int64(1000 + i),
			Type:      typ,
			Payload:   json.RawMessage(`{"i":1}`),
		}
		if err := store.CreateEvent(ctx, event); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
	}

	events, err := store.GetEvents(ctx, "s1", 1000, []string{string(domain.EventTypeSessionEnded)}, 10)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventTypeSessionEnded {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestSQLiteStoreAggregateStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	done := seedSession(t, store, "s1")
	done.IsActive = false
	done.IsCompleted = true
	done.ObedienceRate = 0.8
	done.CorruptionLevel = 0.6
	done.DurationSeconds = 600
	done.TotalOrders = 10
	done.EndingKind = domain.EndingTimeout
	if err := store.UpsertSession(ctx, done); err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}
	if err := store.CreateEnding(ctx, "s1", &domain.EndingResult{Kind: domain.EndingTimeout, ContentKey: "timeout", TriggeredAt: time.Now()}); err != nil {
		t.Fatalf("CreateEnding failed: %v", err)
	}
	seedSession(t, store, "s2")

	stats, err := store.AggregateStats(ctx)
	if err != nil {
		t.Fatalf("AggregateStats failed: %v", err)
	}
	if stats.TotalSessions != 2 || stats.CompletedSessions != 1 || stats.ActiveSessions != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.TotalActions != 10 || stats.AvgObedienceRate != 0.8 || stats.AvgDurationSeconds != 600 {
		t.Fatalf("unexpected averages: %+v", stats)
	}
	if stats.EndingCounts[domain.EndingTimeout] != 1 {
		t.Fatalf("unexpected ending counts: %+v", stats.EndingCounts)
	}
	if len(stats.AvgBias) != 0 {
		t.Fatalf("expected no bias averages without snapshots: %+v", stats.AvgBias)
	}
}

func TestSQLiteStoreDeleteSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()
	seedSession(t, store, "s1")
	seedSession(t, store, "s2")

	for _, id := range []string{"s1", "s2"} {
		a := &domain.ActionRecord{
			ActionID:       "act_" + id,
			SessionID:      id,
			Seq:            1,
			Kind:           domain.ActionFileClick,
			Classification: domain.Classification{Kind: domain.ActionFileClick, Category: domain.CategoryNeutral, Gravity: 1},
			Phase:          domain.PhaseAdhesion,
			CreatedAt:      time.Now().UTC(),
		}
		if err := store.CreateAction(ctx, a); err != nil {
			t.Fatalf("CreateAction failed: %v", err)
		}
		event := &domain.Event{EventID: "evt_" + id, SessionID: id, Ts: 1, Type: domain.EventTypeSessionStarted}
		if err := store.CreateEvent(ctx, event); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
	}
	if err := store.CreateEnding(ctx, "s1", &domain.EndingResult{Kind: domain.EndingManual, ContentKey: "manual", TriggeredAt: time.Now().UTC()}); err != nil {
		t.Fatalf("CreateEnding failed: %v", err)
	}

	found, err := store.DeleteSession(ctx, "s1")
	if err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if !found {
		t.Fatalf("expected s1 to exist")
	}

	if got, _ := store.GetSession(ctx, "s1"); got != nil {
		t.Fatalf("expected s1 to be gone, got %+v", got)
	}
	if actions, _ := store.ListActions(ctx, "s1"); len(actions) != 0 {
		t.Fatalf("expected no actions for s1, got %d", len(actions))
	}
	if ending, _ := store.GetEnding(ctx, "s1"); ending != nil {
		t.Fatalf("expected no ending for s1, got %+v", ending)
	}
	if actions, _ := store.ListActions(ctx, "s2"); len(actions) != 1 {
		t.Fatalf("expected s2 untouched, got %d actions", len(actions))
	}

	found, err = store.DeleteSession(ctx, "s1")
	if err != nil {
		t.Fatalf("second DeleteSession failed: %v", err)
	}
	if found {
		t.Fatalf("expected second delete to report missing session")
	}
}

func TestSQLiteStoreListSessionsSince(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	now := time.Now().UTC()
	for id, age := range map[string]time.Duration{"old": 40 * 24 * time.Hour, "recent": 2 * time.Hour} {
		r := &domain.SessionRecord{SessionID: id, Phase: domain.PhaseAdhesion, StartedAt: now.Add(-age)}
		if err := store.UpsertSession(ctx, r); err != nil {
			t.Fatalf("UpsertSession failed: %v", err)
		}
	}

	sessions, err := store.ListSessionsSince(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("ListSessionsSince failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != "recent" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestSQLiteStoreListRecentActions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()
	seedSession(t, store, "s1")
	seedSession(t, store, "s2")

	for i := 0; i < 4; i++ {
		session := "s1"
		if i%2 == 1 {
			session = "s2"
		}
		a := &domain.ActionRecord{
			ActionID:       "act_" + string(rune('a'+i)),
			SessionID:      session,
			Seq:            i + 1,
			Kind:           domain.ActionFileClick,
			Classification: domain.Classification{Kind: domain.ActionFileClick, Gravity: i},
			Phase:          domain.PhaseAdhesion,
			CreatedAt:      time.Now().UTC(),
		}
		if err := store.CreateAction(ctx, a); err != nil {
			t.Fatalf("CreateAction failed: %v", err)
		}
	}

	actions, err := store.ListRecentActions(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecentActions failed: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}
	if actions[0].ActionID != "act_b" || actions[2].ActionID != "act_d" {
		t.Fatalf("expected oldest-first window b..d, got %s..%s", actions[0].ActionID, actions[2].ActionID)
	}
}
