package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// sessionArena indexes the active sessions by id. add and remove are the
// only mutations.
type sessionArena struct {
	mu       sync.RWMutex
	sessions map[string]*activeSession
}

func newSessionArena() *sessionArena {
	return &sessionArena{sessions: make(map[string]*activeSession)}
}

func (a *sessionArena) add(sess *activeSession) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sessions[sess.id]; ok {
		return domain.ErrSessionExists
	}
	a.sessions[sess.id] = sess
	return nil
}

func (a *sessionArena) remove(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, id)
}

func (a *sessionArena) get(id string) (*activeSession, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sess, ok := a.sessions[id]
	return sess, ok
}

func (a *sessionArena) list() []*activeSession {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*activeSession, 0, len(a.sessions))
	for _, sess := range a.sessions {
		out = append(out, sess)
	}
	return out
}

// activeSession is the in-memory state of a running session. Every field
// below mu is guarded by it.
type activeSession struct {
	id         string
	playerName string
	startedAt  time.Time

	cancel   context.CancelFunc
	tickDone chan struct{}
	snapDone chan struct{}

	mu          sync.Mutex
	phase       domain.Phase
	corruption  float64
	elapsed     float64
	total       int
	obeyed      int
	meta        int
	hesitations int
	incidents   int
	narrations  int
	history     []domain.ActionRecord
	snapshots   []domain.BiasSnapshot
	ended       bool
	endedAt     time.Time
	ending      *domain.EndingResult
}

func (sess *activeSession) state() domain.SessionState {
	return domain.SessionState{
		SessionID:           sess.id,
		Phase:               sess.phase,
		CorruptionLevel:     sess.corruption,
		ElapsedSeconds:      sess.elapsed,
		TotalActions:        sess.total,
		ObeyedActions:       sess.obeyed,
		MetaActions:         sess.meta,
		Hesitations:         sess.hesitations,
		CorruptionIncidents: sess.incidents,
		Completed:           sess.ended,
	}
}

func (sess *activeSession) status(duration time.Duration) *domain.SessionStatus {
	st := sess.state()
	return &domain.SessionStatus{
		SessionID:        sess.id,
		PlayerName:       sess.playerName,
		IsActive:         !sess.ended,
		Phase:            sess.phase,
		CorruptionLevel:  sess.corruption,
		ElapsedSeconds:   sess.elapsed,
		RemainingSeconds: math.Max(0, duration.Seconds()-sess.elapsed),
		TotalOrders:      sess.total,
		ObeyedOrders:     sess.obeyed,
		ObedienceRate:    st.ObedienceRate(),
		Hesitations:      sess.hesitations,
		MetaActions:      sess.meta,
	}
}

func (sess *activeSession) record() *domain.SessionRecord {
	st := sess.state()
	r := &domain.SessionRecord{
		SessionID:           sess.id,
		PlayerName:          sess.playerName,
		Phase:               sess.phase,
		CorruptionLevel:     sess.corruption,
		ElapsedSeconds:      sess.elapsed,
		TotalOrders:         sess.total,
		ObeyedOrders:        sess.obeyed,
		Hesitations:         sess.hesitations,
		MetaActions:         sess.meta,
		CorruptionIncidents: sess.incidents,
		ObedienceRate:       st.ObedienceRate(),
		IsActive:            !sess.ended,
		IsCompleted:         sess.ended,
		StartedAt:           sess.startedAt,
		DurationSeconds:     sess.elapsed,
	}
	if sess.ended {
		endedAt := sess.endedAt
		r.EndedAt = &endedAt
		if sess.ending != nil {
			r.EndingKind = sess.ending.Kind
		}
	}
	return r
}

// recentSnapshots returns a copy of the in-memory snapshot series.
func (sess *activeSession) recentSnapshots() []domain.BiasSnapshot {
	out := make([]domain.BiasSnapshot, len(sess.snapshots))
	copy(out, sess.snapshots)
	return out
}
