// Package corruption computes corruption increments and the visual effects
// they produce.
package corruption

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

const (
	baseRate         = 0.02
	destructiveBoost = 1.3
	maxIncrement     = 0.15
	maxLevel         = 1.0
	historyCap       = 50
	trendWindow      = 5
	majorLevel       = 0.5
)

type point struct {
	level float64
	at    time.Time
}

type sessionState struct {
	level   float64
	history []point
	events  int
	major   int
}

// Engine tracks per-session corruption levels. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rng      *rand.Rand
	sessions map[string]*sessionState
	now      func() time.Time
}

// NewEngine creates an engine drawing randomness from rng.
func NewEngine(rng *rand.Rand) *Engine {
	return &Engine{
		rng:      rng,
		sessions: make(map[string]*sessionState),
		now:      time.Now,
	}
}

func (e *Engine) session(id string) *sessionState {
	s, ok := e.sessions[id]
	if !ok {
		s = &sessionState{}
		e.sessions[id] = s
	}
	return s
}

// Apply computes the corruption caused by a classified action. It returns nil
// when the classification does not trigger corruption.
func (e *Engine) Apply(sessionID string, c domain.Classification, current float64) *domain.CorruptionEvent {
	if !c.TriggersCorruption {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	old := clamp(current, 0, maxLevel)
	mult := c.Multiplier
	if mult <= 0 {
		mult = 1.0
	}
	inc := float64(c.Gravity) * baseRate * mult
	if c.Destructive {
		inc *= destructiveBoost
	}
	inc *= 0.8 + e.rng.Float64()*0.4
	inc = clamp(inc, 0, maxIncrement)
	level := math.Min(old+inc, maxLevel)

	avail := available(level)
	count := 1 + int(level*3)
	if inc > 0.05 {
		count++
	}
	if count > len(avail) {
		count = len(avail)
	}
	effects := make([]domain.Effect, 0, count)
	for _, idx := range e.rng.Perm(len(avail))[:count] {
		effects = append(effects, buildEffect(avail[idx], level, e.rng))
	}

	now := e.now()
	s := e.session(sessionID)
	s.level = level
	s.record(level, now)
	s.events++
	if level >= majorLevel {
		s.major++
	}

	return &domain.CorruptionEvent{
		EventID:   "cor_" + uuid.New().String()[:8],
		SessionID: sessionID,
		OldLevel:  old,
		NewLevel:  level,
		Increment: level - old,
		Effects:   effects,
		CreatedAt: now,
	}
}

func (s *sessionState) record(level float64, at time.Time) {
	s.history = append(s.history, point{level: level, at: at})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
}

// Reset sets the session level administratively. This is the only path that
// may lower a level.
func (e *Engine) Reset(sessionID string, level float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session(sessionID)
	s.level = clamp(level, 0, maxLevel)
	s.record(s.level, e.now())
}

// Forget drops all state kept for a session.
func (e *Engine) Forget(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, sessionID)
}

// Level returns the last level recorded for the session.
func (e *Engine) Level(sessionID string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[sessionID]; ok {
		return s.level
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
