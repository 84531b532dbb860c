// Package service orchestrates game sessions: it owns their lifetime and
// sequences classification, corruption, ending detection and bias scoring.
package service

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bouteflan/penrose-experiment/internal/adapter/narrator"
	"github.com/bouteflan/penrose-experiment/internal/bias"
	"github.com/bouteflan/penrose-experiment/internal/config"
	"github.com/bouteflan/penrose-experiment/internal/corruption"
	"github.com/bouteflan/penrose-experiment/internal/ending"
	"github.com/bouteflan/penrose-experiment/internal/policy"
	"github.com/bouteflan/penrose-experiment/internal/random"
	"github.com/bouteflan/penrose-experiment/internal/repository"
)

// EventSink receives server-initiated session events. The WebSocket hub
// implements it.
type EventSink interface {
	PushEvent(sessionID string, event interface{}) error
}

type discardSink struct{}

func (discardSink) PushEvent(string, interface{}) error { return nil }

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for game time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand replaces the random source of the corruption engine.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) { s.rng = rng }
}

// Service owns the active sessions. It runs their timers, applies actions
// and hesitations, and persists results through a single background writer.
type Service struct {
	store        store.Store
	narrator     narrator.Narrator
	policyEngine *policy.Engine
	config       *config.Config
	sink         EventSink

	corruption *corruption.Engine
	detector   *ending.Detector
	bias       *bias.Engine
	recorder   *recorder

	sessions *sessionArena
	now      func() time.Time
	rng      *rand.Rand

	// background narrator notifications
	bg sync.WaitGroup
}

// New creates a Service. A nil narrator falls back to the scripted lines and
// a nil sink discards events.
func New(store store.Store, narr narrator.Narrator, policyEngine *policy.Engine, cfg *config.Config, sink EventSink, opts ...Option) (*Service, error) {
	if narr == nil {
		narr = narrator.FallbackNarrator{}
	}
	if sink == nil {
		sink = discardSink{}
	}
	s := &Service{
		store:        store,
		narrator:     narr,
		policyEngine: policyEngine,
		config:       cfg,
		sink:         sink,
		detector:     ending.NewDetector(cfg.EndingRules()),
		bias:         bias.NewEngine(cfg.BiasThresholds()),
		sessions:     newSessionArena(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		rng, err := random.NewSource(cfg.CorruptionSeed)
		if err != nil {
			return nil, err
		}
		s.rng = rng
	}
	s.corruption = corruption.NewEngine(s.rng)
	s.recorder = newRecorder(store, cfg.PersistQueueSize, cfg.PersistRetries)
	go s.recorder.run()
	return s, nil
}
