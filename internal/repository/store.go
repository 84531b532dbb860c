// Package store defines the persistence contract and its SQLite implementation.
package store

import (
	"context"
	"time"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Session operations
	UpsertSession(ctx context.Context, session *domain.SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error)
	ListSessionsSince(ctx context.Context, since time.Time) ([]domain.SessionRecord, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, error)

	// Action operations
	CreateAction(ctx context.Context, action *domain.ActionRecord) error
	ListActions(ctx context.Context, sessionID string) ([]domain.ActionRecord, error)
	ListRecentActions(ctx context.Context, limit int) ([]domain.ActionRecord, error)

	// Corruption operations
	CreateCorruptionEvent(ctx context.Context, event *domain.CorruptionEvent) error
	ListCorruptionEvents(ctx context.Context, sessionID string) ([]domain.CorruptionEvent, error)

	// Ending operations
	CreateEnding(ctx context.Context, sessionID string, ending *domain.EndingResult) error
	GetEnding(ctx context.Context, sessionID string) (*domain.EndingResult, error)

	// Bias operations
	CreateBiasSnapshot(ctx context.Context, snapshot *domain.BiasSnapshot) error
	ListBiasSnapshots(ctx context.Context, sessionID string) ([]domain.BiasSnapshot, error)

	// Narrator operations
	CreateNarratorInteraction(ctx context.Context, interaction *domain.NarratorInteraction) error
	ListNarratorInteractions(ctx context.Context, sessionID string) ([]domain.NarratorInteraction, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// Cross-session queries
	AggregateStats(ctx context.Context) (*domain.ExperimentStats, error)

	// Lifecycle
	Close() error
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
