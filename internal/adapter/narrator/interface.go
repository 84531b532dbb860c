// Package narrator provides the clients that generate the assistant's lines.
package narrator

import (
	"context"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// Request is the input of a narrator generation.
type Request struct {
	SessionID       string         `json:"session_id"`
	PlayerName      string         `json:"player_name,omitempty"`
	Trigger         domain.Trigger `json:"trigger"`
	Phase           domain.Phase   `json:"phase"`
	CorruptionLevel float64        `json:"corruption_level"`
	Seq             int            `json:"seq"`
	Context         map[string]any `json:"context,omitempty"`
}

// Response is a generated narrator line.
type Response struct {
	Message  string `json:"message"`
	Tone     string `json:"tone"`
	Intent   string `json:"intent"`
	Fallback bool   `json:"fallback"`
}

// Narrator generates the assistant's next line for a trigger.
type Narrator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Ensure implementations satisfy Narrator.
var (
	_ Narrator = (*Client)(nil)
	_ Narrator = (*AgentClient)(nil)
	_ Narrator = (*GeminiClient)(nil)
	_ Narrator = (*MockClient)(nil)
	_ Narrator = (*FallbackNarrator)(nil)
)
