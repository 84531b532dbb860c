package narrator

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Provider modes.
const (
	ModeMock     = "mock"
	ModeOpenAI   = "openai"
	ModeGemini   = "gemini"
	ModeAgent    = "agent"
	ModeFallback = "fallback"
)

// Config selects and configures a narrator provider.
type Config struct {
	Mode         string
	BaseURL      string
	APIKey       string
	Model        string
	GeminiAPIKey string
	GeminiModel  string
	AgentURL     string
	Timeout      time.Duration
}

// New creates the narrator selected by cfg.Mode.
func New(ctx context.Context, cfg Config) (Narrator, error) {
	switch cfg.Mode {
	case ModeMock:
		log.Info("narrator mode mock, using mock client")
		return NewMockClient(), nil
	case ModeOpenAI:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("narrator mode %s requires a base url", cfg.Mode)
		}
		return NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case ModeGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("narrator mode %s requires an api key", cfg.Mode)
		}
		c, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ModeAgent:
		if cfg.AgentURL == "" {
			return nil, fmt.Errorf("narrator mode %s requires an agent url", cfg.Mode)
		}
		return NewAgentClient(cfg.AgentURL, cfg.Timeout), nil
	case ModeFallback, "":
		log.Info("no narrator provider configured, using fallback messages")
		return FallbackNarrator{}, nil
	default:
		return nil, fmt.Errorf("unknown narrator mode %q", cfg.Mode)
	}
}
