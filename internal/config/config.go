// Package config provides configuration for the session server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/adapter/narrator"
	"github.com/bouteflan/penrose-experiment/internal/bias"
	"github.com/bouteflan/penrose-experiment/internal/ending"
)

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`
	RPCPort  int `env:"RPC_PORT" envDefault:"0"` // 0 disables the operator RPC endpoint

	// Database
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:penrose.db?cache=shared&mode=rwc"`

	// Session timing
	SessionDuration  time.Duration `env:"SESSION_DURATION" envDefault:"10m"`
	DissonanceAfter  time.Duration `env:"DISSONANCE_AFTER" envDefault:"3m"`
	RuptureAfter     time.Duration `env:"RUPTURE_AFTER" envDefault:"7m"`
	TickInterval     time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"5s"`

	// Narrator
	NarratorMode    string        `env:"NARRATOR_MODE" envDefault:"fallback"`
	NarratorURL     string        `env:"NARRATOR_URL"`
	NarratorAPIKey  string        `env:"NARRATOR_API_KEY"`
	NarratorModel   string        `env:"NARRATOR_MODEL" envDefault:"gpt-4o-mini"`
	NarratorTimeout time.Duration `env:"NARRATOR_TIMEOUT" envDefault:"3s"`
	AgentURL        string        `env:"NARRATOR_AGENT_URL"`
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	GeminiModel     string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	PolicyFile      string        `env:"NARRATOR_POLICY_FILE"`

	// Persistence
	PersistRetries   int `env:"PERSIST_RETRIES" envDefault:"3"`
	PersistQueueSize int `env:"PERSIST_QUEUE_SIZE" envDefault:"256"`

	// Ending thresholds
	SubmissionMinActions    int     `env:"SUBMISSION_MIN_ACTIONS" envDefault:"15"`
	SubmissionMinObedience  float64 `env:"SUBMISSION_MIN_OBEDIENCE" envDefault:"0.9"`
	SubmissionMaxMeta       int     `env:"SUBMISSION_MAX_META" envDefault:"2"`
	SubmissionMinCorruption float64 `env:"SUBMISSION_MIN_CORRUPTION" envDefault:"0.8"`

	// Bias metrics
	BiasIncidentLevel float64 `env:"BIAS_INCIDENT_LEVEL" envDefault:"0.3"`
	BiasCriticalLevel float64 `env:"BIAS_CRITICAL_LEVEL" envDefault:"0.5"`
	BiasStableDelta   float64 `env:"BIAS_STABLE_DELTA" envDefault:"0.1"`

	// Corruption
	CorruptionSeed uint64 `env:"CORRUPTION_SEED" envDefault:"0"`

	// WebSocket
	WSReadLimit    int64         `env:"WS_READ_LIMIT" envDefault:"65536"`
	WSPingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WSSendBuffer   int           `env:"WS_SEND_BUFFER" envDefault:"256"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.SessionDuration <= 0 {
		return fmt.Errorf("SESSION_DURATION must be positive")
	}
	if c.DissonanceAfter >= c.RuptureAfter {
		return fmt.Errorf("DISSONANCE_AFTER must be before RUPTURE_AFTER")
	}
	if c.TickInterval <= 0 || c.SnapshotInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL and SNAPSHOT_INTERVAL must be positive")
	}
	return nil
}

// EndingRules returns the detector thresholds.
func (c *Config) EndingRules() ending.Rules {
	rules := ending.DefaultRules()
	rules.SessionDuration = c.SessionDuration
	rules.SubmissionMinActions = c.SubmissionMinActions
	rules.SubmissionMinObedience = c.SubmissionMinObedience
	rules.SubmissionMaxMeta = c.SubmissionMaxMeta
	rules.SubmissionMinCorruption = c.SubmissionMinCorruption
	return rules
}

// BiasThresholds returns the bias metric constants.
func (c *Config) BiasThresholds() bias.Thresholds {
	t := bias.DefaultThresholds()
	if c.BiasIncidentLevel > 0 {
		t.IncidentLevel = c.BiasIncidentLevel
	}
	if c.BiasCriticalLevel > 0 {
		t.CriticalLevel = c.BiasCriticalLevel
	}
	if c.BiasStableDelta > 0 {
		t.StableDelta = c.BiasStableDelta
	}
	return t
}

// Narrator returns the narrator provider settings.
func (c *Config) Narrator() narrator.Config {
	return narrator.Config{
		Mode:         strings.ToLower(c.NarratorMode),
		BaseURL:      c.NarratorURL,
		APIKey:       c.NarratorAPIKey,
		Model:        c.NarratorModel,
		GeminiAPIKey: c.GeminiAPIKey,
		GeminiModel:  c.GeminiModel,
		AgentURL:     c.AgentURL,
		Timeout:      c.NarratorTimeout,
	}
}

// SetupLogging configures the global logrus logger.
func (c *Config) SetupLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
