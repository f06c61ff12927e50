// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and GOALPULSE_* env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// PollInterval is the pause between two polling cycles.
	PollInterval time.Duration `koanf:"poll_interval"`
	// CycleTimeout bounds a whole cycle, including all source fetches.
	CycleTimeout time.Duration `koanf:"cycle_timeout"`
	// SourceTimeout bounds a single source fetch.
	SourceTimeout time.Duration `koanf:"source_timeout"`

	// WindowSize is the per-entity history capacity W.
	WindowSize int `koanf:"window_size"`
	// EntityTTL retires entities without a new reading for this long. Zero disables retirement.
	EntityTTL time.Duration `koanf:"entity_ttl"`

	// Scoring weights.
	WeightPressure         float64 `koanf:"weight_pressure"`
	WeightDangerousAttacks float64 `koanf:"weight_dangerous_attacks"`
	WeightShotsOnTarget    float64 `koanf:"weight_shots_on_target"`
	WeightExpectedGoals    float64 `koanf:"weight_expected_goals"`
	WeightOddsDelta        float64 `koanf:"weight_odds_delta"`
	WeightTrend            float64 `koanf:"weight_trend"`
	// TrendLookback is the distance, in entries, of the trend baseline.
	TrendLookback int `koanf:"trend_lookback"`
	// ScoreScale is the normalization constant K.
	ScoreScale float64 `koanf:"score_scale"`
	// TierLowMax: values below are LOW. TierMediumMax: values below are MEDIUM.
	TierLowMax    float64 `koanf:"tier_low_max"`
	TierMediumMax float64 `koanf:"tier_medium_max"`

	// SuppressionWindow is the minimum gap between two same-tier alerts for an entity.
	SuppressionWindow time.Duration `koanf:"suppression_window"`
	// RecentAlerts caps the in-memory alert journal.
	RecentAlerts int `koanf:"recent_alerts"`

	// QueueSize bounds the alert delivery queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of delivery workers.
	WorkerCount int `koanf:"worker_count"`
	// DeliveryTimeout bounds a single notifier call.
	DeliveryTimeout time.Duration `koanf:"delivery_timeout"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit and GET /alerts?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// StateFile stores the alert decision snapshot. Empty disables file persistence.
	StateFile string `koanf:"state_file"`
	// DatabaseURL switches persistence to Postgres when set.
	DatabaseURL string `koanf:"database_url"`

	// EntityAliases maps "source:raw_id" or "raw_id" to a canonical entity id.
	EntityAliases map[string]string `koanf:"entity_aliases"`

	// SourceRequestsPerMinute rate-limits every HTTP source adapter.
	SourceRequestsPerMinute int `koanf:"source_requests_per_minute"`

	SofaScoreEnabled    bool   `koanf:"sofascore_enabled"`
	SofaScoreBaseURL    string `koanf:"sofascore_base_url"`
	SofaScoreUserAgent  string `koanf:"sofascore_user_agent"`
	SofaScoreMaxMatches int    `koanf:"sofascore_max_matches"`

	OddsAPIKey     string `koanf:"odds_api_key"`
	OddsBaseURL    string `koanf:"odds_base_url"`
	OddsSport      string `koanf:"odds_sport"`
	OddsRegions    string `koanf:"odds_regions"`
	OddsBookmakers int    `koanf:"odds_bookmakers"`

	APIFootballKey       string `koanf:"apifootball_key"`
	APIFootballBaseURL   string `koanf:"apifootball_base_url"`
	APIFootballMinMinute int    `koanf:"apifootball_min_minute"`
	APIFootballMaxMinute int    `koanf:"apifootball_max_minute"`

	SimulatorEnabled  bool  `koanf:"simulator_enabled"`
	SimulatorFixtures int   `koanf:"simulator_fixtures"`
	SimulatorSeed     int64 `koanf:"simulator_seed"`

	WebhookURL       string `koanf:"webhook_url"`
	TelegramBotToken string `koanf:"telegram_bot_token"`
	TelegramChatID   string `koanf:"telegram_chat_id"`
	OneSignalAppID   string `koanf:"onesignal_app_id"`
	OneSignalAPIKey  string `koanf:"onesignal_api_key"`
	WebsocketEnabled bool   `koanf:"websocket_enabled"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",

		PollInterval:  12 * time.Second,
		CycleTimeout:  30 * time.Second,
		SourceTimeout: 8 * time.Second,

		WindowSize: 20,
		EntityTTL:  10 * time.Minute,

		WeightPressure:         2.5,
		WeightDangerousAttacks: 2.8,
		WeightShotsOnTarget:    3.2,
		WeightExpectedGoals:    18.0,
		WeightOddsDelta:        4.5,
		WeightTrend:            3.0,
		TrendLookback:          4,
		ScoreScale:             1.4,
		TierLowMax:             36,
		TierMediumMax:          66,

		SuppressionWindow: 60 * time.Second,
		RecentAlerts:      200,

		QueueSize:       1024,
		WorkerCount:     runtime.NumCPU(),
		DeliveryTimeout: 10 * time.Second,

		MaxLeaderboardLimit: 100,

		StateFile: "goalpulse_state.yaml",

		EntityAliases: map[string]string{},

		SourceRequestsPerMinute: 120,

		SofaScoreEnabled:    false,
		SofaScoreBaseURL:    "https://www.sofascore.com",
		SofaScoreUserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36",
		SofaScoreMaxMatches: 25,

		OddsBaseURL:    "https://api.the-odds-api.com",
		OddsSport:      "soccer_epl",
		OddsRegions:    "eu",
		OddsBookmakers: 1,

		APIFootballBaseURL:   "https://v3.football.api-sports.io",
		APIFootballMinMinute: 8,
		APIFootballMaxMinute: 90,

		SimulatorEnabled:  true,
		SimulatorFixtures: 3,
		SimulatorSeed:     42,
	}
}

// Validate checks the invariants the engine relies on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WindowSize < 1:
		return fmt.Errorf("%w: window_size must be at least 1", ErrInvalidConfig)
	case c.TrendLookback < 1:
		return fmt.Errorf("%w: trend_lookback must be at least 1", ErrInvalidConfig)
	case c.ScoreScale <= 0:
		return fmt.Errorf("%w: score_scale must be positive", ErrInvalidConfig)
	case c.TierLowMax < 0 || c.TierLowMax > c.TierMediumMax || c.TierMediumMax > 100:
		return fmt.Errorf("%w: tier thresholds must satisfy 0 <= tier_low_max <= tier_medium_max <= 100", ErrInvalidConfig)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalidConfig)
	case c.SuppressionWindow < 0:
		return fmt.Errorf("%w: suppression_window must not be negative", ErrInvalidConfig)
	}
	for name, w := range c.Weights() {
		if w < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}
	return nil
}

// Weights returns the scoring weights keyed by their config name.
func (c *Config) Weights() map[string]float64 {
	return map[string]float64{
		"weight_pressure":          c.WeightPressure,
		"weight_dangerous_attacks": c.WeightDangerousAttacks,
		"weight_shots_on_target":   c.WeightShotsOnTarget,
		"weight_expected_goals":    c.WeightExpectedGoals,
		"weight_odds_delta":        c.WeightOddsDelta,
		"weight_trend":             c.WeightTrend,
	}
}
