package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/goalpulse/internal/adapters/notify"
	"github.com/okian/goalpulse/internal/adapters/sources"
	"github.com/okian/goalpulse/internal/adapters/statestore"
	service "github.com/okian/goalpulse/internal/app"
	"github.com/okian/goalpulse/internal/config"
	"github.com/okian/goalpulse/internal/domain/fusion"
	"github.com/okian/goalpulse/internal/domain/scoring"
	"github.com/okian/goalpulse/pkg/logger"
)

// ErrNoSources is returned when the configuration enables no source at all.
var ErrNoSources = errors.New("no sources enabled")

// application bundles the service with the collaborators main must close.
type application struct {
	svc *service.Service
	hub *notify.Hub
}

func (a *application) close() {
	if a.hub != nil {
		a.hub.Close()
	}
}

// build assembles the service from cfg.
func build(ctx context.Context, cfg *config.Config) (*application, error) {
	log := logger.Get()

	srcs := buildSources(cfg, log)
	if len(srcs) == 0 {
		return nil, ErrNoSources
	}

	notifier, hub, err := buildNotifier(cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := buildStateStore(ctx, cfg)
	if err != nil {
		if hub != nil {
			hub.Close()
		}
		return nil, err
	}

	names := make([]string, 0, len(srcs))
	for _, s := range srcs {
		names = append(names, s.Name())
	}
	log.Info(ctx, "components configured",
		logger.Strings("sources", names),
		logger.String("notifier", notifier.Name()),
		logger.String("state_store", fmt.Sprintf("%T", store)),
	)

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithSources(srcs...),
		service.WithNotifier(notifier),
		service.WithStateStore(store),
		service.WithAliases(fusion.NewAliasTable(cfg.EntityAliases)),
		service.WithWindowSize(cfg.WindowSize),
		service.WithScoring(scoringOptions(cfg)...),
		service.WithSuppressionWindow(cfg.SuppressionWindow),
		service.WithRecentAlerts(cfg.RecentAlerts),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDeliveryTimeout(cfg.DeliveryTimeout),
		service.WithPollInterval(cfg.PollInterval),
		service.WithCycleTimeout(cfg.CycleTimeout),
		service.WithSourceTimeout(cfg.SourceTimeout),
		service.WithEntityTTL(cfg.EntityTTL),
	)
	return &application{svc: svc, hub: hub}, nil
}

// buildSources returns every source the configuration enables.
// Keyed APIs are enabled by their key.
func buildSources(cfg *config.Config, log logger.Logger) []sources.Source {
	common := func(baseURL string) []sources.Option {
		return []sources.Option{
			sources.WithBaseURL(baseURL),
			sources.WithRequestsPerMinute(cfg.SourceRequestsPerMinute),
			sources.WithLogger(log.Named("sources")),
		}
	}

	var out []sources.Source
	if cfg.SimulatorEnabled {
		out = append(out, sources.NewSimulator(cfg.SimulatorFixtures, cfg.SimulatorSeed))
	}
	if cfg.SofaScoreEnabled {
		out = append(out, sources.NewSofaScore(cfg.SofaScoreUserAgent, cfg.SofaScoreMaxMatches, common(cfg.SofaScoreBaseURL)...))
	}
	if cfg.OddsAPIKey != "" {
		out = append(out, sources.NewOdds(cfg.OddsAPIKey, cfg.OddsSport, cfg.OddsRegions, cfg.OddsBookmakers, common(cfg.OddsBaseURL)...))
	}
	if cfg.APIFootballKey != "" {
		out = append(out, sources.NewAPIFootball(cfg.APIFootballKey, cfg.APIFootballMinMinute, cfg.APIFootballMaxMinute, common(cfg.APIFootballBaseURL)...))
	}
	return out
}

// buildNotifier fans alerts out to the log plus every configured channel.
// The websocket hub is returned separately so it can be mounted and closed.
func buildNotifier(cfg *config.Config, log logger.Logger) (notify.Notifier, *notify.Hub, error) {
	nlog := log.Named("notify")
	opts := []notify.Option{notify.WithLogger(nlog)}
	chain := []notify.Notifier{notify.NewLog(log.Named("alerts"))}

	if cfg.WebhookURL != "" {
		w, err := notify.NewWebhook(cfg.WebhookURL, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("webhook notifier: %w", err)
		}
		chain = append(chain, w)
	}
	if cfg.TelegramBotToken != "" || cfg.TelegramChatID != "" {
		t, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("telegram notifier: %w", err)
		}
		chain = append(chain, t)
	}
	if cfg.OneSignalAppID != "" || cfg.OneSignalAPIKey != "" {
		o, err := notify.NewOneSignal(cfg.OneSignalAppID, cfg.OneSignalAPIKey, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("onesignal notifier: %w", err)
		}
		chain = append(chain, o)
	}

	var hub *notify.Hub
	if cfg.WebsocketEnabled {
		hub = notify.NewHub(nlog)
		chain = append(chain, hub)
	}
	return notify.NewMulti(chain...).WithTimeout(cfg.DeliveryTimeout), hub, nil
}

// buildStateStore prefers Postgres, then the YAML file, then no persistence.
func buildStateStore(ctx context.Context, cfg *config.Config) (statestore.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		st, err := statestore.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres state store: %w", err)
		}
		return st, nil
	case cfg.StateFile != "":
		return statestore.NewFileStore(cfg.StateFile), nil
	default:
		return statestore.Nop{}, nil
	}
}

func scoringOptions(cfg *config.Config) []scoring.Option {
	return []scoring.Option{
		scoring.WithWeights(scoring.Weights{
			Pressure:         cfg.WeightPressure,
			DangerousAttacks: cfg.WeightDangerousAttacks,
			ShotsOnTarget:    cfg.WeightShotsOnTarget,
			ExpectedGoals:    cfg.WeightExpectedGoals,
			OddsDelta:        cfg.WeightOddsDelta,
			Trend:            cfg.WeightTrend,
		}),
		scoring.WithScale(cfg.ScoreScale),
		scoring.WithTrendLookback(cfg.TrendLookback),
		scoring.WithThresholds(cfg.TierLowMax, cfg.TierMediumMax),
	}
}
