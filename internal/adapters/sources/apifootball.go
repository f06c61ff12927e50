package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/logger"
)

const (
	apiFootballName    = "apifootball"
	apiFootballBaseURL = "https://v3.football.api-sports.io"
)

// APIFootball polls live fixtures and their team statistics.
type APIFootball struct {
	settings
	client    *httpClient
	enabled   bool
	minMinute int
	maxMinute int
}

// NewAPIFootball builds the adapter. Fixtures outside [minMinute, maxMinute]
// elapsed minutes are ignored; a non-positive maxMinute disables the upper bound.
func NewAPIFootball(apiKey string, minMinute, maxMinute int, opts ...Option) *APIFootball {
	s := applyOptions(apiFootballName, apiFootballBaseURL, opts)
	headers := http.Header{}
	headers.Set("x-apisports-key", apiKey)
	return &APIFootball{
		settings:  s,
		client:    newHTTPClient(s.client, s.requestsPerMinute, headers),
		enabled:   apiKey != "",
		minMinute: minMinute,
		maxMinute: maxMinute,
	}
}

// Name identifies the source.
func (a *APIFootball) Name() string { return apiFootballName }

type apiFootballEnvelope[T any] struct {
	Response []T `json:"response"`
}

type apiFootballFixture struct {
	Fixture struct {
		ID     int64 `json:"id"`
		Status struct {
			Short   string `json:"short"`
			Elapsed *int   `json:"elapsed"`
		} `json:"status"`
	} `json:"fixture"`
}

type apiFootballTeamStats struct {
	Statistics []struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"statistics"`
}

// Fetch returns one reading per live fixture in the minute window.
func (a *APIFootball) Fetch(ctx context.Context) ([]model.Reading, error) {
	if !a.enabled {
		return nil, ErrSourceDisabled
	}
	base := strings.TrimSuffix(a.baseURL, "/")

	var live apiFootballEnvelope[apiFootballFixture]
	if err := a.client.getJSON(ctx, base+"/fixtures?live=all", &live); err != nil {
		return nil, fmt.Errorf("live fixtures: %w", err)
	}

	var readings []model.Reading
	for _, f := range live.Response {
		if !a.inWindow(f) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return readings, err
		}
		id := strconv.FormatInt(f.Fixture.ID, 10)
		var stats apiFootballEnvelope[apiFootballTeamStats]
		if err := a.client.getJSON(ctx, base+"/fixtures/statistics?fixture="+id, &stats); err != nil {
			a.logger.Debug(ctx, "fixture statistics failed",
				logger.String("fixture_id", id),
				logger.Error(err),
			)
			continue
		}
		readings = append(readings, model.NewReading(apiFootballName, id, mergeTeamStats(stats.Response)))
	}
	return readings, nil
}

func (a *APIFootball) inWindow(f apiFootballFixture) bool {
	if f.Fixture.Status.Elapsed == nil {
		return false
	}
	m := *f.Fixture.Status.Elapsed
	if m < a.minMinute {
		return false
	}
	return a.maxMinute <= 0 || m <= a.maxMinute
}

// mergeTeamStats keeps, per metric, the larger of the two teams' values.
func mergeTeamStats(teams []apiFootballTeamStats) map[model.Metric]float64 {
	out := map[model.Metric]float64{}
	keep := func(m model.Metric, v float64) {
		if v > out[m] {
			out[m] = v
		}
	}
	for _, t := range teams {
		for _, st := range t.Statistics {
			v, ok := statValue(st.Value)
			if !ok {
				continue
			}
			switch strings.ToLower(st.Type) {
			case "shots on goal":
				keep(model.ShotsOnTarget, v)
			case "dangerous attacks":
				keep(model.DangerousAttacks, v)
			case "expected_goals":
				keep(model.ExpectedGoals, v)
			case "ball possession":
				// Possession share on 0-100, pressure on 0-10.
				keep(model.Pressure, math.Min(10, v/10))
			}
		}
	}
	return out
}

// statValue accepts numbers, numeric strings and percentages; null is absent.
func statValue(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
