package sources

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/logger"
)

const (
	oddsName       = "odds"
	oddsBaseURL    = "https://api.the-odds-api.com"
	oddsMarkets    = "h2h,totals"
	oddsDeltaScale = 5.0
)

// Odds reads The Odds API and reports how far the "Over" total price
// fell since the previous poll, mapped onto 0..10.
type Odds struct {
	settings
	client     *httpClient
	apiKey     string
	sport      string
	regions    string
	bookmakers int

	// disabled latches after an authorization or quota rejection.
	disabled atomic.Bool

	mu     sync.Mutex
	prices map[string]float64
}

// NewOdds builds the adapter. An empty apiKey yields a disabled source.
func NewOdds(apiKey, sport, regions string, bookmakers int, opts ...Option) *Odds {
	s := applyOptions(oddsName, oddsBaseURL, opts)
	if sport == "" {
		sport = "soccer_epl"
	}
	if regions == "" {
		regions = "eu"
	}
	if bookmakers <= 0 {
		bookmakers = 1
	}
	o := &Odds{
		settings:   s,
		client:     newHTTPClient(s.client, s.requestsPerMinute, http.Header{}),
		apiKey:     apiKey,
		sport:      sport,
		regions:    regions,
		bookmakers: bookmakers,
		prices:     make(map[string]float64),
	}
	if apiKey == "" {
		o.disabled.Store(true)
		s.logger.Warn(context.Background(), "odds source disabled: no api key")
	}
	return o
}

// Name identifies the source.
func (o *Odds) Name() string { return oddsName }

// Disabled reports whether the source stopped polling.
func (o *Odds) Disabled() bool { return o.disabled.Load() }

type oddsEvent struct {
	ID         string          `json:"id"`
	HomeTeam   string          `json:"home_team"`
	AwayTeam   string          `json:"away_team"`
	Bookmakers []oddsBookmaker `json:"bookmakers"`
}

type oddsBookmaker struct {
	Key     string       `json:"key"`
	Markets []oddsMarket `json:"markets"`
}

type oddsMarket struct {
	Key      string        `json:"key"`
	Outcomes []oddsOutcome `json:"outcomes"`
}

type oddsOutcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Fetch returns one odds_delta reading per event with an "Over" totals price.
func (o *Odds) Fetch(ctx context.Context) ([]model.Reading, error) {
	if o.disabled.Load() {
		return nil, ErrSourceDisabled
	}

	q := url.Values{}
	q.Set("regions", o.regions)
	q.Set("markets", oddsMarkets)
	q.Set("apiKey", o.apiKey)
	u := fmt.Sprintf("%s/v4/sports/%s/odds?%s", strings.TrimSuffix(o.baseURL, "/"), url.PathEscape(o.sport), q.Encode())

	var events []oddsEvent
	if err := o.client.getJSON(ctx, u, &events); err != nil {
		var se *statusError
		if errors.As(err, &se) && rejectsForGood(se.Code) {
			o.disabled.Store(true)
			o.logger.Warn(ctx, "odds source disabled after rejection", logger.Int("status", se.Code))
		}
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	readings := make([]model.Reading, 0, len(events))
	for _, ev := range events {
		id := ev.ID
		if id == "" {
			id = ev.HomeTeam + ev.AwayTeam
		}
		if id == "" {
			continue
		}
		price, ok := o.overPrice(ev)
		if !ok {
			continue
		}
		prev, seen := o.prices[id]
		if !seen {
			prev = price
		}
		o.prices[id] = price

		delta := math.Max(0, math.Min(10, (prev-price)*oddsDeltaScale))
		readings = append(readings, model.NewReading(oddsName, id, map[model.Metric]float64{
			model.OddsDelta: delta,
		}))
	}
	return readings, nil
}

// overPrice returns the first "Over" totals price among the considered bookmakers.
func (o *Odds) overPrice(ev oddsEvent) (float64, bool) {
	books := ev.Bookmakers
	if len(books) > o.bookmakers {
		books = books[:o.bookmakers]
	}
	for _, b := range books {
		for _, m := range b.Markets {
			if m.Key != "totals" {
				continue
			}
			for _, out := range m.Outcomes {
				if strings.EqualFold(out.Name, "over") && out.Price > 0 {
					return out.Price, true
				}
			}
		}
	}
	return 0, false
}

func rejectsForGood(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}
