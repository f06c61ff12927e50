package sources

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/logger"
)

const (
	sofaScoreName        = "sofascore"
	sofaScoreBaseURL     = "https://www.sofascore.com"
	sofaScoreLivePath    = "/football/live"
	sofaScoreCacheTTL    = 20 * time.Second
	sofaScoreMaxMatches  = 25
	sofaScoreDefaultUser = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36"
)

var (
	matchIDExpr = regexp.MustCompile(`/match/([\w-]+)`)
	intExpr     = regexp.MustCompile(`\d+`)
	decimalExpr = regexp.MustCompile(`[0-9]+\.[0-9]+`)
)

type cachedPage struct {
	at      time.Time
	metrics model.Metrics
}

// SofaScore scrapes the public live page and each match page.
type SofaScore struct {
	settings
	client     *httpClient
	maxMatches int

	mu    sync.Mutex
	cache map[string]cachedPage
}

// NewSofaScore builds the scraper. userAgent and maxMatches fall back to defaults when empty.
func NewSofaScore(userAgent string, maxMatches int, opts ...Option) *SofaScore {
	s := applyOptions(sofaScoreName, sofaScoreBaseURL, opts)
	if userAgent == "" {
		userAgent = sofaScoreDefaultUser
	}
	if maxMatches <= 0 {
		maxMatches = sofaScoreMaxMatches
	}
	headers := http.Header{}
	headers.Set("User-Agent", userAgent)
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	return &SofaScore{
		settings:   s,
		client:     newHTTPClient(s.client, s.requestsPerMinute, headers),
		maxMatches: maxMatches,
		cache:      make(map[string]cachedPage),
	}
}

// Name identifies the source.
func (s *SofaScore) Name() string { return sofaScoreName }

type fixtureLink struct {
	id  string
	url string
}

// Fetch returns one reading per live fixture. A failing match page is skipped.
func (s *SofaScore) Fetch(ctx context.Context) ([]model.Reading, error) {
	doc, err := s.document(ctx, strings.TrimSuffix(s.baseURL, "/")+sofaScoreLivePath)
	if err != nil {
		return nil, fmt.Errorf("live page: %w", err)
	}

	links := s.fixtureLinks(doc)
	if len(links) > s.maxMatches {
		links = links[:s.maxMatches]
	}

	readings := make([]model.Reading, 0, len(links))
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return readings, err
		}
		ms, err := s.matchMetrics(ctx, link)
		if err != nil {
			s.logger.Debug(ctx, "match page failed",
				logger.String("fixture_id", link.id),
				logger.Error(err),
			)
			continue
		}
		readings = append(readings, model.Reading{Source: sofaScoreName, EntityID: link.id, Metrics: ms})
	}
	return readings, nil
}

func (s *SofaScore) matchMetrics(ctx context.Context, link fixtureLink) (model.Metrics, error) {
	now := s.now()
	s.mu.Lock()
	if c, ok := s.cache[link.id]; ok && now.Sub(c.at) < sofaScoreCacheTTL {
		s.mu.Unlock()
		return c.metrics, nil
	}
	s.mu.Unlock()

	doc, err := s.document(ctx, link.url)
	if err != nil {
		return model.Metrics{}, err
	}
	ms := parseMatchPage(doc)

	s.mu.Lock()
	s.cache[link.id] = cachedPage{at: now, metrics: ms}
	s.mu.Unlock()
	return ms, nil
}

func (s *SofaScore) document(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := s.client.get(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// fixtureLinks extracts unique match links in page order.
func (s *SofaScore) fixtureLinks(doc *goquery.Document) []fixtureLink {
	var out []fixtureLink
	seen := map[string]struct{}{}
	doc.Find("a[href*='/match/']").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		m := matchIDExpr.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id := m[1]
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		if !strings.HasPrefix(href, "http") {
			href = strings.TrimSuffix(s.baseURL, "/") + href
		}
		out = append(out, fixtureLink{id: id, url: href})
	})
	return out
}

// parseMatchPage reads the statistics rows and the momentum bars.
func parseMatchPage(doc *goquery.Document) model.Metrics {
	values := map[model.Metric]float64{}

	rows := doc.Find(".statRow")
	if rows.Length() == 0 {
		rows = doc.Find(".js-stat-row")
	}
	if rows.Length() == 0 {
		rows = doc.Find(".stat-row")
	}
	rows.Each(func(_ int, row *goquery.Selection) {
		text := strings.ToLower(strings.Join(strings.Fields(row.Text()), " "))
		switch {
		case strings.Contains(text, "dangerous attacks"):
			if n, ok := firstInt(text); ok {
				values[model.DangerousAttacks] = n
			}
		case strings.Contains(text, "on target"):
			if n, ok := firstInt(text); ok {
				values[model.ShotsOnTarget] = n
			}
		case strings.Contains(text, "xg"):
			if m := decimalExpr.FindString(text); m != "" {
				if v, err := strconv.ParseFloat(m, 64); err == nil {
					values[model.ExpectedGoals] = v
				}
			}
		}
	})

	bars := doc.Find(".momentum__bar .momentum__value")
	if bars.Length() == 0 {
		bars = doc.Find(".momentumBar .value")
	}
	var sum float64
	var n int
	bars.Each(func(_ int, b *goquery.Selection) {
		v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(b.Text()), "%"), 64)
		if err != nil {
			return
		}
		sum += v
		n++
	})
	if n > 0 {
		// Momentum is a 0-100 share; pressure is on a 0-10 scale.
		values[model.Pressure] = math.Round(math.Min(10, sum/float64(n)/10)*100) / 100
	}

	return model.MetricsFrom(values)
}

func firstInt(text string) (float64, bool) {
	m := intExpr.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	return v, err == nil
}
