// Package types contains read models shared by the service and the HTTP layer.
package types

import (
	"time"

	"github.com/okian/goalpulse/internal/domain/model"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank      int        `json:"rank"`
	EntityID  string     `json:"entity_id"`
	Score     float64    `json:"score"`
	Tier      model.Tier `json:"tier"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Fixture is the detailed view of one tracked entity.
type Fixture struct {
	Entry
	Trend     float64              `json:"trend"`
	Means     model.Metrics        `json:"means"`
	Window    []model.FusedReading `json:"window"`
	LastAlert *model.AlertRecord   `json:"last_alert,omitempty"`
}

// SourceReport summarises one source fetch within a cycle.
type SourceReport struct {
	Source   string        `json:"source"`
	Readings int           `json:"readings"`
	Latency  time.Duration `json:"latency_ns"`
	Error    string        `json:"error,omitempty"`
}

// CycleReport summarises one polling cycle.
type CycleReport struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceReport `json:"sources"`
	Readings   int            `json:"readings"`
	Fused      int            `json:"fused"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Retired    []string       `json:"retired,omitempty"`
	Alerts     []model.Alert  `json:"alerts"`
	Dropped    int            `json:"dropped"`
	Cancelled  bool           `json:"cancelled,omitempty"`
}

// Stats is the operational snapshot returned by GET /stats.
type Stats struct {
	Cycles          uint64         `json:"cycles"`
	LastCycle       *CycleReport   `json:"last_cycle,omitempty"`
	TrackedEntities int            `json:"tracked_entities"`
	AlertRecords    int            `json:"alert_records"`
	EntitiesByTier  map[string]int `json:"entities_by_tier"`
	AlertsEmitted   uint64         `json:"alerts_emitted"`
	AlertsDropped   uint64         `json:"alerts_dropped"`
	QueueDepth      int            `json:"queue_depth"`
	QueueCapacity   int            `json:"queue_capacity"`
	Workers         int            `json:"workers"`
	Sources         []string       `json:"sources"`
	Notifier        string         `json:"notifier"`
	WindowSize      int            `json:"window_size"`
	Uptime          string         `json:"uptime"`
}
