package model

import "time"

// Alert is an emitted notification for one entity.
// PreviousTier is nil on the first alert for the entity.
type Alert struct {
	ID           string       `json:"id"`
	EntityID     string       `json:"entity_id"`
	Score        float64      `json:"score"`
	Tier         Tier         `json:"tier"`
	PreviousTier *Tier        `json:"previous_tier,omitempty"`
	Fused        FusedReading `json:"fused_reading"`
	Timestamp    time.Time    `json:"timestamp"`
}

// AlertRecord is the last emitted alert for an entity.
type AlertRecord struct {
	EntityID  string    `json:"entity_id" yaml:"entity_id"`
	Tier      Tier      `json:"tier" yaml:"tier"`
	EmittedAt time.Time `json:"emitted_at" yaml:"emitted_at"`
}
