package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical event envelope published to the event bus.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	RealmID       string          `json:"realm_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// SyncCompletedEvent announces a successful sync and per-category record counts.
type SyncCompletedEvent struct {
	RealmID    string         `json:"realm_id"`
	Categories []string       `json:"categories"`
	Counts     map[string]int `json:"counts"`
	HasReports bool           `json:"has_reports"`
	CapturedAt time.Time      `json:"captured_at"`
}
