package triggers

import (
	"context"
	"encoding/json"
	"time"
)

// TriggerType defines the type of event trigger. The station runtime only
// ever mirrors ConfigStore rows to a YAML file on disk, so filesystem is the
// only connector implemented; the type stays a string so a future
// connector doesn't require a schema migration.
type TriggerType string

const (
	TriggerTypeFilesystem TriggerType = "filesystem" // on-disk YAML config mirror
)

// Trigger defines configuration for a config-revision watch.
type Trigger struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Type      TriggerType            `json:"type"`
	Enabled   bool                   `json:"enabled"`
	Config    map[string]interface{} `json:"config"` // connector-specific configuration
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// TriggerEvent represents an event received by a trigger.
type TriggerEvent struct {
	TriggerID string                 `json:"trigger_id"`
	EventID   string                 `json:"event_id"`
	Source    string                 `json:"source"`
	Type      string                 `json:"type"`
	Data      json.RawMessage        `json:"data"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

// Connector defines the interface for event source connectors.
type Connector interface {
	// Start begins consuming events
	Start(ctx context.Context) error

	// Stop gracefully stops the connector
	Stop() error

	// Type returns the trigger type this connector handles
	Type() TriggerType

	// IsHealthy checks if the connector is operational
	IsHealthy() bool
}

// EventHandler processes events from triggers.
type EventHandler interface {
	// Handle processes a trigger event
	Handle(ctx context.Context, event *TriggerEvent) error
}
