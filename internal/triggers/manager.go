package triggers

import (
	"context"
	"fmt"
	"sync"

	"github.com/fenwick-labs/stationrt/internal/logging"
)

// Reloader applies a changed on-disk YAML config mirror to the live
// ConfigStore, producing a new TestModel revision. cmd/station wires the
// concrete implementation (configstore.YamlReloader: parse YAML and upsert
// every model it lists as a new revision through configstore.Store, without
// diffing against the current revision).
type Reloader interface {
	Reload(ctx context.Context, path string) error
}

// Manager coordinates all event triggers and their connectors.
type Manager struct {
	reloader   Reloader
	connectors map[string]Connector
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewManager creates a new trigger manager.
func NewManager(reloader Reloader) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		reloader:   reloader,
		connectors: make(map[string]Connector),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RegisterTrigger registers and starts a new trigger.
func (m *Manager) RegisterTrigger(trigger *Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.connectors[trigger.ID]; exists {
		return fmt.Errorf("trigger %s already registered", trigger.ID)
	}

	var connector Connector
	var err error

	handler := &configReloadHandler{reloader: m.reloader}

	switch trigger.Type {
	case TriggerTypeFilesystem:
		connector, err = NewFilesystemConnector(trigger, handler)
	default:
		return fmt.Errorf("unsupported trigger type: %s", trigger.Type)
	}

	if err != nil {
		return fmt.Errorf("create connector: %w", err)
	}

	if trigger.Enabled {
		if err := connector.Start(m.ctx); err != nil {
			return fmt.Errorf("start connector: %w", err)
		}
	}

	m.connectors[trigger.ID] = connector
	logging.Op().Info("trigger registered", "id", trigger.ID, "name", trigger.Name, "type", trigger.Type)
	return nil
}

// UnregisterTrigger stops and removes a trigger.
func (m *Manager) UnregisterTrigger(triggerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	connector, exists := m.connectors[triggerID]
	if !exists {
		return fmt.Errorf("trigger %s not found", triggerID)
	}

	if err := connector.Stop(); err != nil {
		logging.Op().Warn("failed to stop connector", "trigger", triggerID, "error", err)
	}

	delete(m.connectors, triggerID)
	logging.Op().Info("trigger unregistered", "id", triggerID)
	return nil
}

// Shutdown stops all connectors.
func (m *Manager) Shutdown() error {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, connector := range m.connectors {
		if err := connector.Stop(); err != nil {
			logging.Op().Warn("failed to stop connector during shutdown", "trigger", id, "error", err)
		}
	}

	m.connectors = make(map[string]Connector)
	logging.Op().Info("trigger manager shutdown complete")
	return nil
}

// TriggerStatus contains runtime status for a registered trigger.
type TriggerStatus struct {
	TriggerID string      `json:"trigger_id"`
	Type      TriggerType `json:"type"`
	Healthy   bool        `json:"healthy"`
}

// ListTriggerStatuses returns the runtime status of all registered triggers.
func (m *Manager) ListTriggerStatuses() []TriggerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]TriggerStatus, 0, len(m.connectors))
	for id, c := range m.connectors {
		statuses = append(statuses, TriggerStatus{
			TriggerID: id,
			Type:      c.Type(),
			Healthy:   c.IsHealthy(),
		})
	}
	return statuses
}

// GetTriggerStatus returns the runtime status of a single trigger.
func (m *Manager) GetTriggerStatus(triggerID string) (*TriggerStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.connectors[triggerID]
	if !exists {
		return nil, fmt.Errorf("trigger %s not found", triggerID)
	}
	return &TriggerStatus{
		TriggerID: triggerID,
		Type:      c.Type(),
		Healthy:   c.IsHealthy(),
	}, nil
}

// configReloadHandler implements EventHandler by reloading the ConfigStore
// from the changed YAML file.
type configReloadHandler struct {
	reloader Reloader
}

func (h *configReloadHandler) Handle(ctx context.Context, event *TriggerEvent) error {
	var path string
	if p, ok := event.Metadata["path"].(string); ok {
		path = p
	}
	logging.Op().Info("handling config trigger event", "trigger", event.TriggerID, "path", path)

	if err := h.reloader.Reload(ctx, path); err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	return nil
}
