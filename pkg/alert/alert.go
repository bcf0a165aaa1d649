package alert

import (
	"context"
	"errors"
	"fmt"
)

// DatasetSummary describes one dataset in a run notification.
type DatasetSummary struct {
	Name      string `json:"name"`
	CleanRows int    `json:"clean_rows"`
	Path      string `json:"path"`
}

// Notification is the data sent to alert destinations.
type Notification struct {
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	RunID     int64            `json:"run_id,omitempty"`
	Succeeded bool             `json:"succeeded"`
	Datasets  []DatasetSummary `json:"datasets,omitempty"`
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
