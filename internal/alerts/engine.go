package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/savegress/fundlens/internal/config"
	"github.com/savegress/fundlens/pkg/models"
)

// Engine turns detected patterns into reviewable alerts and manages
// their lifecycle. Alerts deduplicate on the pattern's deterministic
// id: re-detecting a finding refreshes the open alert instead of
// raising a second one.
type Engine struct {
	config    *config.AlertsConfig
	alerts    map[string]*models.Alert
	byPattern map[string]string // pattern id -> alert id
	onAlert   func(*models.Alert)
	notifyCh  chan *models.Alert
	mu        sync.RWMutex
	running   bool
	stopCh    chan struct{}
}

// NewEngine creates a new alert engine
func NewEngine(cfg *config.AlertsConfig) *Engine {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 256
	}
	return &Engine{
		config:    cfg,
		alerts:    make(map[string]*models.Alert),
		byPattern: make(map[string]string),
		notifyCh:  make(chan *models.Alert, cfg.BufferSize),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the notification loop
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	go e.notifyLoop(ctx)
	return nil
}

// Stop stops the alert engine
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		close(e.stopCh)
		e.running = false
	}
}

// Running reports whether the notification loop is active
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// SetAlertCallback sets a callback invoked for each newly raised alert
func (e *Engine) SetAlertCallback(cb func(*models.Alert)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onAlert = cb
}

func (e *Engine) notifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case alert := <-e.notifyCh:
			e.mu.RLock()
			cb := e.onAlert
			e.mu.RUnlock()
			if cb != nil {
				cb(alert)
			}
		}
	}
}

// RaiseFromPattern records an alert for a detected pattern. Patterns
// below the confidence floor are ignored and return nil. A pattern
// whose alert is still open refreshes that alert in place; a new alert
// is created when none exists or the previous one was resolved.
func (e *Engine) RaiseFromPattern(pattern *models.Pattern, asOf time.Time) *models.Alert {
	if pattern.Confidence < e.config.MinConfidence {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if alertID, ok := e.byPattern[pattern.ID]; ok {
		if alert, ok := e.alerts[alertID]; ok && alert.Status != models.AlertStatusResolved {
			alert.Confidence = pattern.Confidence
			alert.Severity = pattern.RiskLevel
			alert.Message = pattern.Description
			alert.UpdatedAt = asOf
			return alert
		}
	}

	alert := &models.Alert{
		ID:          uuid.New().String(),
		PatternID:   pattern.ID,
		PatternType: pattern.Type,
		EntityIDs:   append([]string(nil), pattern.EntityIDs...),
		Severity:    pattern.RiskLevel,
		Status:      models.AlertStatusActive,
		Title:       alertTitle(pattern.Type),
		Message:     pattern.Description,
		Confidence:  pattern.Confidence,
		CreatedAt:   asOf,
		UpdatedAt:   asOf,
	}
	e.alerts[alert.ID] = alert
	e.byPattern[pattern.ID] = alert.ID

	select {
	case e.notifyCh <- alert:
	default:
		// Drop notification if buffer full
	}
	return alert
}

// RaiseFromPatterns raises alerts for a batch of patterns and returns
// the alerts that were created or refreshed.
func (e *Engine) RaiseFromPatterns(patterns []*models.Pattern, asOf time.Time) []*models.Alert {
	var raised []*models.Alert
	for _, pattern := range patterns {
		if alert := e.RaiseFromPattern(pattern, asOf); alert != nil {
			raised = append(raised, alert)
		}
	}
	return raised
}

// GetAlert retrieves an alert by ID
func (e *Engine) GetAlert(id string) (*models.Alert, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	alert, ok := e.alerts[id]
	return alert, ok
}

// Filter defines filters for alert queries
type Filter struct {
	Status   models.AlertStatus
	Severity models.RiskLevel
	EntityID string
	Limit    int
}

// ListAlerts lists alerts matching the filter, newest first
func (e *Engine) ListAlerts(filter Filter) []*models.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	results := []*models.Alert{}
	for _, alert := range e.alerts {
		if e.matchesFilter(alert, filter) {
			results = append(results, alert)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})

	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results
}

func (e *Engine) matchesFilter(alert *models.Alert, filter Filter) bool {
	if filter.Status != "" && alert.Status != filter.Status {
		return false
	}
	if filter.Severity != "" && alert.Severity != filter.Severity {
		return false
	}
	if filter.EntityID != "" {
		found := false
		for _, id := range alert.EntityIDs {
			if id == filter.EntityID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Acknowledge marks an alert as acknowledged by a user
func (e *Engine) Acknowledge(id, user string, asOf time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, ok := e.alerts[id]
	if !ok {
		return ErrAlertNotFound
	}
	if alert.Status == models.AlertStatusResolved {
		return ErrAlertResolved
	}

	when := asOf
	alert.Status = models.AlertStatusAcknowledged
	alert.AckedBy = user
	alert.AckedAt = &when
	alert.UpdatedAt = asOf

	return nil
}

// Resolve closes an alert. Resolving an already resolved alert is a
// no-op that keeps the original resolution.
func (e *Engine) Resolve(id, user, note string, asOf time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, ok := e.alerts[id]
	if !ok {
		return ErrAlertNotFound
	}
	if alert.Status == models.AlertStatusResolved {
		return nil
	}

	when := asOf
	alert.Status = models.AlertStatusResolved
	alert.ResolvedBy = user
	alert.ResolvedAt = &when
	alert.Note = note
	alert.UpdatedAt = asOf

	return nil
}

// GetStats returns alerting statistics
func (e *Engine) GetStats() *Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := &Stats{
		TotalAlerts: len(e.alerts),
		BySeverity:  make(map[string]int),
		ByStatus:    make(map[string]int),
		ByType:      make(map[string]int),
	}

	for _, alert := range e.alerts {
		stats.BySeverity[string(alert.Severity)]++
		stats.ByStatus[string(alert.Status)]++
		stats.ByType[string(alert.PatternType)]++

		if alert.Status == models.AlertStatusActive {
			stats.ActiveAlerts++
		}
	}

	return stats
}

// Stats contains alerting statistics
type Stats struct {
	TotalAlerts  int            `json:"total_alerts"`
	ActiveAlerts int            `json:"active_alerts"`
	BySeverity   map[string]int `json:"by_severity"`
	ByStatus     map[string]int `json:"by_status"`
	ByType       map[string]int `json:"by_type"`
}

func alertTitle(ptype models.PatternType) string {
	switch ptype {
	case models.PatternStructuring:
		return "Structuring activity detected"
	case models.PatternCircularTransactions:
		return "Circular transaction flow detected"
	case models.PatternRapidMovement:
		return "Rapid fund movement detected"
	default:
		return "Suspicious pattern detected"
	}
}

// Errors
var (
	ErrAlertNotFound = &Error{Code: "ALERT_NOT_FOUND", Message: "Alert not found"}
	ErrAlertResolved = &Error{Code: "ALERT_RESOLVED", Message: "Alert already resolved"}
)

// Error represents an alerting error
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
