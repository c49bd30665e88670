package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/savegress/fundlens/internal/config"
	"github.com/savegress/fundlens/pkg/models"
)

// Actions recorded by the API layer.
const (
	ActionEntityCreated       = "entity.created"
	ActionTransactionRecorded = "transaction.recorded"
	ActionSARFiled            = "sar.filed"
	ActionPatternsDetected    = "patterns.detected"
	ActionReportGenerated     = "report.generated"
	ActionAlertAcknowledged   = "alert.acknowledged"
	ActionAlertResolved       = "alert.resolved"
)

// Logger keeps an in-memory trail of investigative actions. Events are
// queued through a buffered channel and stored in arrival order, with
// the oldest evicted once the configured cap is reached.
type Logger struct {
	config  *config.AuditConfig
	events  []*models.AuditEvent
	dropped int
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	eventCh chan *models.AuditEvent
}

// NewLogger creates a new audit logger
func NewLogger(cfg *config.AuditConfig) *Logger {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 256
	}
	if cfg.MaxEvents == 0 {
		cfg.MaxEvents = 10000
	}
	return &Logger{
		config:  cfg,
		stopCh:  make(chan struct{}),
		eventCh: make(chan *models.AuditEvent, cfg.BufferSize),
	}
}

// Start starts the audit logger
func (l *Logger) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.mu.Unlock()

	go l.processEvents(ctx)
	return nil
}

// Stop stops the audit logger
func (l *Logger) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		close(l.stopCh)
		l.running = false
	}
}

// Running reports whether the storage loop is active
func (l *Logger) Running() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

func (l *Logger) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case event := <-l.eventCh:
			l.mu.Lock()
			l.events = append(l.events, event)
			if len(l.events) > l.config.MaxEvents {
				// Evict the oldest event once the cap is reached
				l.events = l.events[1:]
			}
			l.mu.Unlock()
		}
	}
}

// Record captures an audit event. The event is queued for storage and
// counted as dropped if the buffer is full.
func (l *Logger) Record(action, resource, resourceID, detail string) *models.AuditEvent {
	if !l.config.Enabled {
		return nil
	}

	event := &models.AuditEvent{
		ID:         uuid.New().String(),
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Detail:     detail,
		Recorded:   time.Now(),
	}

	select {
	case l.eventCh <- event:
	default:
		l.mu.Lock()
		l.dropped++
		l.mu.Unlock()
	}

	return event
}

// EventFilter defines filters for event queries
type EventFilter struct {
	Action   string
	Resource string
	Since    *time.Time
	Limit    int
}

// ListEvents retrieves audit events matching the filter, newest first
func (l *Logger) ListEvents(filter EventFilter) []*models.AuditEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	results := []*models.AuditEvent{}
	for i := len(l.events) - 1; i >= 0; i-- {
		event := l.events[i]
		if !l.matchesFilter(event, filter) {
			continue
		}
		results = append(results, event)
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results
}

func (l *Logger) matchesFilter(event *models.AuditEvent, filter EventFilter) bool {
	if filter.Action != "" && event.Action != filter.Action {
		return false
	}
	if filter.Resource != "" && event.Resource != filter.Resource {
		return false
	}
	if filter.Since != nil && event.Recorded.Before(*filter.Since) {
		return false
	}
	return true
}

// GetStats returns audit statistics
func (l *Logger) GetStats() *Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := &Stats{
		TotalEvents:   len(l.events),
		DroppedEvents: l.dropped,
		ByAction:      make(map[string]int),
		ByResource:    make(map[string]int),
	}

	for _, event := range l.events {
		stats.ByAction[event.Action]++
		stats.ByResource[event.Resource]++
	}

	return stats
}

// Stats contains audit statistics
type Stats struct {
	TotalEvents   int            `json:"total_events"`
	DroppedEvents int            `json:"dropped_events"`
	ByAction      map[string]int `json:"by_action"`
	ByResource    map[string]int `json:"by_resource"`
}
