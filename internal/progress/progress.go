// Package progress broadcasts coarse progress events for long-running
// sync operations to connected WebSocket clients. Emission is purely
// observational: no caller may block or fail because a progress event
// could not be delivered.
package progress

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/relayarr/relayarr/internal/websocket"
)

// ActivityType identifies the kind of operation being tracked.
type ActivityType string

const (
	ActivityTypeStatusSync    ActivityType = "status-sync"
	ActivityTypeInstanceSync  ActivityType = "instance-sync"
	ActivityTypeWatchlistScan ActivityType = "watchlist-scan"
	ActivityTypeRuleImport    ActivityType = "rule-import"
)

// Status represents the current state of an activity.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Activity is one trackable operation with progress.
type Activity struct {
	ID          string       `json:"id"`
	Type        ActivityType `json:"type"`
	Title       string       `json:"title"`
	Message     string       `json:"message"`
	Progress    int          `json:"progress"` // 0-100, -1 for indeterminate
	Status      Status       `json:"status"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// EventType identifies the type of progress event.
type EventType string

const (
	EventTypeStarted   EventType = "progress:started"
	EventTypeUpdate    EventType = "progress:update"
	EventTypeCompleted EventType = "progress:completed"
	EventTypeError     EventType = "progress:error"
)

// Manager tracks active operations and broadcasts their progress. A nil
// hub turns every broadcast into a no-op, which is how tests and
// headless runs use it.
type Manager struct {
	hub        *websocket.Hub
	activities map[string]*Activity
	mu         sync.RWMutex
	logger     zerolog.Logger
}

// NewManager creates a progress manager.
func NewManager(hub *websocket.Hub, logger zerolog.Logger) *Manager {
	return &Manager{
		hub:        hub,
		activities: make(map[string]*Activity),
		logger:     logger.With().Str("component", "progress").Logger(),
	}
}

// HasListeners reports whether any client is connected. Callers may use
// it to skip building expensive progress messages, but emitting without
// checking is always safe.
func (m *Manager) HasListeners() bool {
	return m.hub != nil && m.hub.ClientCount() > 0
}

// Start begins tracking an operation.
func (m *Manager) Start(id string, activityType ActivityType, title string) {
	m.mu.Lock()
	activity := &Activity{
		ID:        id,
		Type:      activityType,
		Title:     title,
		Progress:  0,
		Status:    StatusInProgress,
		StartedAt: time.Now(),
	}
	m.activities[id] = activity
	m.mu.Unlock()

	m.broadcast(EventTypeStarted, activity)
	m.logger.Debug().Str("id", id).Str("type", string(activityType)).Msg("activity started")
}

// Update reports progress for a tracked operation. Unknown ids are
// ignored so emit sites never have to guard against races with
// completion.
func (m *Manager) Update(id string, message string, percent int) {
	m.mu.Lock()
	activity, ok := m.activities[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	activity.Message = message
	activity.Progress = percent
	snapshot := *activity
	m.mu.Unlock()

	m.broadcast(EventTypeUpdate, &snapshot)
}

// Complete marks an operation as finished.
func (m *Manager) Complete(id string, message string) {
	m.finish(id, StatusCompleted, EventTypeCompleted, message, 100)
}

// Fail marks an operation as failed.
func (m *Manager) Fail(id string, message string) {
	m.finish(id, StatusFailed, EventTypeError, message, -1)
}

func (m *Manager) finish(id string, status Status, event EventType, message string, percent int) {
	m.mu.Lock()
	activity, ok := m.activities[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	activity.Status = status
	activity.Message = message
	if percent >= 0 {
		activity.Progress = percent
	}
	activity.CompletedAt = &now
	snapshot := *activity
	delete(m.activities, id)
	m.mu.Unlock()

	m.broadcast(event, &snapshot)
	m.logger.Debug().Str("id", id).Str("status", string(status)).Msg("activity finished")
}

// Active returns a snapshot of every in-flight activity.
func (m *Manager) Active() []Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Activity, 0, len(m.activities))
	for _, a := range m.activities {
		out = append(out, *a)
	}
	return out
}

func (m *Manager) broadcast(eventType EventType, activity *Activity) {
	if m.hub == nil {
		return
	}
	m.hub.Broadcast(string(eventType), activity)
}
