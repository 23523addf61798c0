package events

import "time"

// EventType identifies the kind of event being published.
type EventType string

const (
	// Liveness events
	APIUp   EventType = "api_up"
	APIDown EventType = "api_down"

	// Trend events
	TrendUpdated           EventType = "trend_updated"
	GoalFeasibilityChanged EventType = "goal_feasibility_changed"

	// Reminder events
	ReminderScheduled EventType = "reminder_scheduled"
	ReminderCancelled EventType = "reminder_cancelled"
	ReminderFired     EventType = "reminder_fired"
)

// Severity indicates the urgency of an event.
type Severity int

const (
	SeverityInfo    Severity = 0
	SeverityWarning Severity = 1
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Event is the payload published through the bus.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Severity  Severity          `json:"severity"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
