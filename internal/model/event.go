package model

import "time"

// EventType names one kind of behavioral event.
type EventType string

const (
	EventLogin             EventType = "login"
	EventSessionScheduled  EventType = "session_scheduled"
	EventSessionCompleted  EventType = "session_completed"
	EventProfileUpdated    EventType = "profile_updated"
	EventMessageSent       EventType = "message_sent"
	EventCoachingScheduled EventType = "coaching_scheduled"
	EventCoachingAttended  EventType = "coaching_attended"
	EventEmailOpened       EventType = "email_opened"
	EventEmailClicked      EventType = "email_clicked"
)

// EngagementEvent is one behavioral event for a tutor. EventData is a small
// JSON object whose keys depend on the event type (device/ip for logins,
// session references for scheduling, intervention references for email events).
type EngagementEvent struct {
	EventID   string         `json:"event_id"`
	TutorID   string         `json:"tutor_id"`
	EventType EventType      `json:"event_type"`
	EventData map[string]any `json:"event_data"`
	Timestamp time.Time      `json:"timestamp"`
}
