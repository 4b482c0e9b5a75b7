package core

import (
	"context"
	"time"
)

type EventType string

const (
	EventActivityStarted  EventType = "activity.started"
	EventActivityEnded    EventType = "activity.ended"
	EventActivityAdvanced EventType = "activity.advanced"
	EventRoundStarted     EventType = "round.started"
	EventRoundEnded       EventType = "round.ended"
	EventMessageCreated   EventType = "message.created"
	EventChoiceSubmitted  EventType = "choice.submitted"
	EventFinalSubmitted   EventType = "final.submitted"
	EventGroupsAssigned   EventType = "groups.assigned"
)

// Event describes a committed state change. Only ids travel; subscribers re-read what they need.
type Event struct {
	Type       EventType `json:"type"`
	ActivityID string    `json:"activity_id"`
	QuestionID string    `json:"question_id,omitempty"`
	GroupID    string    `json:"group_id,omitempty"`
	RoundID    string    `json:"round_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	At         time.Time `json:"at"`
}

// Channel is the subscription scope of the event: the group when set, the activity otherwise.
func (evt Event) Channel() string {
	if evt.GroupID != "" {
		return "group:" + evt.GroupID
	}
	return "activity:" + evt.ActivityID
}

// Notifier delivers events to subscribers. Delivery is best effort:
// implementations log their failures and never fail the committed operation.
type Notifier interface {
	Notify(ctx context.Context, evt Event)
}
