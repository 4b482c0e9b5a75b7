package notifysvc

import (
	"context"
	"sync"

	"github.com/trezcool/baraza/core"
)

// ConsoleNotifier logs events. Used when redis is not configured.
type ConsoleNotifier struct {
	logger core.Logger
}

var _ core.Notifier = (*ConsoleNotifier)(nil)

func NewConsoleNotifier(logger core.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{logger: logger}
}

func (n *ConsoleNotifier) Notify(_ context.Context, evt core.Event) {
	n.logger.Info("event",
		"type", evt.Type,
		"channel", evt.Channel(),
		"activity_id", evt.ActivityID,
		"question_id", evt.QuestionID,
		"round_id", evt.RoundID,
		"message_id", evt.MessageID,
	)
}

// RecordingNotifier keeps the events it receives. Used in tests.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []core.Event
}

var _ core.Notifier = (*RecordingNotifier)(nil)

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) Notify(_ context.Context, evt core.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

// Events returns the recorded events, oldest first.
func (n *RecordingNotifier) Events() []core.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.Event(nil), n.events...)
}

// Types returns the types of the recorded events, oldest first.
func (n *RecordingNotifier) Types() []core.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]core.EventType, 0, len(n.events))
	for _, evt := range n.events {
		types = append(types, evt.Type)
	}
	return types
}
