package notify

import (
	"log"
)

// Event is one best-effort outbound notification. Delivery failures are
// captured and logged; they never fail the request that produced them.
type Event struct {
	Kind    string
	UserID  uint
	Subject string
	Detail  map[string]interface{}
}

// Event kinds emitted by the judging core.
const (
	KindScreeningPassed = "screening_passed"
	KindScreeningFailed = "screening_failed"
	KindSessionSettled  = "session_settled"
)

// Sender delivers a single event. The email/push gateway is external to the
// core; an adapter implementing Sender is the seam it plugs into.
type Sender interface {
	Send(event Event) error
}

// Notifier dispatches events asynchronously with explicit error capture.
type Notifier struct {
	sender Sender
}

// New creates a Notifier backed by the given Sender. A nil sender falls back
// to the log sink.
func New(sender Sender) *Notifier {
	if sender == nil {
		sender = LogSender{}
	}
	return &Notifier{sender: sender}
}

// Dispatch sends the event on its own goroutine. Errors are logged, never
// returned to the caller.
func (n *Notifier) Dispatch(event Event) {
	go func() {
		if err := n.sender.Send(event); err != nil {
			log.Printf("[Notify] failed to deliver %s event for user %d: %v", event.Kind, event.UserID, err)
		}
	}()
}

// LogSender writes events to the process log. Stands in for the external
// notification gateway in development and tests.
type LogSender struct{}

func (LogSender) Send(event Event) error {
	log.Printf("[Notify] %s user=%d subject=%q detail=%v", event.Kind, event.UserID, event.Subject, event.Detail)
	return nil
}
