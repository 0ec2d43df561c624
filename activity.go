package multitoken

import (
	"context"
	"fmt"
	"time"
)

// EventType enumerates the auth flow notifications.
type EventType string

const (
	EventLoginAttempt           EventType = "auth.login.attempt"
	EventLoginSuccess           EventType = "auth.login.success"
	EventLoginFailure           EventType = "auth.login.failure"
	EventSessionRevoked         EventType = "auth.session.revoked"
	EventPasswordResetRequested EventType = "auth.password_reset.token_created"
	EventPasswordResetSuccess   EventType = "auth.password.reset"
)

// Event is delivered to every Subscriber. Which fields are set depends on
// the type: login attempts only carry Identifier, never the password.
type Event struct {
	Type       EventType
	Identifier string
	Identity   Identity
	Token      *Token
	ResetToken *ResetToken
	// Reused is set on EventPasswordResetRequested when an existing reset
	// token was handed out again
	Reused     bool
	Metadata   map[string]any
	OccurredAt time.Time
}

// Subscriber consumes auth flow events. Delivery is synchronous and happens
// after the change is persisted; returned errors are logged and dropped.
type Subscriber interface {
	Notify(ctx context.Context, event Event) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, event Event) error

// Notify implements Subscriber.
func (f SubscriberFunc) Notify(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type notifier struct {
	subscribers []Subscriber
	logger      Logger
}

func newNotifier(logger Logger, subscribers ...Subscriber) *notifier {
	n := &notifier{logger: normalizeLogger(logger)}
	n.add(subscribers...)
	return n
}

func (n *notifier) add(subscribers ...Subscriber) {
	for _, s := range subscribers {
		if s != nil {
			n.subscribers = append(n.subscribers, s)
		}
	}
}

// emit calls subscribers in registration order
func (n *notifier) emit(ctx context.Context, event Event) {
	for i, s := range n.subscribers {
		if err := n.deliver(ctx, s, event); err != nil {
			n.logger.Warn("subscriber failed",
				"event", string(event.Type),
				"subscriber", i,
				"error", err,
			)
		}
	}
}

func (n *notifier) deliver(ctx context.Context, s Subscriber, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return s.Notify(ctx, event)
}

// NewLoggingSubscriber logs every event. Keys are never logged.
func NewLoggingSubscriber(logger Logger) Subscriber {
	logger = normalizeLogger(logger)
	return SubscriberFunc(func(_ context.Context, event Event) error {
		args := []any{"event", string(event.Type)}
		if event.Identifier != "" {
			args = append(args, "identifier", event.Identifier)
		}
		if event.Identity != nil {
			args = append(args, "user_id", event.Identity.ID())
		}
		if event.Token != nil {
			args = append(args, "token_id", event.Token.ID, "ip", event.Token.LastKnownIP)
		}
		if event.ResetToken != nil {
			args = append(args, "reset_token_id", event.ResetToken.ID, "reused", event.Reused)
		}
		logger.Info("auth event", args...)
		return nil
	})
}
