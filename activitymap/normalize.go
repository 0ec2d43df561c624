// Package activitymap flattens auth flow events into a transport-agnostic
// activity record for audit trails.
package activitymap

import (
	"context"
	"strconv"
	"strings"
	"time"

	multitoken "github.com/goliatone/go-multitoken"
)

const (
	// MetadataKeyIP stores the client address of the session or reset token.
	MetadataKeyIP = "ip"
	// MetadataKeyUserAgent stores the client user agent.
	MetadataKeyUserAgent = "user_agent"
	// MetadataKeyReused marks reset tokens handed out again.
	MetadataKeyReused = "reused"
	// MetadataKeyIdentifier stores the login identifier of anonymous attempts.
	MetadataKeyIdentifier = "identifier"
)

const (
	defaultChannel = "auth"
	defaultActorID = "anonymous"

	ObjectTypeUser       = "user"
	ObjectTypeSession    = "session"
	ObjectTypeResetToken = "password_reset_token"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
// It never carries token keys.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	actorFallback string
	now           func() time.Time
}

// Normalize converts a multitoken.Event into a generic normalized shape.
func Normalize(event multitoken.Event, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := strings.TrimSpace(options.actorFallback)
	if event.Identity != nil {
		actorID = event.Identity.ID().String()
	}

	objectType, objectID := resolveObject(event)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.Type),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// NewSubscriber forwards every normalized event to sink.
func NewSubscriber(sink func(ctx context.Context, record Normalized) error, opts ...Option) multitoken.Subscriber {
	return multitoken.SubscriberFunc(func(ctx context.Context, event multitoken.Event) error {
		if sink == nil {
			return nil
		}
		return sink(ctx, Normalize(event, opts...))
	})
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the actor id used when the event has no identity.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func resolveObject(event multitoken.Event) (string, string) {
	switch {
	case event.Token != nil:
		return ObjectTypeSession, strconv.FormatInt(event.Token.ID, 10)
	case event.ResetToken != nil:
		return ObjectTypeResetToken, strconv.FormatInt(event.ResetToken.ID, 10)
	case event.Identity != nil:
		return ObjectTypeUser, event.Identity.ID().String()
	}
	return ObjectTypeUser, ""
}

func normalizeMetadata(event multitoken.Event) map[string]any {
	metadata := cloneMap(event.Metadata)

	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	if event.Identity == nil && event.Identifier != "" {
		set(MetadataKeyIdentifier, event.Identifier)
	}

	if event.Token != nil {
		set(MetadataKeyIP, event.Token.LastKnownIP)
		set(MetadataKeyUserAgent, event.Token.UserAgent)
	}

	if event.ResetToken != nil {
		set(MetadataKeyIP, event.ResetToken.IPAddress)
		set(MetadataKeyUserAgent, event.ResetToken.UserAgent)
		if event.Type == multitoken.EventPasswordResetRequested {
			set(MetadataKeyReused, event.Reused)
		}
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
