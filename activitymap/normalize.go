// Package activitymap flattens blog activity events into a transport
// agnostic record and ships them to a structured logger.
package activitymap

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-blog"
)

const (
	// MetadataKeyActorType stores the actor type derived from blog.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyFromStatus stores the source status of a lifecycle transition.
	MetadataKeyFromStatus = "from_status"
	// MetadataKeyToStatus stores the target status of a lifecycle transition.
	MetadataKeyToStatus = "to_status"
)

const (
	defaultObjectType = "user"
	defaultActorID    = "system"
)

// Normalized is the flat activity record
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
}

// Normalize converts an event into its flat record. The channel is the
// first segment of the event type and the verb the rest, so
// auth.login.failure becomes verb "login.failure" on channel "auth".
func Normalize(event blog.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	channel, verb := splitEventType(string(event.EventType))
	if options.channel != "" {
		channel = options.channel
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID: firstNonEmpty(
			strings.TrimSpace(event.Actor.ID),
			strings.TrimSpace(event.UserID),
			options.actorFallback,
		),
		Verb:       verb,
		ObjectType: options.objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithChannel forces the channel instead of deriving it from the event type
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType sets the object type, "user" by default
func WithObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event names none
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// LogSink returns an ActivitySink that logs every normalized event at info level
func LogSink(logger blog.Logger, opts ...Option) blog.ActivitySink {
	return blog.ActivitySinkFunc(func(_ context.Context, event blog.ActivityEvent) error {
		if logger == nil {
			return nil
		}

		record := Normalize(event, opts...)
		args := []any{
			"channel", record.Channel,
			"verb", record.Verb,
			"actor_id", record.ActorID,
			"object_type", record.ObjectType,
			"object_id", record.ObjectID,
			"occurred_at", record.OccurredAt,
		}
		if len(record.Metadata) > 0 {
			args = append(args, "metadata", record.Metadata)
		}

		logger.Info("activity", args...)
		return nil
	})
}

func splitEventType(eventType string) (string, string) {
	eventType = strings.TrimSpace(eventType)
	channel, verb, found := strings.Cut(eventType, ".")
	if !found {
		return "blog", eventType
	}
	return channel, verb
}

func normalizeMetadata(event blog.ActivityEvent) map[string]any {
	var metadata map[string]any
	if len(event.Metadata) > 0 {
		metadata = maps.Clone(event.Metadata)
	}

	set := func(key string, value string, overwrite bool) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; exists && !overwrite {
			return
		}
		metadata[key] = value
	}

	set(MetadataKeyActorType, strings.TrimSpace(event.Actor.Type), false)
	set(MetadataKeyFromStatus, string(event.FromStatus), true)
	set(MetadataKeyToStatus, string(event.ToStatus), true)

	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
