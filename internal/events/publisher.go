package events

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("events")

// Publisher is the subset of *redis.Client the publisher needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher forwards controller events to a Pub/Sub channel so that
// processes outside the server (audio, analytics) can follow games.
type RedisPublisher struct {
	rdb     Publisher
	channel string
}

// NewRedisPublisher publishes on channel, or EventsChannel when empty.
func NewRedisPublisher(rdb Publisher, channel string) *RedisPublisher {
	if channel == "" {
		channel = EventsChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// HandleEvent implements session.Listener. Publish failures are logged and
// never reach the controller.
func (p *RedisPublisher) HandleEvent(ctx context.Context, ev session.Event) {
	ctx, span := tracer.Start(ctx, "events.Publish", trace.WithAttributes(
		attribute.String("session.id", ev.Snapshot.SessionID),
		attribute.String("event.type", string(ev.Type)),
		attribute.String("event.channel", p.channel),
	))
	defer span.End()

	data, err := Encode(ev)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode session event", "event.type", ev.Type, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to encode session event")
		return
	}

	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		slog.ErrorContext(ctx, "Failed to publish session event", "session.id", ev.Snapshot.SessionID, "event.type", ev.Type, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to publish session event")
	}
}

// Subscribe delivers every event published on channel to handle, from a
// background goroutine, until the returned close function is called. It
// returns once the subscription is confirmed. Malformed messages are logged
// and skipped.
func Subscribe(ctx context.Context, rdb *redis.Client, channel string, handle func(context.Context, Event, SessionPayload)) (func() error, error) {
	pubsub := rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	slog.InfoContext(ctx, "Event subscriber started", "channel", channel)

	ch := pubsub.Channel()
	go func() {
		for msg := range ch {
			eventCtx, eventSpan := tracer.Start(ctx, "events.handleEvent", trace.WithAttributes(
				attribute.String("event.channel", channel),
			))
			event, payload, err := Decode([]byte(msg.Payload))
			if err != nil {
				slog.ErrorContext(eventCtx, "Could not unmarshal session event", "error", err)
				eventSpan.RecordError(err)
				eventSpan.SetStatus(codes.Error, "Could not unmarshal session event")
				eventSpan.End()
				continue
			}
			eventSpan.SetAttributes(attribute.String("event.type", event.Type))
			handle(eventCtx, event, payload)
			eventSpan.End()
		}
		slog.InfoContext(ctx, "Event subscriber stopped", "channel", channel)
	}()

	return pubsub.Close, nil
}
