package room

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
	"ctchen222/Tic-Tac-Toe-AI/pkg/proto"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Send writes a message to the player. Writes are serialized because the
// read loop, the heartbeat and the opponent timer all produce messages.
func (r *Room) Send(ctx context.Context, message *proto.ServerToClientMessage) {
	_, span := tracer.Start(ctx, "room.Send", trace.WithAttributes(
		attribute.String("room.id", r.ID),
		attribute.String("message.type", message.Type),
	))
	defer span.End()

	data, err := json.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error marshalling message")
		return
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.Player.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.ErrorContext(ctx, "error writing message to player", "player.id", r.Player.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error writing message to player")
	}
}

// HandleEvent implements session.Listener and renders every transition as
// an update. Rejected player moves are answered directly by HandleMessage; a
// failed opponent move carries its reason on the update.
func (r *Room) HandleEvent(ctx context.Context, ev session.Event) {
	if ev.Type == session.EventMoveRejected {
		return
	}
	select {
	case <-r.Done:
		return
	default:
	}
	msg := proto.NewUpdate(ev.Snapshot, ev.Type.Cue())
	msg.Reason = ev.Reason
	r.Send(ctx, msg)
}

// ReadPump pumps messages from the websocket connection to the room's incomingMoves channel.
// It returns when the connection fails or the room is closed.
func (r *Room) ReadPump() {
	ctx, span := tracer.Start(context.Background(), "room.ReadPump", trace.WithAttributes(
		attribute.String("player.id", r.Player.ID),
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	deadline := 2 * r.heartbeat
	r.Player.Conn.SetReadDeadline(time.Now().Add(deadline))
	r.Player.Conn.SetPongHandler(func(string) error {
		return r.Player.Conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, msg, err := r.Player.Conn.ReadMessage()
		if err != nil {
			slog.WarnContext(ctx, "Player connection error", "player.id", r.Player.ID, "room.id", r.ID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Player connection error")
			return
		}
		select {
		case r.incomingMoves <- msg:
		case <-r.Done:
			return
		}
	}
}
