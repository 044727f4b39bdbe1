package room

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/game"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
	"ctchen222/Tic-Tac-Toe-AI/internal/validator"
	"ctchen222/Tic-Tac-Toe-AI/pkg/proto"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HandleMessage handles a message from the player. It acts as a dispatcher.
func (r *Room) HandleMessage(rawMessage []byte) {
	ctx := context.Background()
	ctx, span := tracer.Start(ctx, "room.HandleMessage", trace.WithAttributes(
		attribute.String("player.id", r.Player.ID),
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	var message proto.ClientToServerMessage
	if err := json.Unmarshal(rawMessage, &message); err != nil {
		slog.ErrorContext(ctx, "error unmarshalling message", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error unmarshalling message")
		r.Send(ctx, proto.NewError("malformed message"))
		return
	}

	if err := validator.GetValidator().Struct(message); err != nil {
		slog.WarnContext(ctx, "invalid message from player", "player.id", r.Player.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid message format")
		r.Send(ctx, proto.NewError(fmt.Sprintf("invalid %q message: %s", message.Type, validator.Describe(err))))
		return
	}

	span.SetAttributes(attribute.String("message.type", message.Type))

	var err error
	switch message.Type {
	case proto.TypeMove:
		err = r.handleMove(ctx, &message)
	case proto.TypeRestart:
		r.controller.Restart(ctx)
	case proto.TypeResetScore:
		r.controller.ResetScore(ctx)
	case proto.TypeSetProfile:
		err = r.handleSetProfile(ctx, &message)
	case proto.TypeSetMode:
		err = r.handleSetMode(ctx, &message)
	case proto.TypeOpponentMove:
		err = r.controller.TriggerOpponentMove(ctx)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Message rejected")
		r.Send(ctx, proto.NewError(err.Error()))
	}
}

// handleMove plays the player's mark. Against the computer the player is
// always X; in two-player mode both marks come from the same connection.
func (r *Room) handleMove(ctx context.Context, message *proto.ClientToServerMessage) error {
	snap := r.controller.Snapshot()
	mark := game.PlayerX
	if snap.Mode == session.ModeTwoPlayer {
		mark = snap.Turn
	}
	return r.controller.ApplyMove(ctx, message.Cell(), mark)
}

func (r *Room) handleSetProfile(ctx context.Context, message *proto.ClientToServerMessage) error {
	profile, ok := r.profiles.Lookup(message.Profile)
	if !ok {
		slog.WarnContext(ctx, "unknown opponent profile", "room.id", r.ID, "profile.name", message.Profile)
		return fmt.Errorf("unknown profile %q", message.Profile)
	}
	return r.controller.SetOpponentProfile(ctx, profile)
}

func (r *Room) handleSetMode(ctx context.Context, message *proto.ClientToServerMessage) error {
	mode, err := session.ParseMode(message.Mode)
	if err != nil {
		return err
	}
	return r.controller.SetMode(ctx, mode)
}
