package types

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/bot"
	"ctchen222/Tic-Tac-Toe-AI/internal/player"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
)

// RegistrationRequest represents a request to open a room for a player.
type RegistrationRequest struct {
	Player    *player.Player
	SessionID string
	Mode      session.Mode
	Profile   bot.Profile
	Ctx       context.Context
}
