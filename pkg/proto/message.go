package proto

import (
	"ctchen222/Tic-Tac-Toe-AI/internal/game"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
)

// Client message types. TypeOpponentMove asks the computer to move; clients
// need it when the server runs without auto opponent.
const (
	TypeMove         = "move"
	TypeRestart      = "restart"
	TypeResetScore   = "reset_score"
	TypeSetProfile   = "set_profile"
	TypeSetMode      = "set_mode"
	TypeOpponentMove = "opponent_move"
)

// Server message types.
const (
	TypeUpdate = "update"
	TypeError  = "error"
)

// ClientToServerMessage represents a message from the client to the server.
// Position is a cell index 0-8, or a [row, col] pair.
type ClientToServerMessage struct {
	Type     string `json:"type" validate:"required,oneof=move restart reset_score set_profile set_mode opponent_move"`
	Position []int  `json:"position,omitempty" validate:"required_if=Type move,omitempty,min=1,max=2,dive,min=0,max=8"`
	Profile  string `json:"profile,omitempty" validate:"required_if=Type set_profile"`
	Mode     string `json:"mode,omitempty" validate:"required_if=Type set_mode,omitempty,session_mode"`
}

// Cell resolves Position to a board index.
func (m *ClientToServerMessage) Cell() int {
	switch len(m.Position) {
	case 1:
		return m.Position[0]
	case 2:
		if m.Position[0] > 2 || m.Position[1] > 2 {
			return -1
		}
		return m.Position[0]*3 + m.Position[1]
	}
	return -1
}

// ServerToClientMessage represents a message from the server to the client.
type ServerToClientMessage struct {
	Type        string              `json:"type" validate:"required"`
	Reason      string              `json:"reason,omitempty"`
	Board       [][]game.PlayerMark `json:"board,omitempty"`
	Next        game.PlayerMark     `json:"next,omitempty"`
	Phase       session.Phase       `json:"phase,omitempty"`
	Winner      game.PlayerMark     `json:"winner,omitempty"`
	Combination []int               `json:"combination,omitempty"`
	Draw        bool                `json:"draw,omitempty"`
	Score       *session.ScoreBoard `json:"score,omitempty"`
	Thinking    bool                `json:"thinking"`
	Profile     string              `json:"profile,omitempty"`
	Mode        session.Mode        `json:"mode,omitempty"`
	Cue         string              `json:"cue,omitempty"`
}

// NewUpdate renders a snapshot for the client.
func NewUpdate(snap session.Snapshot, cue string) *ServerToClientMessage {
	msg := &ServerToClientMessage{
		Type:     TypeUpdate,
		Board:    snap.Board.Rows(),
		Next:     snap.Turn,
		Phase:    snap.Phase,
		Draw:     snap.Outcome.Status == game.Draw,
		Score:    &snap.Score,
		Thinking: snap.Thinking,
		Profile:  snap.Profile.Name,
		Mode:     snap.Mode,
		Cue:      cue,
	}
	if snap.Outcome.Status == game.Won {
		msg.Winner = snap.Outcome.Winner
		msg.Combination = snap.Outcome.Combination[:]
	}
	return msg
}

// NewError reports a rejected client message.
func NewError(reason string) *ServerToClientMessage {
	return &ServerToClientMessage{Type: TypeError, Reason: reason}
}
