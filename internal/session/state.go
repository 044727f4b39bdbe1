package session

//go:generate mockgen -destination=mocks/mock_listener.go -package=mocks ctchen222/Tic-Tac-Toe-AI/internal/session Listener

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/bot"
	"ctchen222/Tic-Tac-Toe-AI/internal/game"
	"fmt"
)

// Mode selects who plays O.
type Mode string

const (
	ModeVsComputer Mode = "vs_computer"
	ModeTwoPlayer  Mode = "two_player"
)

// ParseMode accepts the mode names used by clients. "bot" and "human" are the
// names older clients send.
func ParseMode(s string) (Mode, error) {
	switch s {
	case string(ModeVsComputer), "bot", "":
		return ModeVsComputer, nil
	case string(ModeTwoPlayer), "human":
		return ModeTwoPlayer, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Phase is the controller's state machine position.
type Phase string

const (
	PhaseAwaitingMove     Phase = "awaiting_move"
	PhaseOpponentThinking Phase = "opponent_thinking"
	PhaseFinished         Phase = "finished"
)

// ScoreBoard counts wins per mark.
type ScoreBoard struct {
	X int `json:"X"`
	O int `json:"O"`
}

// Get returns the wins recorded for mark.
func (s ScoreBoard) Get(mark game.PlayerMark) int {
	switch mark {
	case game.PlayerX:
		return s.X
	case game.PlayerO:
		return s.O
	}
	return 0
}

func (s *ScoreBoard) add(mark game.PlayerMark) {
	switch mark {
	case game.PlayerX:
		s.X++
	case game.PlayerO:
		s.O++
	}
}

// Snapshot is a consistent copy of everything a renderer needs.
type Snapshot struct {
	SessionID string          `json:"session_id"`
	Board     game.Board      `json:"board"`
	Turn      game.PlayerMark `json:"turn"`
	Phase     Phase           `json:"phase"`
	Outcome   game.Outcome    `json:"outcome"`
	Score     ScoreBoard      `json:"score"`
	Thinking  bool            `json:"thinking"`
	Profile   bot.Profile     `json:"profile"`
	Mode      Mode            `json:"mode"`
}

// EventType names a controller transition.
type EventType string

const (
	EventMoveApplied      EventType = "move_applied"
	EventMoveRejected     EventType = "move_rejected"
	EventOpponentThinking EventType = "opponent_thinking"
	EventOpponentFailed   EventType = "opponent_failed"
	EventGameWon          EventType = "game_won"
	EventGameDrawn        EventType = "game_drawn"
	EventRestarted        EventType = "restarted"
	EventScoreReset       EventType = "score_reset"
	EventProfileChanged   EventType = "profile_changed"
	EventModeChanged      EventType = "mode_changed"
)

// Cue names the sound an audio listener plays for the event, or "" for none.
func (t EventType) Cue() string {
	switch t {
	case EventMoveApplied:
		return "move"
	case EventGameWon:
		return "win"
	case EventGameDrawn:
		return "draw"
	case EventMoveRejected, EventOpponentFailed:
		return "error"
	}
	return ""
}

// Event is emitted after every state transition.
type Event struct {
	Type     EventType  `json:"type"`
	Move     *game.Move `json:"move,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	Snapshot Snapshot   `json:"snapshot"`
}

// Listener reacts to controller events (renderers, audio, publishers).
// Listeners run outside the controller lock and may call back into it. Each
// controller delivers its events one at a time in the order the transitions
// happened; events caused by a callback are delivered after the current one.
type Listener interface {
	HandleEvent(ctx context.Context, ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event)

func (f ListenerFunc) HandleEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}
