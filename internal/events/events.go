package events

import (
	"ctchen222/Tic-Tac-Toe-AI/internal/game"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
	"encoding/json"
	"fmt"
)

// Pub/Sub channel constants
const (
	EventsChannel = "channel:events"
)

// Event represents a global message published via Pub/Sub.
type Event struct {
	Type    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// SessionPayload is the payload of every session event. Board uses the
// compact nine-character form.
type SessionPayload struct {
	SessionID string             `json:"session_id"`
	Move      *game.Move         `json:"move,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	Board     string             `json:"board"`
	Phase     session.Phase      `json:"phase"`
	Outcome   game.Outcome       `json:"outcome"`
	Score     session.ScoreBoard `json:"score"`
	Profile   string             `json:"profile"`
	Mode      session.Mode       `json:"mode"`
	Cue       string             `json:"cue,omitempty"`
}

// Encode wraps a controller event for publishing.
func Encode(ev session.Event) ([]byte, error) {
	snap := ev.Snapshot
	payload, err := json.Marshal(SessionPayload{
		SessionID: snap.SessionID,
		Move:      ev.Move,
		Reason:    ev.Reason,
		Board:     snap.Board.String(),
		Phase:     snap.Phase,
		Outcome:   snap.Outcome,
		Score:     snap.Score,
		Profile:   snap.Profile.Name,
		Mode:      snap.Mode,
		Cue:       ev.Type.Cue(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", ev.Type, err)
	}
	return json.Marshal(Event{Type: string(ev.Type), Payload: payload})
}

// Decode parses a published message.
func Decode(data []byte) (Event, SessionPayload, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, SessionPayload{}, fmt.Errorf("could not unmarshal event: %w", err)
	}
	var payload SessionPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return event, SessionPayload{}, fmt.Errorf("could not unmarshal %s payload: %w", event.Type, err)
	}
	return event, payload, nil
}
