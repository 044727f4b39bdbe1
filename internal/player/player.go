package player

import "time"

// Connection is an interface that abstracts the websocket connection.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Player is the human side of a room, identified by the session token.
type Player struct {
	ID   string
	Conn Connection
}

// NewPlayer creates a player on an open connection.
func NewPlayer(id string, conn Connection) *Player {
	return &Player{ID: id, Conn: conn}
}
