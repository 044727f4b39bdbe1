package room

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/bot"
	"ctchen222/Tic-Tac-Toe-AI/internal/player"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
	"ctchen222/Tic-Tac-Toe-AI/pkg/proto"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
)

const defaultHeartbeatInterval = 10 * time.Second

var tracer = otel.Tracer("room")

// Room binds one websocket player to one game session.
type Room struct {
	ID         string
	Player     *player.Player
	controller *session.Controller
	profiles   *bot.Profiles
	heartbeat  time.Duration

	writeMu       sync.Mutex
	incomingMoves chan []byte
	closeOnce     sync.Once
	Done          chan struct{}
}

// NewRoom creates a room for p playing on c. The room subscribes to c and
// pushes an update to the player after every transition.
func NewRoom(p *player.Player, c *session.Controller, profiles *bot.Profiles, heartbeat time.Duration) *Room {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	r := &Room{
		ID:            c.ID(),
		Player:        p,
		controller:    c,
		profiles:      profiles,
		heartbeat:     heartbeat,
		incomingMoves: make(chan []byte, 10),
		Done:          make(chan struct{}),
	}
	c.Subscribe(r)
	return r
}

// Controller returns the session the room plays on.
func (r *Room) Controller() *session.Controller {
	return r.controller
}

// Start sends the initial state, then serves the player until the connection
// drops or the room is closed. The room is handed to unregister on exit
// unless stop is closed first.
func (r *Room) Start(unregister chan<- *Room, stop <-chan struct{}) {
	r.Send(context.Background(), proto.NewUpdate(r.controller.Snapshot(), ""))

	go r.run()
	r.ReadPump()

	r.Close()
	select {
	case unregister <- r:
	case <-stop:
	}
}

// Close stops the heartbeat, cancels any pending opponent move and closes
// the connection. It is safe to call more than once.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.Done)
		r.controller.Close()
		if err := r.Player.Conn.Close(); err != nil {
			slog.Debug("error closing player connection", "room.id", r.ID, "error", err)
		}
	})
}

// run is the main loop for the room: it applies client messages in arrival
// order and keeps the connection alive.
func (r *Room) run() {
	pingTicker := time.NewTicker(r.heartbeat)
	defer pingTicker.Stop()

	for {
		select {
		case <-r.Done:
			slog.Info("Room run goroutine stopping.", "room.id", r.ID)
			return

		case msg := <-r.incomingMoves:
			r.HandleMessage(msg)

		case <-pingTicker.C:
			r.writeMu.Lock()
			err := r.Player.Conn.WriteMessage(websocket.PingMessage, nil)
			r.writeMu.Unlock()
			if err != nil {
				slog.Warn("Failed to send ping to player, assuming disconnect", "player.id", r.Player.ID, "error", err)
			}
		}
	}
}
