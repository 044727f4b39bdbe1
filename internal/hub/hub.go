package hub

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/bot"
	"ctchen222/Tic-Tac-Toe-AI/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-AI/internal/room"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("hub")
	meter  = otel.Meter("hub")
)

// Options configures the sessions the hub creates.
type Options struct {
	Profiles     *bot.Profiles
	Heartbeat    time.Duration
	AutoOpponent bool
	// Listeners are subscribed to every session, e.g. the event publisher.
	Listeners []session.Listener
	// Scheduler overrides the opponent delay timer, for tests.
	Scheduler session.Scheduler
}

// Hub manages all the rooms. Only Run touches the room map.
type Hub struct {
	opts        Options
	rooms       map[string]*room.Room
	register    chan *types.RegistrationRequest
	unregister  chan *room.Room
	done        chan struct{}
	active      atomic.Int64
	activeRooms metric.Int64UpDownCounter
}

// NewHub creates a new hub.
func NewHub(opts Options) *Hub {
	if opts.Profiles == nil {
		opts.Profiles = bot.DefaultProfiles()
	}
	activeRooms, err := meter.Int64UpDownCounter("hub.rooms.active",
		metric.WithDescription("Rooms with a connected player"),
	)
	if err != nil {
		slog.Warn("failed to create active rooms counter", "error", err)
		activeRooms, _ = noop.Meter{}.Int64UpDownCounter("hub.rooms.active")
	}
	return &Hub{
		opts:        opts,
		rooms:       make(map[string]*room.Room),
		register:    make(chan *types.RegistrationRequest),
		unregister:  make(chan *room.Room),
		done:        make(chan struct{}),
		activeRooms: activeRooms,
	}
}

// Run starts the hub. It returns, closing every room, when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for id, r := range h.rooms {
				r.Close()
				delete(h.rooms, id)
				h.roomClosed(ctx, id)
			}
			slog.InfoContext(ctx, "Hub stopped")
			return

		case req := <-h.register:
			h.openRoom(req)

		case r := <-h.unregister:
			if cur, ok := h.rooms[r.ID]; ok && cur == r {
				delete(h.rooms, r.ID)
				h.roomClosed(ctx, r.ID)
			}
		}
	}
}

func (h *Hub) openRoom(req *types.RegistrationRequest) {
	ctx := req.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracer.Start(ctx, "hub.openRoom", trace.WithAttributes(
		attribute.String("player.id", req.Player.ID),
		attribute.String("session.mode", string(req.Mode)),
		attribute.String("profile.name", req.Profile.Name),
	))
	defer span.End()

	opts := []session.Option{
		session.WithMode(req.Mode),
		session.WithProfile(req.Profile),
		session.WithAutoOpponent(h.opts.AutoOpponent),
	}
	if req.SessionID != "" {
		opts = append(opts, session.WithID(req.SessionID))
	}
	if h.opts.Scheduler != nil {
		opts = append(opts, session.WithScheduler(h.opts.Scheduler))
	}
	for _, l := range h.opts.Listeners {
		opts = append(opts, session.WithListener(l))
	}

	controller := session.NewController(opts...)
	if old, ok := h.rooms[controller.ID()]; ok {
		// A reconnect with the same token replaces the stale connection.
		slog.InfoContext(ctx, "Replacing existing room", "room.id", old.ID)
		old.Close()
		delete(h.rooms, old.ID)
		h.roomClosed(ctx, old.ID)
	}

	r := room.NewRoom(req.Player, controller, h.opts.Profiles, h.opts.Heartbeat)
	h.rooms[r.ID] = r
	h.active.Add(1)
	h.activeRooms.Add(ctx, 1)
	span.SetAttributes(attribute.String("room.id", r.ID))
	slog.InfoContext(ctx, "Room created", "room.id", r.ID, "player.id", req.Player.ID, "session.mode", req.Mode, "profile.name", req.Profile.Name)

	go r.Start(h.unregister, h.done)
}

func (h *Hub) roomClosed(ctx context.Context, id string) {
	h.active.Add(-1)
	h.activeRooms.Add(ctx, -1)
	slog.InfoContext(ctx, "Room closed", "room.id", id)
}

// Register returns the register channel.
func (h *Hub) Register() chan<- *types.RegistrationRequest {
	return h.register
}

// ActiveRooms counts rooms with a connected player.
func (h *Hub) ActiveRooms() int {
	return int(h.active.Load())
}

// Profiles returns the opponent tiers rooms can switch between.
func (h *Hub) Profiles() *bot.Profiles {
	return h.opts.Profiles
}

// Done is closed when Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
