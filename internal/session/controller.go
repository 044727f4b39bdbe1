package session

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/bot"
	"ctchen222/Tic-Tac-Toe-AI/internal/game"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("session")
	meter  = otel.Meter("session")
)

// MoveSelector picks the computer's next cell.
type MoveSelector interface {
	SelectMove(ctx context.Context, board game.Board, profile bot.Profile) (int, error)
}

// Option configures a Controller.
type Option func(*Controller)

func WithID(id string) Option {
	return func(c *Controller) { c.id = id }
}

func WithSelector(s MoveSelector) Option {
	return func(c *Controller) { c.selector = s }
}

func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.scheduler = s }
}

func WithRand(r bot.Rand) Option {
	return func(c *Controller) { c.rng = r }
}

func WithProfile(p bot.Profile) Option {
	return func(c *Controller) { c.profile = p }
}

func WithMode(m Mode) Option {
	return func(c *Controller) { c.mode = m }
}

func WithListener(l Listener) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, l) }
}

// WithAutoOpponent makes the controller trigger the computer's move as soon
// as it becomes the computer's turn. Enabled by default.
func WithAutoOpponent(on bool) Option {
	return func(c *Controller) { c.autoOpponent = on }
}

type queuedEvent struct {
	ctx context.Context
	ev  Event
}

// Controller owns one game session: the board, whose turn it is, the score
// and the pending opponent move. All mutation is serialized by mu.
type Controller struct {
	id string

	mu         sync.Mutex
	board      game.Board
	turn       game.PlayerMark
	phase      Phase
	outcome    game.Outcome
	score      ScoreBoard
	profile    bot.Profile
	mode       Mode
	computer   game.PlayerMark
	generation uint64
	pending    Timer

	autoOpponent bool
	selector     MoveSelector
	scheduler    Scheduler
	rng          bot.Rand
	listeners    []Listener
	queue        []queuedEvent
	flushing     bool

	gamesFinished metric.Int64Counter
	thinkTime     metric.Float64Histogram
}

// NewController creates a session with an empty board, X to move.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		id:           uuid.New().String(),
		profile:      bot.Rookie,
		mode:         ModeVsComputer,
		computer:     game.PlayerO,
		autoOpponent: true,
		scheduler:    RealScheduler(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.selector == nil {
		c.selector = bot.NewPolicy(c.rng)
	}
	if c.rng == nil {
		c.rng = bot.DefaultRand()
	}
	c.initMetrics()
	c.resetBoardLocked()
	return c
}

func (c *Controller) initMetrics() {
	var err error
	c.gamesFinished, err = meter.Int64Counter("session.games.finished",
		metric.WithDescription("Games that reached a win or a draw"),
	)
	if err != nil {
		slog.Warn("failed to create games counter", "error", err)
		c.gamesFinished, _ = noop.Meter{}.Int64Counter("session.games.finished")
	}
	c.thinkTime, err = meter.Float64Histogram("session.opponent.think",
		metric.WithDescription("Opponent thinking delay"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		slog.Warn("failed to create think histogram", "error", err)
		c.thinkTime, _ = noop.Meter{}.Float64Histogram("session.opponent.think")
	}
}

// ID identifies the session in logs and events.
func (c *Controller) ID() string {
	return c.id
}

// Subscribe registers a listener for all future events.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// ApplyMove places mark at index. It fails with game.ErrIllegalMove, leaving
// the state unchanged, when the game is finished, the cell is taken or it is
// not mark's turn.
func (c *Controller) ApplyMove(ctx context.Context, index int, mark game.PlayerMark) error {
	ctx, span := tracer.Start(ctx, "session.ApplyMove", trace.WithAttributes(
		attribute.String("session.id", c.id),
		attribute.Int("move.index", index),
		attribute.String("move.mark", string(mark)),
	))
	defer span.End()

	c.mu.Lock()
	events, err := c.applyMoveLocked(ctx, index, mark)
	if err != nil {
		events = append(events, c.eventLocked(EventMoveRejected, &game.Move{Index: index, Mark: mark}, err.Error()))
	}
	c.emitLocked(ctx, events...)
	c.mu.Unlock()
	c.flush()

	if err != nil {
		slog.WarnContext(ctx, "rejected move", "session.id", c.id, "move.index", index, "move.mark", mark, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Illegal move")
		return err
	}
	return nil
}

// TriggerOpponentMove schedules the computer's move after a thinking delay
// drawn from the active profile.
func (c *Controller) TriggerOpponentMove(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session.TriggerOpponentMove", trace.WithAttributes(
		attribute.String("session.id", c.id),
	))
	defer span.End()

	c.mu.Lock()
	ev, err := c.triggerLocked()
	if err == nil {
		c.emitLocked(ctx, ev)
	}
	c.mu.Unlock()

	if err != nil {
		slog.WarnContext(ctx, "opponent move not possible", "session.id", c.id, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Opponent move not possible")
		return err
	}
	c.flush()
	return nil
}

// Restart clears the board and hands the move to X. The score is kept.
func (c *Controller) Restart(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "session.Restart", trace.WithAttributes(
		attribute.String("session.id", c.id),
	))
	defer span.End()

	c.mu.Lock()
	c.emitLocked(ctx, c.restartLocked()...)
	c.mu.Unlock()

	slog.InfoContext(ctx, "game restarted", "session.id", c.id)
	c.flush()
}

// ResetScore zeroes the score without touching the board.
func (c *Controller) ResetScore(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "session.ResetScore", trace.WithAttributes(
		attribute.String("session.id", c.id),
	))
	defer span.End()

	c.mu.Lock()
	c.score = ScoreBoard{}
	c.emitLocked(ctx, c.eventLocked(EventScoreReset, nil, ""))
	c.mu.Unlock()

	c.flush()
}

// SetOpponentProfile switches the difficulty. A game in progress against the
// computer is restarted so a profile never changes mid-game.
func (c *Controller) SetOpponentProfile(ctx context.Context, profile bot.Profile) error {
	ctx, span := tracer.Start(ctx, "session.SetOpponentProfile", trace.WithAttributes(
		attribute.String("session.id", c.id),
		attribute.String("profile.name", profile.Name),
	))
	defer span.End()

	if err := profile.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid profile")
		return err
	}

	c.mu.Lock()
	c.profile = profile
	events := []Event{c.eventLocked(EventProfileChanged, nil, "")}
	if c.mode == ModeVsComputer && !c.outcome.Finished() {
		events = append(events, c.restartLocked()...)
	}
	c.emitLocked(ctx, events...)
	c.mu.Unlock()

	slog.InfoContext(ctx, "opponent profile changed", "session.id", c.id, "profile.name", profile.Name)
	c.flush()
	return nil
}

// SetMode switches between playing the computer and a local second player.
// The game always restarts.
func (c *Controller) SetMode(ctx context.Context, mode Mode) error {
	ctx, span := tracer.Start(ctx, "session.SetMode", trace.WithAttributes(
		attribute.String("session.id", c.id),
		attribute.String("session.mode", string(mode)),
	))
	defer span.End()

	if mode != ModeVsComputer && mode != ModeTwoPlayer {
		err := fmt.Errorf("unknown mode %q", mode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Unknown mode")
		return err
	}

	c.mu.Lock()
	c.mode = mode
	events := []Event{c.eventLocked(EventModeChanged, nil, "")}
	events = append(events, c.restartLocked()...)
	c.emitLocked(ctx, events...)
	c.mu.Unlock()

	slog.InfoContext(ctx, "session mode changed", "session.id", c.id, "session.mode", mode)
	c.flush()
	return nil
}

// Close cancels any pending opponent move.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelPendingLocked()
}

func (c *Controller) applyMoveLocked(ctx context.Context, index int, mark game.PlayerMark) ([]Event, error) {
	if c.phase == PhaseFinished {
		return nil, fmt.Errorf("%w: game already finished", game.ErrIllegalMove)
	}
	if mark != c.turn {
		return nil, fmt.Errorf("%w: not %s's turn", game.ErrIllegalMove, mark)
	}
	next, err := c.board.Place(index, mark)
	if err != nil {
		return nil, err
	}

	c.cancelPendingLocked()
	c.board = next
	c.outcome = game.Evaluate(next)

	move := &game.Move{Index: index, Mark: mark}
	switch c.outcome.Status {
	case game.Won:
		c.phase = PhaseFinished
		c.score.add(c.outcome.Winner)
		c.gamesFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(c.outcome.Winner)+"_won")))
		return []Event{
			c.eventLocked(EventMoveApplied, move, ""),
			c.eventLocked(EventGameWon, nil, ""),
		}, nil
	case game.Draw:
		c.phase = PhaseFinished
		c.gamesFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "draw")))
		return []Event{
			c.eventLocked(EventMoveApplied, move, ""),
			c.eventLocked(EventGameDrawn, nil, ""),
		}, nil
	}

	c.turn = mark.Other()
	c.phase = PhaseAwaitingMove
	events := []Event{c.eventLocked(EventMoveApplied, move, "")}
	return append(events, c.autoTriggerLocked()...), nil
}

func (c *Controller) triggerLocked() (Event, error) {
	if c.mode != ModeVsComputer {
		return Event{}, fmt.Errorf("%w: no computer opponent in %s mode", game.ErrIllegalMove, c.mode)
	}
	if c.phase != PhaseAwaitingMove {
		return Event{}, fmt.Errorf("%w: opponent cannot move while %s", game.ErrIllegalMove, c.phase)
	}
	if c.turn != c.computer {
		return Event{}, fmt.Errorf("%w: not the computer's turn", game.ErrIllegalMove)
	}

	c.cancelPendingLocked()
	gen := c.generation
	delay := c.profile.ThinkingTime(c.rng)
	c.phase = PhaseOpponentThinking
	c.pending = c.scheduler.AfterFunc(delay, func() {
		c.completeOpponentMove(gen, delay)
	})
	return c.eventLocked(EventOpponentThinking, nil, ""), nil
}

func (c *Controller) autoTriggerLocked() []Event {
	if !c.autoOpponent || c.mode != ModeVsComputer || c.turn != c.computer || c.phase != PhaseAwaitingMove {
		return nil
	}
	ev, err := c.triggerLocked()
	if err != nil {
		return nil
	}
	return []Event{ev}
}

// completeOpponentMove runs when the thinking delay elapses. The board is
// re-checked here: the schedule may belong to a game that has since been
// restarted or finished.
func (c *Controller) completeOpponentMove(gen uint64, delay time.Duration) {
	ctx, span := tracer.Start(context.Background(), "session.completeOpponentMove", trace.WithAttributes(
		attribute.String("session.id", c.id),
		attribute.Int64("session.generation", int64(gen)),
	))
	defer span.End()

	c.mu.Lock()
	if gen != c.generation || c.phase != PhaseOpponentThinking || c.outcome.Finished() || game.IsBoardFull(c.board) {
		c.mu.Unlock()
		slog.DebugContext(ctx, "discarding stale opponent move", "session.id", c.id, "session.generation", gen)
		span.SetAttributes(attribute.Bool("move.stale", true))
		return
	}
	c.pending = nil

	mark := c.turn
	index, err := c.selector.SelectMove(ctx, c.board, c.profile)
	if err != nil {
		c.phase = PhaseAwaitingMove
		c.emitLocked(ctx, c.eventLocked(EventOpponentFailed, nil, err.Error()))
		c.mu.Unlock()
		c.flush()
		slog.ErrorContext(ctx, "opponent failed to select a move", "session.id", c.id, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Opponent failed to select a move")
		return
	}

	c.phase = PhaseAwaitingMove
	events, err := c.applyMoveLocked(ctx, index, mark)
	if err != nil {
		err = fmt.Errorf("%w: opponent chose cell %d: %v", game.ErrInvariantViolation, index, err)
		events = []Event{c.eventLocked(EventOpponentFailed, &game.Move{Index: index, Mark: mark}, err.Error())}
	}
	c.emitLocked(ctx, events...)
	c.mu.Unlock()
	c.flush()

	c.thinkTime.Record(ctx, float64(delay)/float64(time.Millisecond))
	if err != nil {
		slog.ErrorContext(ctx, "opponent move rejected", "session.id", c.id, "move.index", index, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Opponent move rejected")
		return
	}
	span.SetAttributes(attribute.Int("move.index", index))
}

func (c *Controller) restartLocked() []Event {
	c.cancelPendingLocked()
	c.resetBoardLocked()
	events := []Event{c.eventLocked(EventRestarted, nil, "")}
	return append(events, c.autoTriggerLocked()...)
}

func (c *Controller) resetBoardLocked() {
	c.board = game.Board{}
	c.turn = game.PlayerX
	c.phase = PhaseAwaitingMove
	c.outcome = game.Outcome{Status: game.InProgress}
}

// cancelPendingLocked stops the scheduled opponent move and bumps the
// generation so a callback already in flight becomes a no-op.
func (c *Controller) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.generation++
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID: c.id,
		Board:     c.board,
		Turn:      c.turn,
		Phase:     c.phase,
		Outcome:   c.outcome,
		Score:     c.score,
		Thinking:  c.phase == PhaseOpponentThinking,
		Profile:   c.profile,
		Mode:      c.mode,
	}
}

func (c *Controller) eventLocked(t EventType, move *game.Move, reason string) Event {
	return Event{Type: t, Move: move, Reason: reason, Snapshot: c.snapshotLocked()}
}

// emitLocked queues events in the order the transitions happened.
func (c *Controller) emitLocked(ctx context.Context, events ...Event) {
	for _, ev := range events {
		c.queue = append(c.queue, queuedEvent{ctx: ctx, ev: ev})
	}
}

// flush delivers queued events outside the lock. One goroutine delivers at
// a time, so listeners see events in queue order even when a timer callback
// and a caller race; a goroutine that finds delivery in progress leaves its
// events to the one already delivering.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		listeners := append([]Listener(nil), c.listeners...)
		c.mu.Unlock()

		for _, l := range listeners {
			l.HandleEvent(next.ctx, next.ev)
		}

		c.mu.Lock()
	}
	c.flushing = false
	c.mu.Unlock()
}
