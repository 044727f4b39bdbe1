package bot

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/game"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// Probability that an easy opponent plays the strategic heuristic instead of
// a random cell.
const heuristicChance = 0.6

var (
	tracer = otel.Tracer("bot")
	meter  = otel.Meter("bot")
)

// Rand is the random source used for mistakes and tie-breaks.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// globalRand uses the math/rand/v2 top-level functions, which are safe for
// concurrent use.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// DefaultRand returns a source safe for concurrent use.
func DefaultRand() Rand {
	return globalRand{}
}

// Policy selects moves for the computer opponent.
type Policy struct {
	rng   Rand
	nodes metric.Int64Histogram
}

// NewPolicy creates a policy drawing from rng. A nil rng uses the global
// source. A seeded rng must not be shared across goroutines.
func NewPolicy(rng Rand) *Policy {
	if rng == nil {
		rng = globalRand{}
	}
	nodes, err := meter.Int64Histogram("bot.minimax.nodes",
		metric.WithDescription("Positions visited by one minimax search"),
	)
	if err != nil {
		slog.Warn("failed to create minimax histogram", "error", err)
		nodes, _ = noop.Meter{}.Int64Histogram("bot.minimax.nodes")
	}
	return &Policy{rng: rng, nodes: nodes}
}

// SelectMove picks a cell for the side to move on board. It fails with
// game.ErrInvariantViolation when there is nothing left to play.
func (p *Policy) SelectMove(ctx context.Context, board game.Board, profile Profile) (int, error) {
	ctx, span := tracer.Start(ctx, "bot.SelectMove", trace.WithAttributes(
		attribute.String("profile.name", profile.Name),
		attribute.String("profile.difficulty", string(profile.Difficulty)),
		attribute.String("board", board.String()),
	))
	defer span.End()

	if err := checkPlayable(board); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Opponent asked to move on a finished board")
		return -1, err
	}

	self := board.Turn()
	strategy := "random"
	var move int

	// 1. Mistake: ignore the computed move entirely
	if p.rng.Float64() < profile.ErrorRate {
		move = p.randomMove(board)
		span.SetAttributes(attribute.String("move.strategy", "mistake"), attribute.Int("move.index", move))
		return move, nil
	}

	// 2. Dispatch by tier
	switch profile.Difficulty {
	case Easy:
		if p.rng.Float64() < heuristicChance {
			strategy = "heuristic"
			move = p.strategicMove(board, self)
		} else {
			move = p.randomMove(board)
		}
	case Medium:
		strategy = "heuristic"
		move = p.strategicMove(board, self)
	case Expert:
		strategy = "minimax"
		move = p.minimaxMove(ctx, board, self)
	default:
		err := fmt.Errorf("profile %s: unknown difficulty %q", profile.Name, profile.Difficulty)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Unknown difficulty")
		return -1, err
	}

	span.SetAttributes(attribute.String("move.strategy", strategy), attribute.Int("move.index", move))
	return move, nil
}

func checkPlayable(board game.Board) error {
	if err := board.Validate(); err != nil {
		return err
	}
	if outcome := game.Evaluate(board); outcome.Finished() {
		return fmt.Errorf("%w: no move possible on a %s board", game.ErrInvariantViolation, outcome.Status)
	}
	return nil
}

// randomMove picks uniformly among empty cells.
func (p *Policy) randomMove(board game.Board) int {
	cells := game.EmptyCells(board)
	return cells[p.rng.IntN(len(cells))]
}

// strategicMove wins if it can, blocks if it must, then prefers the center,
// then a random corner, then any cell. Blocking only looks one move ahead.
func (p *Policy) strategicMove(board game.Board, self game.PlayerMark) int {
	// 1. Win
	if idx, ok := findWinningMove(board, self); ok {
		return idx
	}

	// 2. Block
	if idx, ok := findWinningMove(board, self.Other()); ok {
		return idx
	}

	// 3. Center
	if board[game.Center] == game.None {
		return game.Center
	}

	// 4. Corners
	corners := make([]int, 0, len(game.Corners))
	for _, c := range game.Corners {
		if board[c] == game.None {
			corners = append(corners, c)
		}
	}
	if len(corners) > 0 {
		return corners[p.rng.IntN(len(corners))]
	}

	// 5. Anything left
	return p.randomMove(board)
}

// findWinningMove returns the lowest empty cell that completes a line for mark.
func findWinningMove(board game.Board, mark game.PlayerMark) (int, bool) {
	for _, idx := range game.EmptyCells(board) {
		next := board
		next[idx] = mark
		if _, ok := game.CheckWinner(next, mark); ok {
			return idx, true
		}
	}
	return -1, false
}
