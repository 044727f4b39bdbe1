package bot

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/game"
	"math"
)

// winScore is the value of a win on the very next ply; every extra ply
// costs one point so faster wins and slower losses rank higher.
const winScore = 10

type search struct {
	self     game.PlayerMark
	opponent game.PlayerMark
	maxDepth int
	nodes    int64
}

// minimaxMove returns the empty cell with the best minimax value for self.
// Ties go to the lowest index.
func (p *Policy) minimaxMove(ctx context.Context, board game.Board, self game.PlayerMark) int {
	empty := game.EmptyCells(board)
	s := &search{self: self, opponent: self.Other(), maxDepth: len(empty)}

	best, bestScore := -1, math.MinInt
	for _, idx := range empty {
		next := board
		next[idx] = self
		score := s.minimax(next, 0, false, math.MinInt, math.MaxInt)
		if score > bestScore {
			best, bestScore = idx, score
		}
	}

	p.nodes.Record(ctx, s.nodes)
	return best
}

// minimax scores board from self's point of view. board is a value copy, so
// each call owns its snapshot.
func (s *search) minimax(board game.Board, depth int, maximizing bool, alpha, beta int) int {
	s.nodes++

	if _, ok := game.CheckWinner(board, s.self); ok {
		return winScore - depth
	}
	if _, ok := game.CheckWinner(board, s.opponent); ok {
		return depth - winScore
	}
	empty := game.EmptyCells(board)
	if len(empty) == 0 || depth >= s.maxDepth {
		return 0
	}

	if maximizing {
		best := math.MinInt
		for _, idx := range empty {
			next := board
			next[idx] = s.self
			best = max(best, s.minimax(next, depth+1, false, alpha, beta))
			alpha = max(alpha, best)
			if alpha >= beta {
				break
			}
		}
		return best
	}

	best := math.MaxInt
	for _, idx := range empty {
		next := board
		next[idx] = s.opponent
		best = min(best, s.minimax(next, depth+1, true, alpha, beta))
		beta = min(beta, best)
		if alpha >= beta {
			break
		}
	}
	return best
}
