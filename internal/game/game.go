package game

import (
	"errors"
	"fmt"
)

// PlayerMark represents the mark of a player (X, O) or an empty cell.
type PlayerMark string

const (
	// Player marks
	None    PlayerMark = ""
	PlayerX PlayerMark = "X"
	PlayerO PlayerMark = "O"

	// Board boundaries
	BorderMin = 0
	BorderMax = 8
	Center    = 4
)

var (
	// ErrIllegalMove is returned for a move on a finished game, an occupied or
	// out-of-range cell, or a move made out of turn.
	ErrIllegalMove = errors.New("illegal move")
	// ErrInvariantViolation signals a sequencing bug: a board whose mark counts
	// diverged, or an opponent asked to move on a finished board.
	ErrInvariantViolation = errors.New("invariant violation")
)

// Board is the 3x3 grid stored row-major (index = row*3 + col).
type Board [9]PlayerMark

// Move is a cell index plus the player making it.
type Move struct {
	Index int        `json:"index"`
	Mark  PlayerMark `json:"mark"`
}

// Other returns the opposing mark.
func (m PlayerMark) Other() PlayerMark {
	switch m {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	}
	return None
}

// Count returns how many cells hold mark.
func (b Board) Count(mark PlayerMark) int {
	n := 0
	for _, c := range b {
		if c == mark {
			n++
		}
	}
	return n
}

// Turn returns whose move it is. X always moves first.
func (b Board) Turn() PlayerMark {
	if b.Count(PlayerX) == b.Count(PlayerO) {
		return PlayerX
	}
	return PlayerO
}

// Validate checks that X and O counts never diverge by more than one.
func (b Board) Validate() error {
	x, o := b.Count(PlayerX), b.Count(PlayerO)
	if x != o && x != o+1 {
		return fmt.Errorf("%w: %d X marks against %d O marks", ErrInvariantViolation, x, o)
	}
	return nil
}

// Place returns a copy of the board with mark placed at index.
func (b Board) Place(index int, mark PlayerMark) (Board, error) {
	if index < BorderMin || index > BorderMax {
		return b, fmt.Errorf("%w: cell %d out of range", ErrIllegalMove, index)
	}
	if b[index] != None {
		return b, fmt.Errorf("%w: cell %d already occupied", ErrIllegalMove, index)
	}
	b[index] = mark
	return b, nil
}

// Rows converts the board to a slice of rows for transport.
func (b Board) Rows() [][]PlayerMark {
	rows := make([][]PlayerMark, 3)
	for r := range [3]int{} {
		rows[r] = make([]PlayerMark, 3)
		for c := range [3]int{} {
			rows[r][c] = b[r*3+c]
		}
	}
	return rows
}

// ParseBoard builds a board from a compact string such as "XX.OO....".
// '.', ' ' and '-' denote empty cells.
func ParseBoard(s string) (Board, error) {
	var b Board
	if len(s) != len(b) {
		return b, fmt.Errorf("board must have %d cells, got %d", len(b), len(s))
	}
	for i, ch := range s {
		switch ch {
		case 'X', 'x':
			b[i] = PlayerX
		case 'O', 'o':
			b[i] = PlayerO
		case '.', ' ', '-':
			b[i] = None
		default:
			return b, fmt.Errorf("invalid cell %q at %d", ch, i)
		}
	}
	return b, nil
}

func (b Board) String() string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c == None {
			out[i] = '.'
		} else {
			out[i] = c[0]
		}
	}
	return string(out)
}
