package game

// Combination is a row, column or diagonal of three cell indices.
type Combination [3]int

// WinCombinations lists rows, then columns, then diagonals. The order is the
// tie-break when a board holds more than one line.
var WinCombinations = [8]Combination{
	// rows
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	// columns
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	// diagonals
	{0, 4, 8}, {2, 4, 6},
}

// Corners are the four corner cells.
var Corners = [4]int{0, 2, 6, 8}

// Status describes where a game stands.
type Status string

const (
	InProgress Status = "in_progress"
	Won        Status = "won"
	Draw       Status = "draw"
)

// Outcome is the result of evaluating a board.
type Outcome struct {
	Status      Status      `json:"status"`
	Winner      PlayerMark  `json:"winner,omitempty"`
	Combination Combination `json:"combination"`
}

// Finished reports whether the game is over.
func (o Outcome) Finished() bool {
	return o.Status != InProgress
}

// CheckWinner returns the first combination fully held by mark.
func CheckWinner(board Board, mark PlayerMark) (Combination, bool) {
	if mark == None {
		return Combination{}, false
	}
	for _, line := range WinCombinations {
		if board[line[0]] == mark && board[line[1]] == mark && board[line[2]] == mark {
			return line, true
		}
	}
	return Combination{}, false
}

// EmptyCells returns the indices of empty cells in ascending order.
func EmptyCells(board Board) []int {
	cells := make([]int, 0, len(board))
	for i, c := range board {
		if c == None {
			cells = append(cells, i)
		}
	}
	return cells
}

// IsBoardFull checks if no empty cell remains.
func IsBoardFull(board Board) bool {
	for _, c := range board {
		if c == None {
			return false
		}
	}
	return true
}

// IsDraw checks if the game is a draw.
func IsDraw(board Board) bool {
	if _, ok := CheckWinner(board, PlayerX); ok {
		return false
	}
	if _, ok := CheckWinner(board, PlayerO); ok {
		return false
	}
	return IsBoardFull(board)
}

// Evaluate derives the outcome of a board.
func Evaluate(board Board) Outcome {
	for _, mark := range [2]PlayerMark{PlayerX, PlayerO} {
		if line, ok := CheckWinner(board, mark); ok {
			return Outcome{Status: Won, Winner: mark, Combination: line}
		}
	}
	if IsBoardFull(board) {
		return Outcome{Status: Draw}
	}
	return Outcome{Status: InProgress}
}
