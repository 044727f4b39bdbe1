package bot

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/game"
	"errors"
	"math/rand/v2"
	"testing"
)

// scriptedRand replays fixed values. Once exhausted Float64 returns 0.99 and
// IntN returns 0.
type scriptedRand struct {
	floats []float64
	ints   []int
}

func (r *scriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.99
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func mustParse(t *testing.T, s string) game.Board {
	t.Helper()
	b, err := game.ParseBoard(s)
	if err != nil {
		t.Fatalf("ParseBoard(%q) failed: %v", s, err)
	}
	return b
}

func TestFindWinningMove(t *testing.T) {
	tests := []struct {
		name      string
		board     string
		mark      game.PlayerMark
		wantIndex int
		wantFound bool
	}{
		{name: "No winning move - empty board", board: ".........", mark: game.PlayerX, wantIndex: -1},
		{name: "X can win - first row", board: "XX.OO....", mark: game.PlayerX, wantIndex: 2, wantFound: true},
		{name: "O can win - second column", board: "XO.XO....", mark: game.PlayerO, wantIndex: 7, wantFound: true},
		{name: "X can win - main diagonal", board: "X...X....", mark: game.PlayerX, wantIndex: 8, wantFound: true},
		{name: "O can win - anti-diagonal", board: "..O.O....", mark: game.PlayerO, wantIndex: 6, wantFound: true},
		{name: "Lowest winning cell first", board: "XX.X.....", mark: game.PlayerX, wantIndex: 2, wantFound: true},
		{name: "Full board, no win possible", board: "XOXXOOOXX", mark: game.PlayerX, wantIndex: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, found := findWinningMove(mustParse(t, tt.board), tt.mark)
			if found != tt.wantFound || idx != tt.wantIndex {
				t.Errorf("findWinningMove() got (%d, %v), want (%d, %v)", idx, found, tt.wantIndex, tt.wantFound)
			}
		})
	}
}

func TestStrategicMove(t *testing.T) {
	tests := []struct {
		name  string
		board string
		ints  []int
		want  int
	}{
		{name: "Takes the win over the block", board: "XX.OO.X..", want: 5},
		{name: "Blocks the human", board: "XX..O....", want: 2},
		{name: "Takes the center", board: "X........", want: 4},
		{name: "Random corner", board: "....X....", ints: []int{2}, want: 6},
		{name: "Only free corner", board: "XOX.O.OX.", want: 8},
		{name: "Falls back to any cell", board: "XOX.X.OXO", ints: []int{1}, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(&scriptedRand{ints: tt.ints})
			b := mustParse(t, tt.board)
			if got := p.strategicMove(b, b.Turn()); got != tt.want {
				t.Errorf("strategicMove() got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSelectMove_ErrorInjection(t *testing.T) {
	profile := Profile{Name: "Clumsy", Difficulty: Expert, ErrorRate: 0.5}
	// Board where O can win at 5; a mistake ignores it.
	b := mustParse(t, "XX.OO.X..")
	p := NewPolicy(&scriptedRand{floats: []float64{0.1}, ints: []int{0}})

	move, err := p.SelectMove(context.Background(), b, profile)
	if err != nil {
		t.Fatalf("SelectMove failed: %v", err)
	}
	if move != 2 {
		t.Errorf("expected the first empty cell (2) from the scripted mistake, got %d", move)
	}

	p = NewPolicy(&scriptedRand{floats: []float64{0.5}})
	move, err = p.SelectMove(context.Background(), b, profile)
	if err != nil {
		t.Fatalf("SelectMove failed: %v", err)
	}
	if move != 5 {
		t.Errorf("draw equal to the error rate must not inject a mistake, got %d", move)
	}
}

func TestSelectMove_EasyDispatch(t *testing.T) {
	b := mustParse(t, "XX.OO.X..")

	p := NewPolicy(&scriptedRand{floats: []float64{0.9, 0.59}})
	move, err := p.SelectMove(context.Background(), b, Profile{Name: "E", Difficulty: Easy})
	if err != nil {
		t.Fatalf("SelectMove failed: %v", err)
	}
	if move != 5 {
		t.Errorf("heuristic branch should win at 5, got %d", move)
	}

	p = NewPolicy(&scriptedRand{floats: []float64{0.9, 0.6}, ints: []int{3}})
	move, err = p.SelectMove(context.Background(), b, Profile{Name: "E", Difficulty: Easy})
	if err != nil {
		t.Fatalf("SelectMove failed: %v", err)
	}
	// empty cells are 2, 5, 7, 8
	if move != 8 {
		t.Errorf("random branch should pick empty cell #3 (8), got %d", move)
	}
}

func TestSelectMove_MediumAlwaysHeuristic(t *testing.T) {
	p := NewPolicy(&scriptedRand{floats: []float64{0.99}})
	move, err := p.SelectMove(context.Background(), mustParse(t, "XX..O...."), Tactician)
	if err != nil {
		t.Fatalf("SelectMove failed: %v", err)
	}
	if move != 2 {
		t.Errorf("medium should block at 2, got %d", move)
	}
}

func TestSelectMove_ExpertTakesImmediateWin(t *testing.T) {
	tests := []struct {
		name  string
		board string
		wins  []int
	}{
		{name: "Row win despite X threat", board: "XX.OO.X..", wins: []int{5}},
		{name: "Column win", board: "XO.XO...X", wins: []int{7}},
		{name: "Diagonal win", board: "OXX.OX...", wins: []int{8}},
		{name: "Two wins available", board: "XXOXX.O.O", wins: []int{5, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(rand.New(rand.NewPCG(1, 2)))
			b := mustParse(t, tt.board)
			move, err := p.SelectMove(context.Background(), b, Grandmaster)
			if err != nil {
				t.Fatalf("SelectMove failed: %v", err)
			}
			next, err := b.Place(move, b.Turn())
			if err != nil {
				t.Fatalf("expert chose illegal cell %d: %v", move, err)
			}
			if _, ok := game.CheckWinner(next, b.Turn()); !ok {
				t.Errorf("expert chose %d, want one of winning cells %v", move, tt.wins)
			}
		})
	}
}

func TestSelectMove_ExpertBlocksAndBreaksTiesLow(t *testing.T) {
	p := NewPolicy(&scriptedRand{})

	move, err := p.SelectMove(context.Background(), mustParse(t, "XX..O...."), Grandmaster)
	if err != nil {
		t.Fatalf("SelectMove failed: %v", err)
	}
	if move != 2 {
		t.Errorf("expert should block at 2, got %d", move)
	}

	// Against a center opening every corner draws and every edge loses.
	move, err = p.SelectMove(context.Background(), mustParse(t, "....X...."), Grandmaster)
	if err != nil {
		t.Fatalf("SelectMove failed: %v", err)
	}
	if move != 0 {
		t.Errorf("expert should take the lowest corner (0), got %d", move)
	}
}

func TestSelectMove_InvariantViolation(t *testing.T) {
	boards := map[string]string{
		"full board":      "XOXXOOOXX",
		"won board":       "XXXOO....",
		"counts diverged": "XX.......",
	}
	p := NewPolicy(nil)
	for name, s := range boards {
		t.Run(name, func(t *testing.T) {
			move, err := p.SelectMove(context.Background(), mustParse(t, s), Grandmaster)
			if !errors.Is(err, game.ErrInvariantViolation) {
				t.Errorf("expected ErrInvariantViolation, got %v (move %d)", err, move)
			}
		})
	}
}

func TestSelectMove_UnknownDifficulty(t *testing.T) {
	p := NewPolicy(&scriptedRand{})
	if _, err := p.SelectMove(context.Background(), game.Board{}, Profile{Name: "Odd", Difficulty: "wild"}); err == nil {
		t.Error("expected an error for an unknown difficulty")
	}
}

// TestExpertNeverLoses walks the whole game tree: every reply an opponent
// can make, with the expert moving first and second.
func TestExpertNeverLoses(t *testing.T) {
	p := NewPolicy(&scriptedRand{})
	ctx := context.Background()

	for _, expert := range []game.PlayerMark{game.PlayerX, game.PlayerO} {
		games := 0
		var walk func(b game.Board)
		walk = func(b game.Board) {
			out := game.Evaluate(b)
			if out.Finished() {
				games++
				if out.Status == game.Won && out.Winner != expert {
					t.Fatalf("expert %s lost with board %s", expert, b)
				}
				return
			}
			if b.Turn() == expert {
				idx, err := p.SelectMove(ctx, b, Grandmaster)
				if err != nil {
					t.Fatalf("SelectMove failed on %s: %v", b, err)
				}
				next, err := b.Place(idx, expert)
				if err != nil {
					t.Fatalf("expert chose illegal cell %d on %s: %v", idx, b, err)
				}
				walk(next)
				return
			}
			for _, idx := range game.EmptyCells(b) {
				next, _ := b.Place(idx, b.Turn())
				walk(next)
			}
		}
		walk(game.Board{})
		if games == 0 {
			t.Fatalf("no games played with expert as %s", expert)
		}
	}
}

func TestExpertSelfPlayDraws(t *testing.T) {
	p := NewPolicy(&scriptedRand{})
	b := game.Board{}
	for !game.Evaluate(b).Finished() {
		idx, err := p.SelectMove(context.Background(), b, Grandmaster)
		if err != nil {
			t.Fatalf("SelectMove failed: %v", err)
		}
		if b, err = b.Place(idx, b.Turn()); err != nil {
			t.Fatalf("illegal move %d: %v", idx, err)
		}
	}
	if out := game.Evaluate(b); out.Status != game.Draw {
		t.Errorf("expert self-play should draw, got %+v on %s", out, b)
	}
}
