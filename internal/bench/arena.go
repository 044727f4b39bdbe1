package bench

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/bot"
	"ctchen222/Tic-Tac-Toe-AI/internal/game"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
)

/*
Arena plays a series of games between two opponent profiles, alternating who
moves first, and counts wins and draws.
*/

type MatchResult int

const (
	Pl1Win MatchResult = 1
	Pl2Win MatchResult = -1
	Draw   MatchResult = 0
)

type Stats struct {
	p1Wins atomic.Uint32
	p2Wins atomic.Uint32
	draws  atomic.Uint32
}

func (s *Stats) Total() int {
	return s.P1Wins() + s.P2Wins() + s.Draws()
}

func (s *Stats) P1Wins() int {
	return int(s.p1Wins.Load())
}

func (s *Stats) P2Wins() int {
	return int(s.p2Wins.Load())
}

func (s *Stats) Draws() int {
	return int(s.draws.Load())
}

func (s *Stats) record(r MatchResult) {
	switch r {
	case Pl1Win:
		s.p1Wins.Add(1)
	case Pl2Win:
		s.p2Wins.Add(1)
	default:
		s.draws.Add(1)
	}
}

// GameInfo describes one finished game.
type GameInfo struct {
	WorkerID int
	Game     int
	P1First  bool
	Moves    []int
	Outcome  game.Outcome
	Result   MatchResult
}

type Summary struct {
	TotalGames int
	P1Wins     int
	P2Wins     int
	Draws      int
	Workers    int
}

// Listener observes arena progress. Methods may be called from several
// workers at once.
type Listener interface {
	OnFinishedGame(info GameInfo)
	Summary(s Summary)
}

type Arena struct {
	Stats
	Player1  bot.Profile
	Player2  bot.Profile
	NGames   int
	NThreads int
	Seed     uint64
	ctx      context.Context
}

func NewArena(p1, p2 bot.Profile) *Arena {
	return &Arena{
		Player1:  p1,
		Player2:  p2,
		NGames:   100,
		NThreads: 2,
		Seed:     rand.Uint64(),
		ctx:      context.Background(),
	}
}

func (a *Arena) WithContext(ctx context.Context) *Arena {
	a.ctx = ctx
	return a
}

func (a *Arena) Setup(nGames, nThreads int, seed uint64) {
	a.NGames = nGames
	a.NThreads = nThreads
	a.Seed = seed
}

// Run distributes the games over the workers and blocks until all have
// finished or the context is cancelled.
func (a *Arena) Run(listener Listener) (Summary, error) {
	if a.NThreads < 1 || a.NGames < 0 {
		return Summary{}, fmt.Errorf("invalid arena setup: %d games on %d workers", a.NGames, a.NThreads)
	}
	for _, p := range []bot.Profile{a.Player1, a.Player2} {
		if err := p.Validate(); err != nil {
			return Summary{}, err
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, a.NThreads)
	nGames := a.NGames / a.NThreads
	rest := a.NGames % a.NThreads
	first := 0
	for i := range a.NThreads {
		n := nGames
		if rest > 0 {
			n++
			rest--
		}
		wg.Add(1)
		go func(id, first, n int) {
			defer wg.Done()
			if err := a.worker(id, first, n, listener); err != nil {
				errs <- err
			}
		}(i, first, n)
		first += n
	}
	wg.Wait()
	close(errs)

	summary := Summary{
		TotalGames: a.Total(),
		P1Wins:     a.P1Wins(),
		P2Wins:     a.P2Wins(),
		Draws:      a.Draws(),
		Workers:    a.NThreads,
	}
	if listener != nil {
		listener.Summary(summary)
	}
	if err := <-errs; err != nil {
		return summary, err
	}
	return summary, a.ctx.Err()
}

// worker plays games [first, first+n). Player 1 moves first in even games.
func (a *Arena) worker(id, first, n int, listener Listener) error {
	policy := bot.NewPolicy(rand.New(rand.NewPCG(a.Seed, uint64(id))))

	for g := first; g < first+n; g++ {
		select {
		case <-a.ctx.Done():
			return nil
		default:
		}

		p1First := g%2 == 0
		moves, outcome, err := playGame(a.ctx, policy, a.Player1, a.Player2, p1First)
		if err != nil {
			return fmt.Errorf("worker %d game %d: %w", id, g, err)
		}

		result := Draw
		if outcome.Status == game.Won {
			p1Mark := game.PlayerO
			if p1First {
				p1Mark = game.PlayerX
			}
			if outcome.Winner == p1Mark {
				result = Pl1Win
			} else {
				result = Pl2Win
			}
		}
		a.record(result)

		if listener != nil {
			listener.OnFinishedGame(GameInfo{
				WorkerID: id,
				Game:     g,
				P1First:  p1First,
				Moves:    moves,
				Outcome:  outcome,
				Result:   result,
			})
		}
	}
	return nil
}

func playGame(ctx context.Context, policy *bot.Policy, p1, p2 bot.Profile, p1First bool) ([]int, game.Outcome, error) {
	xProfile, oProfile := p1, p2
	if !p1First {
		xProfile, oProfile = p2, p1
	}

	var board game.Board
	moves := make([]int, 0, 9)
	for {
		outcome := game.Evaluate(board)
		if outcome.Finished() {
			return moves, outcome, nil
		}
		mark := board.Turn()
		profile := xProfile
		if mark == game.PlayerO {
			profile = oProfile
		}

		idx, err := policy.SelectMove(ctx, board, profile)
		if err != nil {
			return moves, outcome, err
		}
		board, err = board.Place(idx, mark)
		if err != nil {
			return moves, outcome, fmt.Errorf("%w: %s chose %d", game.ErrInvariantViolation, profile.Name, idx)
		}
		moves = append(moves, idx)
	}
}
