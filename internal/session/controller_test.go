package session_test

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/bot"
	"ctchen222/Tic-Tac-Toe-AI/internal/game"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
	"ctchen222/Tic-Tac-Toe-AI/internal/session/mocks"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var expertNoMistakes = bot.Profile{
	Name:       "Perfect",
	Difficulty: bot.Expert,
	ThinkMin:   100 * time.Millisecond,
	ThinkMax:   200 * time.Millisecond,
	ErrorRate:  0,
}

type selectorFunc func(ctx context.Context, board game.Board, profile bot.Profile) (int, error)

func (f selectorFunc) SelectMove(ctx context.Context, board game.Board, profile bot.Profile) (int, error) {
	return f(ctx, board, profile)
}

// eventType matches a session.Event by type.
type eventType session.EventType

func (e eventType) Matches(x any) bool {
	ev, ok := x.(session.Event)
	return ok && ev.Type == session.EventType(e)
}

func (e eventType) String() string {
	return fmt.Sprintf("event of type %s", string(e))
}

func newTwoPlayer(t *testing.T, opts ...session.Option) *session.Controller {
	t.Helper()
	opts = append([]session.Option{
		session.WithMode(session.ModeTwoPlayer),
		session.WithScheduler(session.NewManualScheduler()),
	}, opts...)
	return session.NewController(opts...)
}

func play(t *testing.T, c *session.Controller, moves ...int) {
	t.Helper()
	ctx := context.Background()
	for _, idx := range moves {
		mark := c.Snapshot().Turn
		require.NoError(t, c.ApplyMove(ctx, idx, mark), "move %d by %s", idx, mark)
	}
}

func TestNewController(t *testing.T) {
	c := session.NewController(session.WithID("abc"), session.WithScheduler(session.NewManualScheduler()))
	snap := c.Snapshot()

	assert.Equal(t, "abc", c.ID())
	assert.Equal(t, "abc", snap.SessionID)
	assert.Equal(t, game.Board{}, snap.Board)
	assert.Equal(t, game.PlayerX, snap.Turn)
	assert.Equal(t, session.PhaseAwaitingMove, snap.Phase)
	assert.Equal(t, game.InProgress, snap.Outcome.Status)
	assert.Equal(t, session.ModeVsComputer, snap.Mode)
	assert.Equal(t, bot.Rookie, snap.Profile)
	assert.False(t, snap.Thinking)
}

func TestApplyMove_WinScoresExactlyOnce(t *testing.T) {
	c := newTwoPlayer(t)
	play(t, c, 0, 3, 1, 4, 2)

	snap := c.Snapshot()
	assert.Equal(t, session.PhaseFinished, snap.Phase)
	assert.Equal(t, game.Outcome{Status: game.Won, Winner: game.PlayerX, Combination: game.Combination{0, 1, 2}}, snap.Outcome)
	assert.Equal(t, session.ScoreBoard{X: 1, O: 0}, snap.Score)

	// The same move again, and any further move, is rejected without scoring.
	err := c.ApplyMove(context.Background(), 2, game.PlayerX)
	assert.ErrorIs(t, err, game.ErrIllegalMove)
	err = c.ApplyMove(context.Background(), 5, game.PlayerO)
	assert.ErrorIs(t, err, game.ErrIllegalMove)
	assert.Equal(t, session.ScoreBoard{X: 1, O: 0}, c.Snapshot().Score)
}

func TestApplyMove_RepeatedMoveIsIllegal(t *testing.T) {
	c := newTwoPlayer(t)
	play(t, c, 4)
	before := c.Snapshot()

	err := c.ApplyMove(context.Background(), 4, game.PlayerO)
	assert.ErrorIs(t, err, game.ErrIllegalMove)
	err = c.ApplyMove(context.Background(), 4, game.PlayerX)
	assert.ErrorIs(t, err, game.ErrIllegalMove)
	assert.Equal(t, before, c.Snapshot(), "a rejected move must not change state")
}

func TestApplyMove_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		index int
		mark  game.PlayerMark
	}{
		{name: "Out of turn", index: 0, mark: game.PlayerO},
		{name: "Below range", index: -1, mark: game.PlayerX},
		{name: "Above range", index: 9, mark: game.PlayerX},
		{name: "Empty mark", index: 0, mark: game.None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTwoPlayer(t)
			before := c.Snapshot()
			err := c.ApplyMove(context.Background(), tt.index, tt.mark)
			assert.ErrorIs(t, err, game.ErrIllegalMove)
			assert.Equal(t, before, c.Snapshot())
		})
	}
}

func TestApplyMove_Draw(t *testing.T) {
	c := newTwoPlayer(t)
	play(t, c, 0, 1, 2, 4, 3, 5, 7, 6, 8)

	snap := c.Snapshot()
	assert.Equal(t, game.Outcome{Status: game.Draw}, snap.Outcome)
	assert.Equal(t, session.PhaseFinished, snap.Phase)
	assert.Equal(t, session.ScoreBoard{}, snap.Score)
}

func TestRestartKeepsScore(t *testing.T) {
	c := newTwoPlayer(t)
	play(t, c, 0, 3, 1, 4, 2)
	c.Restart(context.Background())

	snap := c.Snapshot()
	assert.Equal(t, game.Board{}, snap.Board)
	assert.Equal(t, game.PlayerX, snap.Turn)
	assert.Equal(t, session.PhaseAwaitingMove, snap.Phase)
	assert.Equal(t, game.InProgress, snap.Outcome.Status)
	assert.Equal(t, session.ScoreBoard{X: 1}, snap.Score)

	// O wins the second game
	play(t, c, 0, 3, 1, 4, 8, 5)
	assert.Equal(t, session.ScoreBoard{X: 1, O: 1}, c.Snapshot().Score)
}

func TestResetScoreKeepsBoard(t *testing.T) {
	c := newTwoPlayer(t)
	play(t, c, 0, 3, 1, 4, 2)
	c.Restart(context.Background())
	play(t, c, 4)

	c.ResetScore(context.Background())
	snap := c.Snapshot()
	assert.Equal(t, session.ScoreBoard{}, snap.Score)
	assert.Equal(t, game.PlayerX, snap.Board[4])
	assert.Equal(t, game.PlayerO, snap.Turn)
}

func TestOpponentMoveIsScheduled(t *testing.T) {
	sched := session.NewManualScheduler()
	c := session.NewController(
		session.WithScheduler(sched),
		session.WithProfile(expertNoMistakes),
		session.WithRand(rand.New(rand.NewPCG(7, 7))),
	)

	require.NoError(t, c.ApplyMove(context.Background(), 4, game.PlayerX))
	snap := c.Snapshot()
	assert.Equal(t, session.PhaseOpponentThinking, snap.Phase)
	assert.True(t, snap.Thinking)
	assert.Equal(t, game.PlayerO, snap.Turn)
	require.Equal(t, 1, sched.Pending())

	delay := sched.Delays()[0]
	assert.GreaterOrEqual(t, delay, expertNoMistakes.ThinkMin)
	assert.LessOrEqual(t, delay, expertNoMistakes.ThinkMax)

	// The human cannot move while the computer thinks.
	assert.ErrorIs(t, c.ApplyMove(context.Background(), 0, game.PlayerX), game.ErrIllegalMove)

	require.Equal(t, 1, sched.RunPending())
	snap = c.Snapshot()
	assert.Equal(t, session.PhaseAwaitingMove, snap.Phase)
	assert.Equal(t, game.PlayerX, snap.Turn)
	assert.Equal(t, 1, snap.Board.Count(game.PlayerO))
	assert.Equal(t, game.PlayerO, snap.Board[0], "expert answers a center opening with the lowest corner")
}

func TestStaleOpponentMoveIsDiscarded(t *testing.T) {
	tests := []struct {
		name       string
		invalidate func(c *session.Controller)
	}{
		{name: "Restart", invalidate: func(c *session.Controller) { c.Restart(context.Background()) }},
		{name: "Profile change", invalidate: func(c *session.Controller) {
			require.NoError(t, c.SetOpponentProfile(context.Background(), bot.Tactician))
		}},
		{name: "Mode change", invalidate: func(c *session.Controller) {
			require.NoError(t, c.SetMode(context.Background(), session.ModeTwoPlayer))
		}},
		{name: "Close", invalidate: func(c *session.Controller) { c.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := session.NewManualScheduler()
			calls := 0
			c := session.NewController(
				session.WithScheduler(sched),
				session.WithSelector(selectorFunc(func(ctx context.Context, b game.Board, p bot.Profile) (int, error) {
					calls++
					return game.EmptyCells(b)[0], nil
				})),
			)
			require.NoError(t, c.ApplyMove(context.Background(), 4, game.PlayerX))
			require.Equal(t, 1, sched.Pending())

			tt.invalidate(c)
			assert.Equal(t, 0, sched.Pending(), "pending move must be cancelled")

			// Even if the timer had already fired, the callback must not act.
			sched.RunAll()
			assert.Equal(t, 0, calls)
			assert.Equal(t, 0, c.Snapshot().Board.Count(game.PlayerO))
		})
	}
}

func TestExternalOpponentMoveCancelsSchedule(t *testing.T) {
	sched := session.NewManualScheduler()
	c := session.NewController(session.WithScheduler(sched), session.WithProfile(expertNoMistakes))

	require.NoError(t, c.ApplyMove(context.Background(), 4, game.PlayerX))
	require.NoError(t, c.ApplyMove(context.Background(), 8, game.PlayerO))
	assert.Equal(t, 0, sched.Pending())

	sched.RunAll()
	snap := c.Snapshot()
	assert.Equal(t, 1, snap.Board.Count(game.PlayerO))
	assert.Equal(t, game.PlayerO, snap.Board[8])
	assert.Equal(t, game.PlayerX, snap.Turn)
}

func TestTriggerOpponentMove(t *testing.T) {
	sched := session.NewManualScheduler()
	c := session.NewController(
		session.WithScheduler(sched),
		session.WithAutoOpponent(false),
		session.WithProfile(expertNoMistakes),
	)
	ctx := context.Background()

	assert.ErrorIs(t, c.TriggerOpponentMove(ctx), game.ErrIllegalMove, "X to move")

	require.NoError(t, c.ApplyMove(ctx, 0, game.PlayerX))
	assert.Equal(t, 0, sched.Pending(), "auto opponent is off")

	require.NoError(t, c.TriggerOpponentMove(ctx))
	assert.ErrorIs(t, c.TriggerOpponentMove(ctx), game.ErrIllegalMove, "already thinking")

	sched.RunPending()
	snap := c.Snapshot()
	assert.Equal(t, game.PlayerO, snap.Board[4], "expert answers a corner opening with the center")

	two := newTwoPlayer(t)
	play(t, two, 0)
	assert.ErrorIs(t, two.TriggerOpponentMove(ctx), game.ErrIllegalMove, "no computer in two-player mode")
}

func TestSetOpponentProfile(t *testing.T) {
	sched := session.NewManualScheduler()
	c := session.NewController(session.WithScheduler(sched), session.WithAutoOpponent(false))
	ctx := context.Background()

	require.NoError(t, c.ApplyMove(ctx, 0, game.PlayerX))
	require.NoError(t, c.SetOpponentProfile(ctx, bot.Grandmaster))
	snap := c.Snapshot()
	assert.Equal(t, bot.Grandmaster, snap.Profile)
	assert.Equal(t, game.Board{}, snap.Board, "game in progress restarts")

	assert.Error(t, c.SetOpponentProfile(ctx, bot.Profile{Name: "Broken"}))
	assert.Equal(t, bot.Grandmaster, c.Snapshot().Profile)

	// A finished game is left on screen.
	play(t, c, 0, 3, 1, 4, 2)
	require.NoError(t, c.SetOpponentProfile(ctx, bot.Rookie))
	snap = c.Snapshot()
	assert.Equal(t, session.PhaseFinished, snap.Phase)
	assert.Equal(t, bot.Rookie, snap.Profile)
	assert.Equal(t, 0, sched.Pending())
}

func TestSetMode(t *testing.T) {
	c := newTwoPlayer(t)
	play(t, c, 0, 4)

	require.NoError(t, c.SetMode(context.Background(), session.ModeVsComputer))
	snap := c.Snapshot()
	assert.Equal(t, session.ModeVsComputer, snap.Mode)
	assert.Equal(t, game.Board{}, snap.Board)

	assert.Error(t, c.SetMode(context.Background(), session.Mode("online")))
	assert.Equal(t, session.ModeVsComputer, c.Snapshot().Mode)
}

func TestOpponentInvariantViolationIsNotApplied(t *testing.T) {
	var last session.Event
	record := session.WithListener(session.ListenerFunc(func(ctx context.Context, ev session.Event) {
		last = ev
	}))

	sched := session.NewManualScheduler()
	c := session.NewController(
		session.WithScheduler(sched),
		record,
		session.WithSelector(selectorFunc(func(ctx context.Context, b game.Board, p bot.Profile) (int, error) {
			return -1, fmt.Errorf("%w: broken", game.ErrInvariantViolation)
		})),
	)
	require.NoError(t, c.ApplyMove(context.Background(), 4, game.PlayerX))
	require.True(t, last.Snapshot.Thinking)
	sched.RunPending()

	snap := c.Snapshot()
	assert.Equal(t, session.PhaseAwaitingMove, snap.Phase)
	assert.Equal(t, game.PlayerO, snap.Turn)
	assert.Equal(t, 0, snap.Board.Count(game.PlayerO))

	// Renderers learn that the computer stopped thinking.
	assert.Equal(t, session.EventOpponentFailed, last.Type)
	assert.Nil(t, last.Move)
	assert.Contains(t, last.Reason, "broken")
	assert.False(t, last.Snapshot.Thinking)
	assert.Equal(t, "error", last.Type.Cue())

	// An occupied cell from the selector is rejected too.
	c = session.NewController(
		session.WithScheduler(sched),
		record,
		session.WithSelector(selectorFunc(func(ctx context.Context, b game.Board, p bot.Profile) (int, error) {
			return 4, nil
		})),
	)
	require.NoError(t, c.ApplyMove(context.Background(), 4, game.PlayerX))
	sched.RunPending()
	assert.Equal(t, game.PlayerX, c.Snapshot().Board[4])
	assert.Equal(t, session.EventOpponentFailed, last.Type)
	require.NotNil(t, last.Move)
	assert.Equal(t, game.Move{Index: 4, Mark: game.PlayerO}, *last.Move)
	assert.Contains(t, last.Reason, game.ErrInvariantViolation.Error())

	// The human can ask for another attempt.
	require.NoError(t, c.TriggerOpponentMove(context.Background()))
	assert.True(t, c.Snapshot().Thinking)
}

// TestExpertNeverLoses walks every line a human playing X can take against
// the controller's expert.
func TestExpertNeverLoses(t *testing.T) {
	ctx := context.Background()
	games := 0

	// replay builds a fresh session and plays the human moves, letting the
	// computer answer after each.
	replay := func(t *testing.T, human []int) *session.Controller {
		t.Helper()
		sched := session.NewManualScheduler()
		c := session.NewController(
			session.WithScheduler(sched),
			session.WithProfile(expertNoMistakes),
			session.WithRand(rand.New(rand.NewPCG(1, 2))),
		)
		for _, idx := range human {
			require.NoError(t, c.ApplyMove(ctx, idx, game.PlayerX))
			sched.RunPending()
		}
		return c
	}

	var walk func(t *testing.T, human []int)
	walk = func(t *testing.T, human []int) {
		c := replay(t, human)
		snap := c.Snapshot()
		require.NoError(t, snap.Board.Validate())
		if snap.Phase == session.PhaseFinished {
			games++
			if snap.Outcome.Status == game.Won {
				require.Equal(t, game.PlayerO, snap.Outcome.Winner, "human line %v beat the expert: %s", human, snap.Board)
			}
			return
		}
		require.Equal(t, game.PlayerX, snap.Turn)
		for _, idx := range game.EmptyCells(snap.Board) {
			walk(t, append(append([]int(nil), human...), idx))
		}
	}
	walk(t, nil)
	assert.Positive(t, games)
}

func TestListenerReceivesEventsInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	listener := mocks.NewMockListener(ctrl)
	sched := session.NewManualScheduler()
	c := session.NewController(
		session.WithScheduler(sched),
		session.WithListener(listener),
		session.WithSelector(selectorFunc(func(ctx context.Context, b game.Board, p bot.Profile) (int, error) {
			return game.EmptyCells(b)[0], nil
		})),
	)
	ctx := context.Background()

	gomock.InOrder(
		listener.EXPECT().HandleEvent(gomock.Any(), eventType(session.EventMoveApplied)),
		listener.EXPECT().HandleEvent(gomock.Any(), eventType(session.EventOpponentThinking)),
		listener.EXPECT().HandleEvent(gomock.Any(), eventType(session.EventMoveRejected)),
		listener.EXPECT().HandleEvent(gomock.Any(), eventType(session.EventMoveApplied)),
		listener.EXPECT().HandleEvent(gomock.Any(), eventType(session.EventRestarted)),
		listener.EXPECT().HandleEvent(gomock.Any(), eventType(session.EventScoreReset)),
	)

	require.NoError(t, c.ApplyMove(ctx, 4, game.PlayerX))
	assert.Error(t, c.ApplyMove(ctx, 4, game.PlayerX))
	sched.RunPending()
	c.Restart(ctx)
	c.ResetScore(ctx)
}

func TestListenerSeesWinAfterMove(t *testing.T) {
	var got []session.EventType
	var last session.Snapshot
	c := newTwoPlayer(t, session.WithListener(session.ListenerFunc(func(ctx context.Context, ev session.Event) {
		got = append(got, ev.Type)
		last = ev.Snapshot
	})))
	play(t, c, 0, 3, 1, 4, 2)

	require.Len(t, got, 6)
	assert.Equal(t, session.EventMoveApplied, got[4])
	assert.Equal(t, session.EventGameWon, got[5])
	assert.Equal(t, 1, last.Score.X)
}

func TestEventsDeliveredInTransitionOrder(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	delivered := make(chan session.Event, 8)
	first := true

	c := newTwoPlayer(t, session.WithListener(session.ListenerFunc(func(ctx context.Context, ev session.Event) {
		if first {
			first = false
			close(entered)
			<-release
		}
		delivered <- ev
	})))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.ApplyMove(ctx, 0, game.PlayerX) }()
	<-entered

	// While the first event is still being delivered, a second caller's
	// transition is queued behind it rather than overtaking it.
	require.NoError(t, c.ApplyMove(ctx, 4, game.PlayerO))
	assert.Empty(t, delivered)

	close(release)
	require.NoError(t, <-done)

	firstEv, secondEv := <-delivered, <-delivered
	assert.Equal(t, 1, firstEv.Snapshot.Board.Count(game.PlayerX)+firstEv.Snapshot.Board.Count(game.PlayerO))
	assert.Equal(t, game.Move{Index: 4, Mark: game.PlayerO}, *secondEv.Move)
	assert.Equal(t, 2, secondEv.Snapshot.Board.Count(game.PlayerX)+secondEv.Snapshot.Board.Count(game.PlayerO))
	assert.Empty(t, delivered)
}

func TestListenerMayCallBack(t *testing.T) {
	// A listener that restarts on every win must not deadlock.
	var c *session.Controller
	c = newTwoPlayer(t, session.WithListener(session.ListenerFunc(func(ctx context.Context, ev session.Event) {
		if ev.Type == session.EventGameWon {
			c.Restart(ctx)
		}
	})))
	play(t, c, 0, 3, 1, 4, 2)
	assert.Equal(t, game.Board{}, c.Snapshot().Board)
	assert.Equal(t, 1, c.Snapshot().Score.X)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]session.Mode{
		"vs_computer": session.ModeVsComputer,
		"bot":         session.ModeVsComputer,
		"":            session.ModeVsComputer,
		"two_player":  session.ModeTwoPlayer,
		"human":       session.ModeTwoPlayer,
	} {
		got, err := session.ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := session.ParseMode("online")
	assert.Error(t, err)
}
