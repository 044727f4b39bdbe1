// arena plays opponent profiles against each other and reports the results.
package main

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/bench"
	"ctchen222/Tic-Tac-Toe-AI/internal/config"
	"ctchen222/Tic-Tac-Toe-AI/internal/game"
	"ctchen222/Tic-Tac-Toe-AI/internal/logger"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/muesli/termenv"
)

var (
	flagP1      = flag.String("p1", "Grandmaster", "First profile")
	flagP2      = flag.String("p2", "Rookie", "Second profile")
	flagGames   = flag.Int("games", 100, "Number of games")
	flagThreads = flag.Int("threads", 4, "Worker goroutines")
	flagSeed    = flag.Uint64("seed", 0, "Random seed (0 picks one)")
	flagVerbose = flag.Bool("v", false, "Print every game")
)

// printer renders arena progress to the terminal.
type printer struct {
	mu      sync.Mutex
	out     *termenv.Output
	p1, p2  string
	verbose bool
}

func (p *printer) OnFinishedGame(info bench.GameInfo) {
	if !p.verbose {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var result termenv.Style
	switch info.Result {
	case bench.Pl1Win:
		result = p.out.String(p.p1 + " wins").Foreground(p.out.Color("2"))
	case bench.Pl2Win:
		result = p.out.String(p.p2 + " wins").Foreground(p.out.Color("1"))
	default:
		result = p.out.String("draw").Faint()
	}
	first := p.p1
	if !info.P1First {
		first = p.p2
	}
	fmt.Fprintf(p.out, "game %3d  worker %d  %-12s first  moves %v  %s\n", info.Game, info.WorkerID, first, info.Moves, result)
}

func (p *printer) Summary(s bench.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pct := func(n int) float64 {
		if s.TotalGames == 0 {
			return 0
		}
		return 100 * float64(n) / float64(s.TotalGames)
	}
	fmt.Fprintln(p.out, p.out.String(fmt.Sprintf("%d games on %d workers", s.TotalGames, s.Workers)).Bold())
	fmt.Fprintf(p.out, "  %-12s %s\n", p.p1, p.out.String(fmt.Sprintf("%4d wins (%5.1f%%)", s.P1Wins, pct(s.P1Wins))).Foreground(p.out.Color("2")))
	fmt.Fprintf(p.out, "  %-12s %s\n", p.p2, p.out.String(fmt.Sprintf("%4d wins (%5.1f%%)", s.P2Wins, pct(s.P2Wins))).Foreground(p.out.Color("1")))
	fmt.Fprintf(p.out, "  %-12s %s\n", "draws", p.out.String(fmt.Sprintf("%4d      (%5.1f%%)", s.Draws, pct(s.Draws))).Faint())
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.InitConsole(os.Stderr, cfg.Log.SlogLevel())

	profiles, err := cfg.OpponentProfiles()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	p1, ok := profiles.Lookup(*flagP1)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown profile %q\n", *flagP1)
		os.Exit(2)
	}
	p2, ok := profiles.Lookup(*flagP2)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown profile %q\n", *flagP2)
		os.Exit(2)
	}

	seed := *flagSeed
	if seed == 0 {
		seed = rand.Uint64()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := termenv.NewOutput(os.Stdout)
	fmt.Fprintf(out, "%s vs %s  seed %d\n", out.String(p1.Name).Bold(), out.String(p2.Name).Bold(), seed)

	arena := bench.NewArena(p1, p2).WithContext(ctx)
	arena.Setup(*flagGames, *flagThreads, seed)
	if _, err := arena.Run(&printer{out: out, p1: p1.Name, p2: p2.Name, verbose: *flagVerbose}); err != nil {
		if errors.Is(err, game.ErrInvariantViolation) {
			slog.Error("opponent produced an illegal move", "error", err)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
