// tui runs a single game session in the terminal.
package main

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/bot"
	"ctchen222/Tic-Tac-Toe-AI/internal/config"
	"ctchen222/Tic-Tac-Toe-AI/internal/game"
	"ctchen222/Tic-Tac-Toe-AI/internal/logger"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

var (
	flagProfile = flag.String("profile", "", "Opponent profile (defaults to the first configured)")
	flagMode    = flag.String("mode", "vs_computer", "vs_computer or two_player")
	flagLog     = flag.String("log", "", "Write logs to this file")
	flagQuiet   = flag.Bool("quiet", false, "Disable the terminal bell")
)

type ui struct {
	app      *tview.Application
	screen   tcell.Screen
	ctrl     *session.Controller
	profiles *bot.Profiles
	cells    [9]*tview.Button
	status   *tview.TextView
	score    *tview.TextView
	dropdown *tview.DropDown
	quiet    bool
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var logOut io.Writer = io.Discard
	if *flagLog != "" {
		f, err := os.OpenFile(*flagLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger.InitConsole(logOut, cfg.Log.SlogLevel())

	profiles, err := cfg.OpponentProfiles()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	profile := profiles.Default()
	if *flagProfile != "" {
		p, ok := profiles.Lookup(*flagProfile)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown profile %q\n", *flagProfile)
			os.Exit(2)
		}
		profile = p
	}
	mode, err := session.ParseMode(*flagMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	u := &ui{
		app:      tview.NewApplication().SetScreen(screen),
		screen:   screen,
		profiles: profiles,
		quiet:    *flagQuiet,
	}
	u.ctrl = session.NewController(
		session.WithProfile(profile),
		session.WithMode(mode),
		session.WithAutoOpponent(cfg.Session.AutoOpponent),
		session.WithListener(session.ListenerFunc(u.HandleEvent)),
	)
	defer u.ctrl.Close()

	u.build()
	u.render(u.ctrl.Snapshot(), "")
	slog.Info("Starting terminal session", "session.id", u.ctrl.ID(), "profile.name", profile.Name, "session.mode", string(mode))

	if err := u.app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (u *ui) build() {
	board := tview.NewGrid().
		SetRows(3, 3, 3).
		SetColumns(7, 7, 7).
		SetGap(1, 1)
	for i := range u.cells {
		idx := i
		btn := tview.NewButton(" ").SetSelectedFunc(func() { u.play(idx) })
		u.cells[i] = btn
		board.AddItem(btn, i/3, i%3, 1, 1, 0, 0, i == 0)
	}

	u.status = tview.NewTextView().SetDynamicColors(true)
	u.score = tview.NewTextView().SetDynamicColors(true)

	names := make([]string, 0, len(u.profiles.List()))
	current := 0
	for i, p := range u.profiles.List() {
		names = append(names, p.Name)
		if p.Name == u.ctrl.Snapshot().Profile.Name {
			current = i
		}
	}
	u.dropdown = tview.NewDropDown().SetLabel("Opponent: ").SetOptions(names, nil)
	u.dropdown.SetCurrentOption(current)
	u.dropdown.SetSelectedFunc(func(text string, _ int) {
		p, ok := u.profiles.Lookup(text)
		if !ok {
			return
		}
		if err := u.ctrl.SetOpponentProfile(context.Background(), p); err != nil {
			slog.Error("Failed to change profile", "error", err)
		}
		u.app.SetFocus(u.cells[4])
	})

	help := tview.NewTextView().SetDynamicColors(true).
		SetText("[gray]1-9 place  o computer moves  r restart  s reset score  m mode  p opponent  q quit")

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(board, 11, 0, true).
		AddItem(u.status, 1, 0, false).
		AddItem(u.score, 1, 0, false).
		AddItem(u.dropdown, 1, 0, false).
		AddItem(help, 1, 0, false)
	root.SetBorder(true).SetTitle(" Tic-Tac-Toe ")

	u.app.SetRoot(root, true).SetInputCapture(u.handleKey)
}

func (u *ui) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if u.dropdown.HasFocus() {
		return ev
	}
	ctx := context.Background()
	switch r := ev.Rune(); {
	case r >= '1' && r <= '9':
		u.play(int(r - '1'))
	case r == 'r':
		u.ctrl.Restart(ctx)
	case r == 's':
		u.ctrl.ResetScore(ctx)
	case r == 'm':
		next := session.ModeTwoPlayer
		if u.ctrl.Snapshot().Mode == session.ModeTwoPlayer {
			next = session.ModeVsComputer
		}
		if err := u.ctrl.SetMode(ctx, next); err != nil {
			slog.Error("Failed to change mode", "error", err)
		}
	case r == 'o':
		if err := u.ctrl.TriggerOpponentMove(ctx); err != nil {
			slog.Debug("Opponent move not possible", "error", err)
		}
	case r == 'p':
		u.app.SetFocus(u.dropdown)
	case r == 'q':
		u.app.Stop()
	default:
		return ev
	}
	return nil
}

// play places the mark of whoever is to move. In vs_computer mode only X is
// placed from the keyboard.
func (u *ui) play(idx int) {
	snap := u.ctrl.Snapshot()
	mark := snap.Turn
	if snap.Mode == session.ModeVsComputer {
		mark = game.PlayerX
	}
	if err := u.ctrl.ApplyMove(context.Background(), idx, mark); err != nil {
		slog.Debug("Move rejected", "cell", idx, "error", err)
	}
}

// HandleEvent runs on whichever goroutine caused the transition, so drawing
// is queued onto the application loop.
func (u *ui) HandleEvent(_ context.Context, ev session.Event) {
	if ev.Type.Cue() == "win" && !u.quiet {
		u.screen.Beep()
	}
	reason := ev.Reason
	u.app.QueueUpdateDraw(func() { u.render(ev.Snapshot, reason) })
}

func (u *ui) render(snap session.Snapshot, reason string) {
	winning := map[int]bool{}
	if snap.Outcome.Status == game.Won {
		for _, i := range snap.Outcome.Combination {
			winning[i] = true
		}
	}
	for i, btn := range u.cells {
		label := " "
		if m := snap.Board[i]; m != game.None {
			label = string(m)
		}
		btn.SetLabel(label)
		bg, fg := tcell.ColorDarkSlateGray, tcell.ColorWhite
		switch {
		case winning[i]:
			bg = tcell.ColorDarkGreen
		case snap.Board[i] == game.PlayerX:
			fg = tcell.ColorLightSkyBlue
		case snap.Board[i] == game.PlayerO:
			fg = tcell.ColorLightCoral
		}
		btn.SetLabelColor(fg)
		btn.SetBackgroundColor(bg)
	}

	var status strings.Builder
	switch {
	case snap.Outcome.Status == game.Won:
		fmt.Fprintf(&status, "[green]%s wins", snap.Outcome.Winner)
	case snap.Outcome.Status == game.Draw:
		status.WriteString("[yellow]Draw")
	case snap.Thinking:
		fmt.Fprintf(&status, "[white]%s is thinking...", snap.Profile.Name)
	default:
		fmt.Fprintf(&status, "[white]%s to move", snap.Turn)
	}
	if reason != "" {
		fmt.Fprintf(&status, "  [red]%s", reason)
	}
	u.status.SetText(status.String())

	opponent := "O"
	if snap.Mode == session.ModeVsComputer {
		opponent = "O (" + snap.Profile.Name + ")"
	}
	u.score.SetText(fmt.Sprintf("X %d  :  %d %s", snap.Score.X, snap.Score.O, opponent))
}
