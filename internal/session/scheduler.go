package session

import (
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealScheduler is backed by time.AfterFunc.
func RealScheduler() Scheduler {
	return timeScheduler{}
}

// ManualScheduler holds callbacks until the caller fires them. It lets tests
// and simulations step through opponent delays without sleeping.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	s       *ManualScheduler
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTask) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// NewManualScheduler creates an empty scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{s: s, delay: d, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

// Pending counts callbacks that are neither stopped nor fired.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Delays returns the requested delay of every callback scheduled so far.
func (s *ManualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.delay
	}
	return out
}

// RunPending fires every active callback and returns how many ran.
func (s *ManualScheduler) RunPending() int {
	return s.run(false)
}

// RunAll fires every callback not yet fired, including stopped ones. This
// reproduces a timer that expired just before it was stopped.
func (s *ManualScheduler) RunAll() int {
	return s.run(true)
}

func (s *ManualScheduler) run(includeStopped bool) int {
	s.mu.Lock()
	var due []*manualTask
	for _, t := range s.tasks {
		if t.fired || (t.stopped && !includeStopped) {
			continue
		}
		t.fired = true
		due = append(due, t)
	}
	s.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}
