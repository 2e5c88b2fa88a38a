package monitor

import (
	"sync"
	"time"
)

// Scheduler runs fn repeatedly until the returned Task is stopped.
type Scheduler interface {
	Every(d time.Duration, fn func()) Task
}

// Task is a cancellable scheduled job. Stop must not wait for a running fn.
type Task interface {
	Stop()
}

// TickerScheduler runs jobs on a time.Ticker goroutine.
type TickerScheduler struct{}

// Every implements Scheduler.
func (TickerScheduler) Every(d time.Duration, fn func()) Task {
	t := &tickerTask{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type tickerTask struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *tickerTask) run(fn func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			select {
			case <-t.done:
				return
			default:
			}
			fn()
		}
	}
}

func (t *tickerTask) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}

// ManualScheduler only runs jobs when Fire is called. Tests use it to step
// the monitor deterministically.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

// NewManualScheduler returns a scheduler with no jobs.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Every implements Scheduler.
func (s *ManualScheduler) Every(d time.Duration, fn func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &manualTask{fn: fn, interval: d}
	s.tasks = append(s.tasks, t)
	return t
}

// Fire runs every live job once and returns how many ran.
func (s *ManualScheduler) Fire() int {
	s.mu.Lock()
	live := make([]*manualTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.isStopped() {
			live = append(live, t)
		}
	}
	s.tasks = live
	s.mu.Unlock()

	n := 0
	for _, t := range live {
		if t.isStopped() {
			continue
		}
		t.fn()
		n++
	}
	return n
}

// Active returns the number of jobs that have not been stopped.
func (s *ManualScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.tasks {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

type manualTask struct {
	mu       sync.Mutex
	fn       func()
	interval time.Duration
	stopped  bool
}

func (t *manualTask) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTask) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
