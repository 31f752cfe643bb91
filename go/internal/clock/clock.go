// Package clock issues cancelable deadlines for phase auto-resolution.
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Token pairs one scheduled deadline with its cancellation. Owners keep the
// token they scheduled and compare it under their own lock when the callback
// runs, so a deadline that fires after being replaced is a no-op.
type Token struct {
	name     string
	deadline time.Time
	done     chan struct{}
	once     sync.Once
}

// Deadline is the instant the token fires.
func (t *Token) Deadline() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.deadline
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	if t == nil {
		return true
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Cancel stops the deadline. Safe to call any number of times and on nil.
func (t *Token) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.done) })
}

// Scheduler runs one-shot callbacks at deadlines.
type Scheduler struct {
	clock Clock

	mu      sync.Mutex
	active  map[*Token]clockwork.Timer
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler on clock.
func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{
		clock:  clock,
		active: make(map[*Token]clockwork.Timer),
	}
}

// Now returns the scheduler's notion of the current time.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// After schedules fn to run d from now.
func (s *Scheduler) After(name string, d time.Duration, fn func(*Token)) *Token {
	return s.Schedule(name, s.clock.Now().Add(d), fn)
}

// Schedule arranges for fn to run once at deadline unless the returned token
// is cancelled first. fn runs on its own goroutine.
func (s *Scheduler) Schedule(name string, deadline time.Time, fn func(*Token)) *Token {
	tok := &Token{name: name, deadline: deadline, done: make(chan struct{})}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		tok.Cancel()
		return tok
	}
	duration := deadline.Sub(s.clock.Now())
	if duration < 0 {
		duration = 0
	}
	timer := s.clock.NewTimer(duration)
	s.active[tok] = timer
	s.wg.Add(1)
	s.mu.Unlock()

	go func(t clockwork.Timer) {
		defer s.wg.Done()
		select {
		case <-t.Chan():
			s.remove(tok)
			if tok.Cancelled() {
				return
			}
			log.Debug().Str("deadline", name).Msg("deadline fired")
			fn(tok)
		case <-tok.done:
			stopAndDrainTimer(t)
			s.remove(tok)
		}
	}(timer)

	log.Debug().
		Str("deadline", name).
		Time("at", deadline).
		Dur("duration", duration).
		Msg("scheduled one-shot timer")

	return tok
}

// Pending returns the number of scheduled, unfired deadlines.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Stop cancels every outstanding deadline and waits for their goroutines.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	toks := make([]*Token, 0, len(s.active))
	for tok := range s.active {
		toks = append(toks, tok)
	}
	s.mu.Unlock()

	for _, tok := range toks {
		tok.Cancel()
	}
	s.wg.Wait()
	log.Debug().Int("cancelled", len(toks)).Msg("scheduler stopped")
}

func (s *Scheduler) remove(tok *Token) {
	s.mu.Lock()
	delete(s.active, tok)
	s.mu.Unlock()
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
