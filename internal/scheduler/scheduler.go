// Package scheduler runs the fixed-period Control band on its own
// goroutine and fires advisory Predict/Semantics work as independent,
// fire-and-forget background goroutines. Control never waits on a
// background task, and bands never share a lock.
package scheduler

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ControlFn is one Control-band tick. A panic inside it is recovered,
// logged, and swallowed — the Shield guards actuators downstream, so a
// single bad tick must not take the loop down.
type ControlFn func()

// BackgroundFn is one Predict/Semantics invocation, run fire-and-forget.
type BackgroundFn func()

// MissedCycleCounter is the minimal metrics seam the scheduler needs;
// *metrics.Registry's SchedulerMissedCyclesTotal counter satisfies it.
type MissedCycleCounter interface {
	Inc()
}

// BandScheduler runs a fixed-rate Control band and any number of
// fire-and-forget background bands.
type BandScheduler struct {
	period float64 // seconds
	log    *zap.Logger
	missed MissedCycleCounter

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	bgWg sync.WaitGroup
}

// New constructs a BandScheduler for the given Control rate. controlHz
// must be > 0. missed may be nil (no-op).
func New(controlHz float64, log *zap.Logger, missed MissedCycleCounter) *BandScheduler {
	if controlHz <= 0 {
		panic("scheduler: control_hz must be > 0")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BandScheduler{period: 1.0 / controlHz, log: log, missed: missed}
}

// StartControl launches the Control band loop on a dedicated OS thread
// (via runtime.LockOSThread, matching a real-time-scheduled control loop's
// expectation of not migrating between Go's M:N goroutine scheduler
// threads mid-tick). Calling StartControl twice without an intervening
// Stop is a no-op.
func (s *BandScheduler) StartControl(controlFn ControlFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.runControl(controlFn, s.stopCh, s.doneCh)
}

func (s *BandScheduler) runControl(controlFn ControlFn, stop <-chan struct{}, done chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	nextT := time.Now()
	for {
		select {
		case <-stop:
			return
		default:
		}

		s.tick(controlFn)

		// Fixed-rate advance without drift: schedule the next tick at
		// nextT + period, not at now + period.
		nextT = nextT.Add(time.Duration(s.period * float64(time.Second)))
		rem := time.Until(nextT)
		if rem > 0 {
			select {
			case <-stop:
				return
			case <-time.After(rem):
			}
		} else {
			// Overran: no catch-up. Drop the debt and resume phase from
			// now, matching the no-accrual overrun semantics of a
			// real-time control loop that must never fall progressively
			// further behind wall time.
			if s.missed != nil {
				s.missed.Inc()
			}
			nextT = time.Now()
		}
	}
}

func (s *BandScheduler) tick(controlFn ControlFn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("control tick panicked, continuing", zap.Any("recover", r))
		}
	}()
	controlFn()
}

// RunBackground fires fn once on its own goroutine and returns
// immediately. Control never joins this goroutine; Stop does not wait
// on it either, matching the teacher's daemon-thread fire-and-forget
// background task model.
func (s *BandScheduler) RunBackground(fn BackgroundFn) {
	s.bgWg.Add(1)
	go func() {
		defer s.bgWg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("background tick panicked, continuing", zap.Any("recover", r))
			}
		}()
		fn()
	}()
}

// Stop signals the Control loop to exit and waits up to timeout for it
// to acknowledge. Background goroutines are not joined — they are
// expected to exit on their own as the process winds down.
func (s *BandScheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(timeout):
		s.log.Warn("control loop did not stop within timeout", zap.Duration("timeout", timeout))
	}
}
