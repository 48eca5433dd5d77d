package countdown

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/itohio/gotimer/pkg/battery"
	"github.com/itohio/gotimer/pkg/config"
	"github.com/itohio/gotimer/pkg/mathx"
	"github.com/itohio/gotimer/pkg/protocol"
	"github.com/itohio/gotimer/pkg/timer"
)

var _ Runner = (*Countdown)(nil)

// Runner drives a countdown from a clock, device buttons and battery readings.
type Runner interface {
	Run(ctx context.Context, clock Clock)
	ProcessReports(input <-chan protocol.Report)
	ProcessReadings(input <-chan battery.Reading)
	Snapshot() timer.Snapshot
	OnUpdate(func(snap timer.Snapshot))
	OnFinish(func(snap timer.Snapshot))
}

// Countdown owns a single timer.State and serialises every mutation.
// Ticks, button presses and battery readings arrive from different goroutines;
// observers only ever see consistent snapshots.
type Countdown struct {
	mu     sync.RWMutex
	state  timer.State
	preset uint16
	step   uint16

	interval time.Duration
	clock    Clock

	seq        uint64 // Bumped under mu on every change
	finishedAt time.Time

	// Callbacks
	callbacks       []func(snap timer.Snapshot)
	finishCallbacks []func(snap timer.Snapshot)
	cbMu            sync.RWMutex

	notifyMu  sync.Mutex
	delivered uint64 // Newest seq handed to update callbacks
}

// New creates a countdown preset from the timer configuration.
// A nil configuration uses the defaults.
func New(cfg *config.TimerConfig) *Countdown {
	if cfg == nil {
		cfg = &config.Default().Timer
	}

	c := &Countdown{
		preset:   mathx.Clamp(cfg.PresetMinutes, 0, timer.MaxMinutes),
		step:     cfg.StepMinutes,
		interval: cfg.TickInterval,
		clock:    SystemClock,
	}
	if c.step == 0 {
		c.step = 1
	}
	if c.interval <= 0 {
		c.interval = time.Second
	}

	if cfg.StartFinished {
		c.state = timer.NewFinished()
	} else {
		c.state = timer.New(c.preset)
	}

	return c
}

// Run ticks the timer once per configured interval until ctx is cancelled.
func (c *Countdown) Run(ctx context.Context, clock Clock) {
	if clock == nil {
		clock = SystemClock
	}

	c.mu.Lock()
	c.clock = clock
	c.mu.Unlock()

	ticker := clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.Tick()
		}
	}
}

// ProcessReports applies button presses from the device until input closes.
// Only the press edge counts: a button held across several reports acts once.
func (c *Countdown) ProcessReports(input <-chan protocol.Report) {
	var prev protocol.Buttons
	for r := range input {
		pressed := protocol.Buttons{
			Up:    r.Buttons.Up && !prev.Up,
			Down:  r.Buttons.Down && !prev.Down,
			Reset: r.Buttons.Reset && !prev.Reset,
		}
		prev = r.Buttons

		c.press(pressed)
	}
}

// press applies a set of newly pressed buttons. Reset takes precedence.
func (c *Countdown) press(b protocol.Buttons) {
	switch {
	case b.Reset:
		c.Restart()
	case b.Up && b.Down:
		log.Printf("Ignoring simultaneous up and down press")
	case b.Up:
		c.Up()
	case b.Down:
		c.Decrement()
	}
}

// ProcessReadings applies battery readings until input closes.
func (c *Countdown) ProcessReadings(input <-chan battery.Reading) {
	for r := range input {
		c.SetVoltage(r.Millivolts)
	}
}

// Tick advances the timer by one second.
func (c *Countdown) Tick() {
	c.mutate(func(s *timer.State) { s.Tick() })
}

// Increment adds the configured step in minutes.
// A finished timer stays finished; use Arm to start it again.
func (c *Countdown) Increment() {
	c.mutate(func(s *timer.State) { s.IncrementMinutes(c.step) })
}

// Up acts like the device up button: it adds a step to a running timer and
// re-arms a finished one with a single step.
func (c *Countdown) Up() {
	c.mutate(func(s *timer.State) {
		if s.IsFinished() {
			arm(s, c.step)
			return
		}
		s.IncrementMinutes(c.step)
	})
}

// Decrement removes the configured step in minutes.
func (c *Countdown) Decrement() {
	c.mutate(func(s *timer.State) { s.DecrementMinutes(c.step) })
}

// SetVoltage records the latest battery voltage in millivolts.
func (c *Countdown) SetVoltage(mv uint16) {
	c.mutate(func(s *timer.State) { s.SetVoltage(mv) })
}

// Restart re-initialises the timer to the preset.
func (c *Countdown) Restart() {
	c.mutate(func(s *timer.State) { arm(s, c.preset) })
}

// Arm starts the timer at the given number of minutes regardless of its mode.
func (c *Countdown) Arm(minutes uint16) {
	c.mutate(func(s *timer.State) { arm(s, minutes) })
}

// SetPreset changes the minutes used by Restart. It does not touch the running timer.
func (c *Countdown) SetPreset(minutes uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preset = mathx.Clamp(minutes, 0, timer.MaxMinutes)
}

// Preset returns the minutes used by Restart.
func (c *Countdown) Preset() uint16 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.preset
}

// SetStep changes the minutes added or removed per button press.
func (c *Countdown) SetStep(minutes uint16) {
	if minutes == 0 {
		minutes = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = minutes
}

// FinishedAt returns the clock time of the last transition to finished, or
// the zero time if the countdown has not finished yet.
func (c *Countdown) FinishedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finishedAt
}

// Snapshot returns a consistent copy of the timer.
func (c *Countdown) Snapshot() timer.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Snapshot()
}

// OnUpdate registers a callback invoked after every change of the timer.
// The callback should return as fast as possible and must not change the
// countdown. When changes from different goroutines race, a snapshot older
// than one already delivered is dropped.
func (c *Countdown) OnUpdate(callback func(snap timer.Snapshot)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = append(c.callbacks, callback)
}

// OnFinish registers a callback invoked once per transition from running to finished.
func (c *Countdown) OnFinish(callback func(snap timer.Snapshot)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.finishCallbacks = append(c.finishCallbacks, callback)
}

// arm sets the timer to minutes:00 through the setters.
// Zero minutes leaves it finished, keeping finished timers at 0:00.
func arm(s *timer.State, minutes uint16) {
	s.SetMinutes(mathx.Clamp(minutes, 0, timer.MaxMinutes))
	s.SetSeconds(0)
	if s.Minutes() == 0 {
		s.SetMode(timer.ModeFinished)
		return
	}
	s.SetMode(timer.ModeRunning)
}

// mutate applies fn under the write lock, then notifies callbacks after
// releasing it. Callers never see a half-applied operation.
func (c *Countdown) mutate(fn func(s *timer.State)) {
	c.mu.Lock()
	before := c.state.Snapshot()
	fn(&c.state)
	after := c.state.Snapshot()
	if before == after {
		c.mu.Unlock()
		return
	}
	c.seq++
	seq := c.seq
	finished := !before.IsFinished() && after.IsFinished()
	if finished {
		c.finishedAt = c.clock.Now()
	}
	c.mu.Unlock()

	c.notifyCallbacks(after, seq, finished)
}

// notifyCallbacks invokes the registered callbacks with the snapshot stamped seq.
// Update callbacks run one snapshot at a time and skip snapshots older than
// the last one delivered. Finish callbacks always run since the transition
// did happen.
func (c *Countdown) notifyCallbacks(snap timer.Snapshot, seq uint64, finished bool) {
	c.cbMu.RLock()
	callbacks := make([]func(snap timer.Snapshot), len(c.callbacks))
	copy(callbacks, c.callbacks)
	var finishCallbacks []func(snap timer.Snapshot)
	if finished {
		finishCallbacks = make([]func(snap timer.Snapshot), len(c.finishCallbacks))
		copy(finishCallbacks, c.finishCallbacks)
	}
	c.cbMu.RUnlock()

	c.notifyMu.Lock()
	if seq > c.delivered {
		c.delivered = seq
		for _, cb := range callbacks {
			if cb != nil {
				cb(snap)
			}
		}
	}
	c.notifyMu.Unlock()

	for _, cb := range finishCallbacks {
		if cb != nil {
			cb(snap)
		}
	}
}
