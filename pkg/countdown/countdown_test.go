package countdown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/itohio/gotimer/pkg/battery"
	"github.com/itohio/gotimer/pkg/config"
	"github.com/itohio/gotimer/pkg/protocol"
	"github.com/itohio/gotimer/pkg/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

// fakeClock hands out a single ticker that the test fires by hand.
type fakeClock struct {
	now      time.Time
	ticker   *fakeTicker
	interval chan time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ticker: &fakeTicker{
			ch:      make(chan time.Time),
			stopped: make(chan struct{}),
		},
		interval: make(chan time.Duration, 1),
	}
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.interval <- d
	return c.ticker
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) tick(t *testing.T) {
	t.Helper()
	c.now = c.now.Add(time.Second)
	select {
	case c.ticker.ch <- c.now:
	case <-time.After(time.Second):
		t.Fatal("tick not consumed")
	}
}

func testTimerConfig(preset uint16) *config.TimerConfig {
	return &config.TimerConfig{
		PresetMinutes: preset,
		TickInterval:  time.Second,
		StepMinutes:   1,
	}
}

func TestNew(t *testing.T) {
	c := New(testTimerConfig(30))
	snap := c.Snapshot()
	assert.Equal(t, uint16(30), snap.Minutes)
	assert.Equal(t, uint8(0), snap.Seconds)
	assert.Equal(t, timer.ModeRunning, snap.Mode)
	assert.Equal(t, uint16(30), c.Preset())

	finished := New(&config.TimerConfig{PresetMinutes: 30, StartFinished: true})
	assert.True(t, finished.Snapshot().IsFinished())

	defaults := New(nil)
	assert.Equal(t, config.Default().Timer.PresetMinutes, defaults.Snapshot().Minutes)
	assert.Equal(t, uint16(1), defaults.step)
	assert.Equal(t, time.Second, defaults.interval)

	capped := New(testTimerConfig(5000))
	assert.Equal(t, uint16(timer.MaxMinutes), capped.Snapshot().Minutes)
}

func TestCountdown_Operations(t *testing.T) {
	c := New(testTimerConfig(2))

	c.Tick()
	assert.Equal(t, timer.Snapshot{Minutes: 1, Seconds: 59, Mode: timer.ModeRunning}, c.Snapshot())

	c.Increment()
	assert.Equal(t, uint16(2), c.Snapshot().Minutes)

	c.Decrement()
	c.Decrement()
	snap := c.Snapshot()
	assert.Equal(t, uint16(0), snap.Minutes)
	assert.Equal(t, uint8(59), snap.Seconds)
	assert.False(t, snap.IsFinished())

	c.Decrement()
	assert.True(t, c.Snapshot().IsFinished())
	assert.Equal(t, uint32(0), c.Snapshot().Remaining())

	// Finished timers ignore increments and ticks.
	c.Increment()
	c.Tick()
	assert.True(t, c.Snapshot().IsFinished())

	c.SetVoltage(3812)
	assert.Equal(t, uint16(3812), c.Snapshot().Voltage)

	c.Restart()
	assert.Equal(t, timer.Snapshot{Voltage: 3812, Minutes: 2, Mode: timer.ModeRunning}, c.Snapshot())
}

func TestCountdown_Arm(t *testing.T) {
	c := New(&config.TimerConfig{StartFinished: true})

	c.Arm(5)
	assert.Equal(t, timer.Snapshot{Minutes: 5, Mode: timer.ModeRunning}, c.Snapshot())

	c.Arm(1200)
	assert.Equal(t, uint16(timer.MaxMinutes), c.Snapshot().Minutes)

	c.Arm(0)
	assert.True(t, c.Snapshot().IsFinished())
}

func TestCountdown_Up(t *testing.T) {
	c := New(&config.TimerConfig{StartFinished: true, StepMinutes: 2})

	c.Up()
	assert.Equal(t, timer.Snapshot{Minutes: 2, Mode: timer.ModeRunning}, c.Snapshot())

	c.Up()
	assert.Equal(t, timer.Snapshot{Minutes: 4, Mode: timer.ModeRunning}, c.Snapshot())
}

func TestCountdown_Preset(t *testing.T) {
	c := New(testTimerConfig(10))

	c.SetPreset(3)
	assert.Equal(t, uint16(10), c.Snapshot().Minutes, "preset does not touch the running timer")

	c.Restart()
	assert.Equal(t, uint16(3), c.Snapshot().Minutes)

	c.SetPreset(0)
	c.Restart()
	assert.True(t, c.Snapshot().IsFinished())

	c.SetStep(5)
	c.Arm(10)
	c.Increment()
	assert.Equal(t, uint16(15), c.Snapshot().Minutes)

	c.SetStep(0)
	c.Increment()
	assert.Equal(t, uint16(16), c.Snapshot().Minutes)
}

func TestCountdown_OnUpdate(t *testing.T) {
	c := New(testTimerConfig(1))

	var updates []timer.Snapshot
	c.OnUpdate(func(snap timer.Snapshot) {
		updates = append(updates, snap)
	})
	c.OnUpdate(nil)

	c.Tick()
	c.SetVoltage(4000)
	c.SetVoltage(4000) // unchanged, no update

	require.Len(t, updates, 2)
	assert.Equal(t, uint8(59), updates[0].Seconds)
	assert.Equal(t, uint16(4000), updates[1].Voltage)
}

func TestCountdown_OnFinishOncePerTransition(t *testing.T) {
	c := New(testTimerConfig(1))

	finishes := 0
	c.OnFinish(func(snap timer.Snapshot) {
		finishes++
		assert.True(t, snap.IsFinished())
	})

	for i := 0; i < 120; i++ {
		c.Tick()
	}
	assert.Equal(t, 1, finishes)

	c.Restart()
	c.Decrement()
	assert.Equal(t, 2, finishes)

	c.Decrement()
	assert.Equal(t, 2, finishes, "already finished")
}

func TestCountdown_CallbacksRunWithoutLock(t *testing.T) {
	c := New(testTimerConfig(1))

	var seen timer.Snapshot
	c.OnUpdate(func(snap timer.Snapshot) {
		seen = c.Snapshot() // would deadlock if called under the lock
	})

	c.Tick()
	assert.Equal(t, uint8(59), seen.Seconds)
}

func TestCountdown_Run(t *testing.T) {
	c := New(testTimerConfig(1))
	clock := newFakeClock()

	updates := make(chan timer.Snapshot, 10)
	c.OnUpdate(func(snap timer.Snapshot) { updates <- snap })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, clock)
	}()

	assert.Equal(t, time.Second, <-clock.interval)

	clock.tick(t)
	clock.tick(t)

	for _, want := range []uint8{59, 58} {
		select {
		case snap := <-updates:
			assert.Equal(t, want, snap.Seconds)
		case <-time.After(time.Second):
			t.Fatal("no update after tick")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	select {
	case <-clock.ticker.stopped:
	default:
		t.Fatal("ticker not stopped")
	}
}

func TestCountdown_ProcessReports(t *testing.T) {
	tests := []struct {
		name    string
		start   *config.TimerConfig
		buttons []protocol.Buttons
		want    timer.Snapshot
	}{
		{
			name:    "up adds a step",
			start:   testTimerConfig(10),
			buttons: []protocol.Buttons{{Up: true}},
			want:    timer.Snapshot{Minutes: 11, Mode: timer.ModeRunning},
		},
		{
			name:    "held button acts once",
			start:   testTimerConfig(10),
			buttons: []protocol.Buttons{{Up: true}, {Up: true}, {Up: true}},
			want:    timer.Snapshot{Minutes: 11, Mode: timer.ModeRunning},
		},
		{
			name:    "release and press again",
			start:   testTimerConfig(10),
			buttons: []protocol.Buttons{{Down: true}, {}, {Down: true}},
			want:    timer.Snapshot{Minutes: 8, Mode: timer.ModeRunning},
		},
		{
			name:    "up arms a finished timer",
			start:   &config.TimerConfig{StartFinished: true, StepMinutes: 5},
			buttons: []protocol.Buttons{{Up: true}},
			want:    timer.Snapshot{Minutes: 5, Mode: timer.ModeRunning},
		},
		{
			name:    "reset restores preset",
			start:   testTimerConfig(10),
			buttons: []protocol.Buttons{{Down: true}, {Reset: true, Down: true}},
			want:    timer.Snapshot{Minutes: 10, Mode: timer.ModeRunning},
		},
		{
			name:    "up and down together ignored",
			start:   testTimerConfig(10),
			buttons: []protocol.Buttons{{Up: true, Down: true}},
			want:    timer.Snapshot{Minutes: 10, Mode: timer.ModeRunning},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.start)

			input := make(chan protocol.Report, len(tt.buttons))
			for _, b := range tt.buttons {
				input <- protocol.Report{Timestamp: time.Now(), ADC: 2000, Buttons: b}
			}
			close(input)

			c.ProcessReports(input)
			assert.Equal(t, tt.want, c.Snapshot())
		})
	}
}

func TestCountdown_ProcessReadings(t *testing.T) {
	c := New(testTimerConfig(10))

	input := make(chan battery.Reading, 3)
	input <- battery.Reading{Millivolts: 4100}
	input <- battery.Reading{Millivolts: 4050}
	close(input)

	c.ProcessReadings(input)
	assert.Equal(t, uint16(4050), c.Snapshot().Voltage)
	assert.Equal(t, uint16(10), c.Snapshot().Minutes, "readings never touch the countdown")
}

func TestCountdown_ConcurrentUse(t *testing.T) {
	c := New(testTimerConfig(500))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Tick()
				c.SetVoltage(uint16(3000 + j))
				snap := c.Snapshot()
				assert.LessOrEqual(t, snap.Seconds, uint8(timer.MaxSeconds))
			}
		}()
	}
	wg.Wait()

	// 400 ticks from 500:00
	snap := c.Snapshot()
	assert.Equal(t, uint32(500*60-400), snap.Remaining())
}

func TestCountdown_StaleSnapshotDropped(t *testing.T) {
	c := New(testTimerConfig(1))

	var updates []timer.Snapshot
	c.OnUpdate(func(snap timer.Snapshot) { updates = append(updates, snap) })
	finishes := 0
	c.OnFinish(func(snap timer.Snapshot) { finishes++ })

	running := timer.Snapshot{Minutes: 0, Seconds: 1, Mode: timer.ModeRunning}
	finished := timer.Snapshot{Mode: timer.ModeFinished}

	// The finishing change lands first although it was made second.
	c.notifyCallbacks(finished, 2, true)
	c.notifyCallbacks(running, 1, false)

	require.Len(t, updates, 1)
	assert.Equal(t, finished, updates[0], "older running frame must not overwrite finished")
	assert.Equal(t, 1, finishes)

	// A late finish transition still reaches finish callbacks.
	c.notifyCallbacks(running, 4, false)
	c.notifyCallbacks(finished, 3, true)
	require.Len(t, updates, 2)
	assert.Equal(t, running, updates[1])
	assert.Equal(t, 2, finishes)
}

func TestCountdown_UpdatesInOrder(t *testing.T) {
	c := New(testTimerConfig(5))

	var mu sync.Mutex
	var last timer.Snapshot
	c.OnUpdate(func(snap timer.Snapshot) {
		mu.Lock()
		last = snap
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Tick()
				c.SetVoltage(3700)
				c.SetVoltage(3800)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, c.Snapshot(), last, "last delivered snapshot is the final state")
}

func TestCountdown_FinishedAt(t *testing.T) {
	c := New(testTimerConfig(1))
	assert.True(t, c.FinishedAt().IsZero())

	clock := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, clock)
	}()
	<-clock.interval

	c.Decrement()
	assert.Equal(t, clock.Now(), c.FinishedAt())

	cancel()
	<-done
}
