package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/itohio/gotimer/pkg/battery"
	"github.com/itohio/gotimer/pkg/protocol"
	"github.com/itohio/gotimer/pkg/timer"
	"github.com/stretchr/testify/assert"
)

// TestCountdown_GracefulShutdown tests that every loop of the countdown
// returns once its input is gone.
func TestCountdown_GracefulShutdown(t *testing.T) {
	c := New(testTimerConfig(10))

	reports := make(chan protocol.Report, 10)
	readings := make(chan battery.Reading, 10)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{}, 3)
	go func() {
		c.ProcessReports(reports)
		done <- struct{}{}
	}()
	go func() {
		c.ProcessReadings(readings)
		done <- struct{}{}
	}()
	go func() {
		c.Run(ctx, SystemClock)
		done <- struct{}{}
	}()

	reports <- protocol.Report{Timestamp: time.Now(), Buttons: protocol.Buttons{Up: true}}
	readings <- battery.Reading{Timestamp: time.Now(), Millivolts: 3900}

	close(reports)
	close(readings)
	cancel()

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Countdown loop did not stop within timeout")
		}
	}

	snap := c.Snapshot()
	assert.Equal(t, uint16(3900), snap.Voltage)
	assert.Equal(t, timer.ModeRunning, snap.Mode)
}

// TestCountdown_RunNilClock tests that Run falls back to the system clock.
func TestCountdown_RunNilClock(t *testing.T) {
	c := New(testTimerConfig(10))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, nil)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context deadline")
	}
}
