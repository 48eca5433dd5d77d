package link

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/gotimer/pkg/config"
	"github.com/itohio/gotimer/pkg/protocol"
	"github.com/itohio/gotimer/pkg/timer"
)

// Mock simulates a timer display device for testing and development.
type Mock struct {
	cfg     config.MockConfig
	battery config.BatteryConfig

	reports   chan protocol.Report
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}

	// Simulation state
	startTime time.Time
	pending   protocol.Buttons // Reported once by the next report, then released
	frame     timer.Snapshot   // Last frame shown
	frames    int              // Number of frames shown
}

// NewMock creates a new mocked device instance. Nil configs fall back to
// defaults. Both configs are copied. A non-positive report rate falls back to
// the default.
func NewMock(cfg *config.MockConfig, battery *config.BatteryConfig) *Mock {
	def := config.Default()
	if cfg == nil {
		cfg = &def.Mock
	}
	if battery == nil {
		battery = &def.Battery
	}
	mockCfg := *cfg
	if mockCfg.ReportRate <= 0 {
		mockCfg.ReportRate = def.Mock.ReportRate
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:     mockCfg,
		battery: *battery,
		reports: make(chan protocol.Report, DefaultBufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect simulates connecting to the device.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = time.Now()
	m.done = make(chan struct{})

	go m.generateReports()

	return nil
}

// Close stops the mocked device and closes the reports channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.connected = false
	done := m.done
	m.mu.Unlock()

	// Wait for the generator so the channel is never written after close.
	<-done
	close(m.reports)

	return nil
}

// Reports returns the channel for reading reports.
func (m *Mock) Reports() <-chan protocol.Report {
	return m.reports
}

// Show records the frame as the device would display it.
func (m *Mock) Show(snap timer.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return fmt.Errorf("not connected")
	}

	m.frame = snap
	m.frames++

	return nil
}

// Frame returns the last frame shown and the number of frames shown so far.
func (m *Mock) Frame() (timer.Snapshot, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frame, m.frames
}

// Press simulates pressing buttons. The press is carried by the next report
// and released in the one after.
func (m *Mock) Press(b protocol.Buttons) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending.Up = m.pending.Up || b.Up
	m.pending.Down = m.pending.Down || b.Down
	m.pending.Reset = m.pending.Reset || b.Reset
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// generateReports generates simulated reports.
func (m *Mock) generateReports() {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.ReportRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			report := m.generateReport(time.Now())
			select {
			case m.reports <- report:
			case <-m.ctx.Done():
				return
			default:
				// Channel full, skip
			}
		}
	}
}

// generateReport generates a single simulated report.
func (m *Mock) generateReport(now time.Time) protocol.Report {
	m.mu.Lock()
	elapsed := now.Sub(m.startTime)
	buttons := m.pending
	m.pending = protocol.Buttons{}
	m.mu.Unlock()

	return protocol.Report{
		Timestamp: now,
		ADC:       m.batteryADC(elapsed),
		Buttons:   buttons,
	}
}

// batteryADC simulates the battery draining linearly with a little noise and
// converts the voltage to what the ADC sees behind the divider.
func (m *Mock) batteryADC(elapsed time.Duration) uint16 {
	mv := float64(m.cfg.StartMV) - m.cfg.DrainMVPerSecond*elapsed.Seconds()

	noise := (math.Sin(float64(elapsed.Nanoseconds())*0.001) +
		math.Cos(float64(elapsed.Nanoseconds())*0.0013)) *
		m.cfg.NoiseMV * 0.5
	mv += noise

	if mv < 0 {
		mv = 0
	}

	return millivoltsToADC(mv, &m.battery)
}

// millivoltsToADC converts a battery voltage to the 12-bit reading taken
// after the divider. Formula: V_out = V_in * R2 / (R1 + R2)
func millivoltsToADC(mv float64, battery *config.BatteryConfig) uint16 {
	if battery.R1+battery.R2 <= 0 || battery.VRef <= 0 {
		return 0
	}
	vout := (mv / 1000) * battery.R2 / (battery.R1 + battery.R2)
	adc := math.Round((vout / battery.VRef) * protocol.MaxADC)
	if adc < 0 {
		return 0
	}
	if adc > protocol.MaxADC {
		return protocol.MaxADC
	}
	return uint16(adc)
}
