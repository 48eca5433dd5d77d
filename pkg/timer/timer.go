package timer

import (
	"github.com/itohio/gotimer/pkg/mathx"
)

const (
	// MaxMinutes is the largest number of minutes the display can show.
	MaxMinutes = 999
	// MaxSeconds is the largest valid seconds value.
	MaxSeconds = 59
)

// Mode is the run state of the countdown.
type Mode uint8

const (
	// ModeFinished means the countdown reached 0:00. Ticks are no-ops.
	ModeFinished Mode = iota
	// ModeRunning means the countdown decrements once per tick.
	ModeRunning
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeRunning:
		return "running"
	case ModeFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// State holds the countdown shown on the oled: battery voltage, remaining
// minutes and seconds, and the run mode.
//
// The zero value is a finished timer at 0:00.
//
// State is not safe for concurrent use. Hosts that tick from one goroutine and
// apply input from another should wrap it (see package countdown).
type State struct {
	voltage uint16 // millivolts, as reported by the device
	minutes uint16
	seconds uint8
	mode    Mode
}

// New returns a running timer preset to the given number of minutes.
// Minutes above MaxMinutes are capped. A zero preset yields a finished timer.
func New(minutes uint16) State {
	if minutes == 0 {
		return NewFinished()
	}
	return State{
		minutes: mathx.Clamp(minutes, 0, MaxMinutes),
		mode:    ModeRunning,
	}
}

// NewFinished returns a timer that has already finished.
func NewFinished() State {
	return State{mode: ModeFinished}
}

// Tick advances the countdown by one second.
//
// A finished timer is left untouched. The tick that reaches 0:00 finishes
// the timer, so a running timer never rests at 0:00.
func (s *State) Tick() {
	if s.mode == ModeFinished {
		return
	}

	switch {
	case s.seconds > 0:
		s.seconds--
	case s.minutes > 0:
		s.minutes--
		s.seconds = MaxSeconds
	}

	if s.minutes == 0 && s.seconds == 0 {
		s.finish()
	}
}

// Increment adds one minute.
func (s *State) Increment() {
	s.IncrementMinutes(1)
}

// IncrementMinutes adds n minutes, saturating at MaxMinutes.
// It does nothing on a finished timer: a finished timer always reads 0:00 and
// is re-armed through the setters.
func (s *State) IncrementMinutes(n uint16) {
	if s.mode == ModeFinished {
		return
	}
	s.minutes = mathx.AddCap(s.minutes, n, MaxMinutes)
}

// Decrement removes one minute.
func (s *State) Decrement() {
	s.DecrementMinutes(1)
}

// DecrementMinutes removes n minutes, flooring at zero.
//
// The timer finishes at 0:00 when n is larger than the whole minutes left, or
// when the result is exactly 0:00. Removing exactly the whole minutes while
// seconds remain keeps the timer running on those seconds.
func (s *State) DecrementMinutes(n uint16) {
	if s.mode == ModeFinished {
		return
	}

	crossed := n > s.minutes
	s.minutes = mathx.SubFloor(s.minutes, n)
	if crossed || (s.minutes == 0 && s.seconds == 0) {
		s.finish()
	}
}

// IsFinished reports whether the countdown has reached zero.
func (s *State) IsFinished() bool {
	return s.mode == ModeFinished
}

// Minutes returns the remaining whole minutes.
func (s *State) Minutes() uint16 {
	return s.minutes
}

// SetMinutes sets the remaining minutes. The caller must keep the value
// within [0, MaxMinutes].
func (s *State) SetMinutes(v uint16) {
	s.minutes = v
}

// Seconds returns the remaining seconds within the current minute.
func (s *State) Seconds() uint8 {
	return s.seconds
}

// SetSeconds sets the remaining seconds. The caller must keep the value
// within [0, MaxSeconds]; it is not clamped.
func (s *State) SetSeconds(v uint8) {
	s.seconds = v
}

// Voltage returns the last reported battery voltage in millivolts.
func (s *State) Voltage() uint16 {
	return s.voltage
}

// SetVoltage records the battery voltage in millivolts.
func (s *State) SetVoltage(mv uint16) {
	s.voltage = mv
}

// Mode returns the run mode.
func (s *State) Mode() Mode {
	return s.mode
}

// SetMode sets the run mode directly. Setting ModeFinished does not zero
// minutes or seconds; callers re-initialising the timer set all fields.
func (s *State) SetMode(m Mode) {
	s.mode = m
}

// Snapshot returns a copy of all fields.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Voltage: s.voltage,
		Minutes: s.minutes,
		Seconds: s.seconds,
		Mode:    s.mode,
	}
}

func (s *State) finish() {
	s.minutes = 0
	s.seconds = 0
	s.mode = ModeFinished
}

// Snapshot is a read-only copy of a State, handed to display collaborators.
type Snapshot struct {
	Voltage uint16 // millivolts
	Minutes uint16
	Seconds uint8
	Mode    Mode
}

// IsFinished reports whether the snapshot was taken from a finished timer.
func (s Snapshot) IsFinished() bool {
	return s.Mode == ModeFinished
}

// Remaining returns the remaining time in seconds.
func (s Snapshot) Remaining() uint32 {
	return uint32(s.Minutes)*60 + uint32(s.Seconds)
}
