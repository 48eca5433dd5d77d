// Package protocol defines the line format spoken between the timer device and
// the host.
//
// Device to host, one report per line:
//
//	unix_micros,adc,buttons
//	1234567890123,3012,100
//
// adc is the raw 12-bit battery reading and buttons is three digits for the
// up, down and reset buttons ('1' = pressed).
//
// Host to device, one display frame per line:
//
//	D,mmm,ss,m,mv
//	D,029,59,R,3710
//
// m is R (running) or F (finished).
package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/gotimer/pkg/timer"
)

const (
	// MaxADC is the largest 12-bit ADC reading.
	MaxADC = 4095

	displayPrefix = "D"
)

// Buttons is the pressed state of the device buttons.
type Buttons struct {
	Up    bool
	Down  bool
	Reset bool
}

// Any reports whether any button is pressed.
func (b Buttons) Any() bool {
	return b.Up || b.Down || b.Reset
}

// Report is one measurement line sent by the device.
type Report struct {
	Timestamp time.Time
	ADC       uint16 // 12-bit battery ADC reading (0-4095)
	Buttons   Buttons
}

// ParseReport parses a report line.
func ParseReport(line string) (Report, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return Report{}, fmt.Errorf("invalid report format: expected 3 comma-separated values, got %d", len(parts))
	}

	timestampMicros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Report{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	adc, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return Report{}, fmt.Errorf("invalid adc: %w", err)
	}
	if adc > MaxADC {
		return Report{}, fmt.Errorf("adc out of range: %d (max %d)", adc, MaxADC)
	}

	buttons, err := parseButtons(parts[2])
	if err != nil {
		return Report{}, err
	}

	return Report{
		Timestamp: time.Unix(0, timestampMicros*1000),
		ADC:       uint16(adc),
		Buttons:   buttons,
	}, nil
}

// FormatReport formats a report as a line, including the trailing newline.
func FormatReport(r Report) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(r.Timestamp.UnixNano()/1000, 10))
	sb.WriteByte(',')
	sb.WriteString(strconv.FormatUint(uint64(r.ADC), 10))
	sb.WriteByte(',')
	sb.WriteByte(bit(r.Buttons.Up))
	sb.WriteByte(bit(r.Buttons.Down))
	sb.WriteByte(bit(r.Buttons.Reset))
	sb.WriteByte('\n')
	return sb.String()
}

// FormatDisplay formats a display frame as a line, including the trailing newline.
func FormatDisplay(s timer.Snapshot) string {
	mode := "R"
	if s.IsFinished() {
		mode = "F"
	}
	return fmt.Sprintf("%s,%03d,%02d,%s,%d\n", displayPrefix, s.Minutes, s.Seconds, mode, s.Voltage)
}

// ParseDisplay parses a display line sent by the host.
func ParseDisplay(line string) (timer.Snapshot, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 5 {
		return timer.Snapshot{}, fmt.Errorf("invalid display format: expected 5 comma-separated values, got %d", len(parts))
	}
	if parts[0] != displayPrefix {
		return timer.Snapshot{}, fmt.Errorf("invalid display prefix: %q", parts[0])
	}

	minutes, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return timer.Snapshot{}, fmt.Errorf("invalid minutes: %w", err)
	}
	if minutes > timer.MaxMinutes {
		return timer.Snapshot{}, fmt.Errorf("minutes out of range: %d (max %d)", minutes, timer.MaxMinutes)
	}

	seconds, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil {
		return timer.Snapshot{}, fmt.Errorf("invalid seconds: %w", err)
	}
	if seconds > timer.MaxSeconds {
		return timer.Snapshot{}, fmt.Errorf("seconds out of range: %d (max %d)", seconds, timer.MaxSeconds)
	}

	var mode timer.Mode
	switch parts[3] {
	case "R":
		mode = timer.ModeRunning
	case "F":
		mode = timer.ModeFinished
	default:
		return timer.Snapshot{}, fmt.Errorf("invalid mode: %q", parts[3])
	}

	mv, err := strconv.ParseUint(parts[4], 10, 16)
	if err != nil {
		return timer.Snapshot{}, fmt.Errorf("invalid voltage: %w", err)
	}

	return timer.Snapshot{
		Voltage: uint16(mv),
		Minutes: uint16(minutes),
		Seconds: uint8(seconds),
		Mode:    mode,
	}, nil
}

func parseButtons(s string) (Buttons, error) {
	if len(s) != 3 {
		return Buttons{}, fmt.Errorf("invalid buttons: expected 3 digits, got %d", len(s))
	}
	for i := range 3 {
		if s[i] != '0' && s[i] != '1' {
			return Buttons{}, fmt.Errorf("invalid buttons: unexpected %q", s[i])
		}
	}
	return Buttons{
		Up:    s[0] == '1',
		Down:  s[1] == '1',
		Reset: s[2] == '1',
	}, nil
}

func bit(b bool) byte {
	if b {
		return '1'
	}
	return '0'
}
