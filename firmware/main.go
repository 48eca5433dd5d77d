//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"github.com/itohio/gotimer/pkg/mathx"
	"github.com/itohio/gotimer/pkg/oled"
	"github.com/itohio/gotimer/pkg/protocol"
	"github.com/itohio/gotimer/pkg/timer"
	"tinygo.org/x/drivers/ssd1306"
)

var (
	adcBattery machine.ADC
	serial     = machine.Serial
	display    *ssd1306.Device
	frame      oled.Frame

	// Battery ADC averaging - running sum and count
	batterySum   uint32
	batteryCount int
	batteryAvg   uint16

	// Buttons
	buttons       protocol.Buttons // Debounced state
	buttonsRaw    protocol.Buttons
	buttonsSince  time.Time
	buttonsReport bool // Debounced state changed, report immediately

	// Timing
	lastADCRead time.Time
	lastReport  time.Time

	// Serial buffer for reading lines
	serialBuffer [32]byte
	serialPos    int
)

func main() {
	// Configure button pins as inputs with pull-ups
	PIN_BUTTON_UP.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	PIN_BUTTON_DOWN.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	PIN_BUTTON_RESET.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	// Configure ADC pin and set up ADC with highest resolution
	PIN_BATTERY_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})
	adcBattery = machine.ADC{Pin: PIN_BATTERY_ADC}
	adcBattery.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	serial.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	configureDisplay()

	// Nothing received yet: show a finished timer
	showSnapshot(timer.Snapshot{})

	now := time.Now()
	lastADCRead = now
	lastReport = now
	buttonsSince = now

	// Main loop
	for {
		now := time.Now()

		// Check for display lines from the host (non-blocking)
		processSerial()

		if now.Sub(lastADCRead) >= SAMPLE_INTERVAL_MS*time.Millisecond {
			readBatteryADC()
			lastADCRead = now
		}

		if batteryCount >= NUM_SAMPLES {
			batteryAvg = uint16(batterySum / uint32(batteryCount))
			batterySum = 0
			batteryCount = 0
		}

		readButtons(now)

		if buttonsReport || now.Sub(lastReport) >= REPORT_INTERVAL_MS*time.Millisecond {
			outputReport(now)
			buttonsReport = false
			lastReport = now
		}

		// Small delay to prevent tight loop
		time.Sleep(500 * time.Microsecond)
	}
}

func configureDisplay() {
	machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
	})

	// Small delay for bus stabilization
	time.Sleep(10 * time.Millisecond)

	display = ssd1306.NewI2C(machine.I2C0)
	display.Configure(ssd1306.Config{
		Address: OLED_ADDRESS,
		Width:   oled.Width,
		Height:  oled.Height,
	})
	display.ClearDisplay()
}

func readBatteryADC() {
	// Get returns a 16-bit scaled value
	value := adcBattery.Get() >> ADC_SHIFT
	batterySum += uint32(value)
	batteryCount++
}

// readButtons debounces the three buttons. Pins are active low.
func readButtons(now time.Time) {
	raw := protocol.Buttons{
		Up:    !PIN_BUTTON_UP.Get(),
		Down:  !PIN_BUTTON_DOWN.Get(),
		Reset: !PIN_BUTTON_RESET.Get(),
	}
	if raw != buttonsRaw {
		buttonsRaw = raw
		buttonsSince = now
		return
	}
	if raw != buttons && now.Sub(buttonsSince) >= DEBOUNCE_MS*time.Millisecond {
		buttons = raw
		buttonsReport = true
	}
}

func outputReport(now time.Time) {
	line := protocol.FormatReport(protocol.Report{
		Timestamp: now,
		ADC:       batteryAvg,
		Buttons:   buttons,
	})
	serial.Write([]byte(line))
}

func processSerial() {
	// Read available bytes from serial
	for serial.Buffered() > 0 {
		data, err := serial.ReadByte()
		if err != nil {
			break
		}

		// Check for newline (end of line)
		if data == '\n' || data == '\r' {
			if serialPos > 0 {
				handleLine(string(serialBuffer[:serialPos]))
			}
			// Reset buffer regardless of length
			serialPos = 0
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			// Line too long - drop it
			serialPos = 0
		}
	}
}

func handleLine(line string) {
	snap, err := protocol.ParseDisplay(line)
	if err != nil {
		println("bad display line:", err.Error())
		return
	}
	showSnapshot(snap)
}

func showSnapshot(snap timer.Snapshot) {
	oled.Render(&frame, snap, batteryPercent(snap.Voltage))
	if err := display.SetBuffer(frame.Pages()); err != nil {
		println("display buffer:", err.Error())
		return
	}
	if err := display.Display(); err != nil {
		println("display:", err.Error())
	}
}

// batteryPercent is a linear estimate between the empty and full voltages.
func batteryPercent(mv uint16) float32 {
	p := float32(int32(mv)-BATTERY_EMPTY_MV) / (BATTERY_FULL_MV - BATTERY_EMPTY_MV) * 100
	return mathx.Clamp(p, 0, 100)
}
