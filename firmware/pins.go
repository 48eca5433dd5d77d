//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_MS = 5   // Battery ADC read interval in milliseconds
	NUM_SAMPLES        = 40  // Number of samples to average per report
	REPORT_INTERVAL_MS = 200 // Report rate when no button changes
	DEBOUNCE_MS        = 20  // Button state must be stable this long

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)
	ADC_SHIFT        = 16 - ADC_RESOLUTION

	// Battery gauge thresholds for the voltage the host reports
	BATTERY_EMPTY_MV = 3300
	BATTERY_FULL_MV  = 4200

	// Button pins (active low, internal pull-ups)
	PIN_BUTTON_UP    = machine.D1
	PIN_BUTTON_DOWN  = machine.D2
	PIN_BUTTON_RESET = machine.D3

	// ADC pins
	PIN_BATTERY_ADC = machine.A0

	// OLED on the default I2C bus
	OLED_ADDRESS = 0x3C

	// Serial configuration
	// Report line: "unix_micros,adc,UDR\n", e.g. "1234567890123456,4095,101\n" = ~26 bytes.
	// Display line: "D,mmm,ss,m,mv\n" = ~16 bytes once per second.
	// 5 reports/sec plus button edges stays far below 115200 baud.
	UART_BAUD_RATE = 115200
)
