package main

import (
	"fmt"
	"log"

	"fyne.io/fyne/v2/dialog"
	"github.com/itohio/gotimer/pkg/battery"
	"github.com/itohio/gotimer/pkg/link"
)

const chainBufferSize = 500

// deviceChain tracks the components of a device connection for graceful shutdown.
type deviceChain struct {
	device      link.Device
	buttonsDone chan struct{} // Closed when the button goroutine exits
	voltageDone chan struct{} // Closed when the voltage goroutine exits
	trendDone   chan struct{} // Closed when the trend goroutine exits
}

// closeDeviceChain gracefully closes the device chain.
// Waits for all goroutines to finish and channels to drain.
func closeDeviceChain(chain *deviceChain) {
	if chain == nil {
		return
	}

	// Close device - this will close the reports channel
	if chain.device != nil {
		if err := chain.device.Close(); err != nil {
			log.Printf("Error closing device: %v", err)
		}
	}

	for _, done := range []chan struct{}{chain.buttonsDone, chain.voltageDone, chain.trendDone} {
		if done != nil {
			<-done
		}
	}
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if dev := state.device(); dev != nil && dev.IsConnected() {
		disconnect(state)
		return
	}
	connect(state)
}

// disconnect closes the current device chain.
func disconnect(state *appState) {
	closeDeviceChain(state.detachChain())
	if state.useMock {
		log.Printf("Disconnected from mocked device")
	} else {
		log.Printf("Disconnected from serial port")
	}
}

// connect opens a device and starts the report pipeline.
func connect(state *appState) {
	// A device that went away on its own leaves its finished chain behind
	closeDeviceChain(state.detachChain())

	var device link.Device
	if state.useMock {
		device = link.NewMock(&state.cfg.Mock, &state.cfg.Battery)
		log.Printf("Using mocked device")
	} else {
		device = link.New(state.cfg.Serial.Port, link.DefaultBaudRate, link.DefaultBufferSize)
	}

	if err := device.Connect(); err != nil {
		if state.useMock {
			dialog.ShowError(fmt.Errorf("failed to connect to mocked device: %w", err), state.window)
		} else {
			dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		}
		return
	}
	if state.useMock {
		log.Printf("Connected to mocked device")
	} else {
		log.Printf("Connected to serial port: %s", state.cfg.Serial.Port)
	}

	state.panel.Clear()
	chain := startDeviceChain(state, device)

	state.mu.Lock()
	state.chain = chain
	state.mu.Unlock()

	// Show the current time right away instead of waiting for the next tick
	if err := device.Show(state.countdown.Snapshot()); err != nil {
		log.Printf("Failed to update device display: %v", err)
	}
}

// startDeviceChain wires device reports into the countdown and the panel.
//
//	reports -> tee -> buttons -> countdown
//	               -> battery converter -> tee -> countdown voltage
//	                                           -> panel trend
func startDeviceChain(state *appState, device link.Device) *deviceChain {
	chain := &deviceChain{
		device:      device,
		buttonsDone: make(chan struct{}),
		voltageDone: make(chan struct{}),
		trendDone:   make(chan struct{}),
	}

	forButtons, forBattery := tee(device.Reports(), chainBufferSize)

	// Chain converters: averaging converter when average_samples > 0, plain otherwise
	batteryCfg := state.cfg.Battery
	var convert battery.Converter
	if batteryCfg.AverageSamples > 0 {
		convert = battery.NewAveragingConverter(&batteryCfg, batteryCfg.AverageSamples, chainBufferSize)
	} else {
		convert = battery.NewConverter(&batteryCfg, chainBufferSize)
	}
	forVoltage, forTrend := tee(convert(forBattery), chainBufferSize)

	go func() {
		defer close(chain.buttonsDone)
		state.countdown.ProcessReports(forButtons)
	}()

	go func() {
		defer close(chain.voltageDone)
		state.countdown.ProcessReadings(forVoltage)
	}()

	go func() {
		defer close(chain.trendDone)
		for r := range forTrend {
			onReading(state, r, batteryCfg.LowMV)
		}
	}()

	return chain
}

// tee duplicates every value of in onto two channels. Both outputs close when
// in closes, and both must be drained.
func tee[T any](in <-chan T, bufSize int) (<-chan T, <-chan T) {
	a := make(chan T, bufSize)
	b := make(chan T, bufSize)

	go func() {
		defer close(a)
		defer close(b)
		for v := range in {
			a <- v
			b <- v
		}
	}()

	return a, b
}
