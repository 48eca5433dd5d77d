package main

import (
	"fmt"
	"log"
	"time"

	"fyne.io/fyne/v2"
	"github.com/itohio/gotimer/pkg/battery"
	"github.com/itohio/gotimer/pkg/timer"
)

// onTimerUpdate pushes a new snapshot to the panel and the device.
// It runs on countdown goroutines, so the panel update is scheduled with fyne.Do().
func onTimerUpdate(state *appState, snap timer.Snapshot) {
	fyne.Do(func() {
		state.panel.UpdateTimer(snap)
	})

	dev := state.device()
	if dev == nil || !dev.IsConnected() {
		return
	}
	if err := dev.Show(snap); err != nil {
		log.Printf("Failed to update device display: %v", err)
	}
}

// onTimerFinish notifies the user once per finished countdown.
func onTimerFinish(state *appState, snap timer.Snapshot) {
	log.Printf("Countdown finished at %s (battery %d mV)", state.countdown.FinishedAt().Format(time.TimeOnly), snap.Voltage)
	state.app.SendNotification(fyne.NewNotification("OLED Timer", "Countdown finished"))
	if err := state.alarm.Play(); err != nil {
		log.Printf("Failed to play alarm: %v", err)
	}
}

// onReading adds a battery reading to the panel trend and raises a
// notification when the battery first drops below the low threshold.
// lowMV is captured when the chain starts; battery settings restart the chain.
func onReading(state *appState, r battery.Reading, lowMV uint16) {
	fyne.Do(func() {
		state.panel.AddReading(r, lowMV)
	})

	if !lowTransition(state, r.Low) {
		return
	}
	log.Printf("Battery low: %d mV", r.Millivolts)
	state.app.SendNotification(fyne.NewNotification("OLED Timer", fmt.Sprintf("Battery low: %d mV", r.Millivolts)))
}

// lowTransition records the low battery flag and reports whether it just became set.
func lowTransition(state *appState, low bool) bool {
	state.lowMu.Lock()
	defer state.lowMu.Unlock()
	became := low && !state.lowBattery
	state.lowBattery = low
	return became
}
