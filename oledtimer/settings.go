package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gotimer/pkg/alarm"
	"github.com/itohio/gotimer/pkg/config"
	"github.com/itohio/gotimer/pkg/link"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createTimerTab(state),
		createBatteryTab(state),
		createDisplayTab(state),
		createAlarmTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(500, 400))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(500, 400))
	d.Show()
}

// saveConfig applies edit to a copy of the configuration, then validates and
// writes it, reporting failures in a dialog. The live configuration only
// changes when both succeed.
func saveConfig(state *appState, edit func(c *config.Config)) bool {
	next, err := editConfig(state.cfg, edit)
	if err != nil {
		dialog.ShowError(fmt.Errorf("invalid settings: %w", err), state.window)
		return false
	}
	if err := next.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return false
	}
	*state.cfg = *next
	return true
}

// editConfig returns a validated copy of cfg with edit applied. cfg itself is
// never modified.
func editConfig(cfg *config.Config, edit func(c *config.Config)) (*config.Config, error) {
	next := *cfg
	edit(&next)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}

// reconnect restarts the device chain if a device is connected, picking up new settings.
func reconnect(state *appState) {
	if dev := state.device(); dev == nil || !dev.IsConnected() {
		return
	}
	disconnect(state)
	connect(state)
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	// Get available serial ports
	ports, err := link.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	// Add current port if not in list
	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
		},
		OnSubmit: func() {
			if portSelect.Selected == "" {
				return
			}
			selectedPort := portMap[portSelect.Selected]
			if selectedPort == "" {
				selectedPort = portSelect.Selected // Fallback to selected text
			}

			portChanged := state.cfg.Serial.Port != selectedPort
			if !saveConfig(state, func(c *config.Config) { c.Serial.Port = selectedPort }) {
				return
			}

			// If port changed and device was connected, restart the device chain
			if portChanged && !state.useMock {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createTimerTab creates the Timer configuration tab.
func createTimerTab(state *appState) *container.TabItem {
	presetEntry := widget.NewEntry()
	presetEntry.SetText(strconv.Itoa(int(state.cfg.Timer.PresetMinutes)))

	stepEntry := widget.NewEntry()
	stepEntry.SetText(strconv.Itoa(int(state.cfg.Timer.StepMinutes)))

	startFinishedCheck := widget.NewCheck("", nil)
	startFinishedCheck.SetChecked(state.cfg.Timer.StartFinished)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Preset (minutes)", Widget: presetEntry},
			{Text: "Button Step (minutes)", Widget: stepEntry},
			{Text: "Start Finished", Widget: startFinishedCheck},
		},
		OnSubmit: func() {
			ok := saveConfig(state, func(c *config.Config) {
				if preset, err := strconv.ParseUint(presetEntry.Text, 10, 16); err == nil {
					c.Timer.PresetMinutes = uint16(preset)
				}
				if step, err := strconv.ParseUint(stepEntry.Text, 10, 16); err == nil && step > 0 {
					c.Timer.StepMinutes = uint16(step)
				}
				c.Timer.StartFinished = startFinishedCheck.Checked
			})
			if !ok {
				return
			}
			// Applies to the next restart and button press
			state.countdown.SetPreset(state.cfg.Timer.PresetMinutes)
			state.countdown.SetStep(state.cfg.Timer.StepMinutes)
		},
	}

	return container.NewTabItem("Timer", form)
}

// createBatteryTab creates the Battery configuration tab.
func createBatteryTab(state *appState) *container.TabItem {
	r1Entry := widget.NewEntry()
	r1Entry.SetText(fmt.Sprintf("%.0f", state.cfg.Battery.R1))

	r2Entry := widget.NewEntry()
	r2Entry.SetText(fmt.Sprintf("%.0f", state.cfg.Battery.R2))

	vrefEntry := widget.NewEntry()
	vrefEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Battery.VRef))

	emptyEntry := widget.NewEntry()
	emptyEntry.SetText(strconv.Itoa(int(state.cfg.Battery.EmptyMV)))

	fullEntry := widget.NewEntry()
	fullEntry.SetText(strconv.Itoa(int(state.cfg.Battery.FullMV)))

	lowEntry := widget.NewEntry()
	lowEntry.SetText(strconv.Itoa(int(state.cfg.Battery.LowMV)))

	averageSamplesEntry := widget.NewEntry()
	averageSamplesEntry.SetText(strconv.Itoa(state.cfg.Battery.AverageSamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "R1 (Ω)", Widget: r1Entry},
			{Text: "R2 (Ω)", Widget: r2Entry},
			{Text: "VRef (V)", Widget: vrefEntry},
			{Text: "Empty (mV)", Widget: emptyEntry},
			{Text: "Full (mV)", Widget: fullEntry},
			{Text: "Low Warning (mV)", Widget: lowEntry},
			{Text: "Average Samples (0=disabled)", Widget: averageSamplesEntry},
		},
		OnSubmit: func() {
			ok := saveConfig(state, func(c *config.Config) {
				if r1, err := strconv.ParseFloat(r1Entry.Text, 64); err == nil {
					c.Battery.R1 = r1
				}
				if r2, err := strconv.ParseFloat(r2Entry.Text, 64); err == nil {
					c.Battery.R2 = r2
				}
				if vref, err := strconv.ParseFloat(vrefEntry.Text, 64); err == nil {
					c.Battery.VRef = vref
				}
				if mv, err := strconv.ParseUint(emptyEntry.Text, 10, 16); err == nil {
					c.Battery.EmptyMV = uint16(mv)
				}
				if mv, err := strconv.ParseUint(fullEntry.Text, 10, 16); err == nil {
					c.Battery.FullMV = uint16(mv)
				}
				if mv, err := strconv.ParseUint(lowEntry.Text, 10, 16); err == nil {
					c.Battery.LowMV = uint16(mv)
				}
				if avg, err := strconv.Atoi(averageSamplesEntry.Text); err == nil {
					c.Battery.AverageSamples = avg
				}
			})
			if !ok {
				return
			}
			// Converters read the configuration when the chain starts
			reconnect(state)
		},
	}

	return container.NewTabItem("Battery", form)
}

// createDisplayTab creates the Display configuration tab.
func createDisplayTab(state *appState) *container.TabItem {
	scaleEntry := widget.NewEntry()
	scaleEntry.SetText(strconv.Itoa(state.cfg.Display.Scale))

	invertCheck := widget.NewCheck("", nil)
	invertCheck.SetChecked(state.cfg.Display.Invert)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Scale (pixels)", Widget: scaleEntry},
			{Text: "Invert", Widget: invertCheck},
		},
		OnSubmit: func() {
			ok := saveConfig(state, func(c *config.Config) {
				if scale, err := strconv.Atoi(scaleEntry.Text); err == nil && scale > 0 {
					c.Display.Scale = scale
				}
				c.Display.Invert = invertCheck.Checked
			})
			if !ok {
				return
			}
			state.panel.Refresh()
		},
	}

	return container.NewTabItem("Display", form)
}

// createMockTab creates the Mock device configuration tab.
func createMockTab(state *appState) *container.TabItem {
	startEntry := widget.NewEntry()
	startEntry.SetText(strconv.Itoa(int(state.cfg.Mock.StartMV)))

	drainEntry := widget.NewEntry()
	drainEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.DrainMVPerSecond))

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.NoiseMV))

	reportRateEntry := widget.NewEntry()
	reportRateEntry.SetText(state.cfg.Mock.ReportRate.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Start Voltage (mV)", Widget: startEntry},
			{Text: "Drain (mV/s)", Widget: drainEntry},
			{Text: "Noise (mV)", Widget: noiseEntry},
			{Text: "Report Rate", Widget: reportRateEntry},
		},
		OnSubmit: func() {
			ok := saveConfig(state, func(c *config.Config) {
				if mv, err := strconv.ParseUint(startEntry.Text, 10, 16); err == nil {
					c.Mock.StartMV = uint16(mv)
				}
				if drain, err := strconv.ParseFloat(drainEntry.Text, 64); err == nil {
					c.Mock.DrainMVPerSecond = drain
				}
				if noise, err := strconv.ParseFloat(noiseEntry.Text, 64); err == nil {
					c.Mock.NoiseMV = noise
				}
				if rate, err := time.ParseDuration(reportRateEntry.Text); err == nil {
					c.Mock.ReportRate = rate
				}
			})
			if !ok {
				return
			}
			if state.useMock {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Mock", form)
}

// createAlarmTab creates the Alarm configuration tab.
func createAlarmTab(state *appState) *container.TabItem {
	enabledCheck := widget.NewCheck("", nil)
	enabledCheck.SetChecked(state.cfg.Alarm.Enabled)

	volumeEntry := widget.NewEntry()
	volumeEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Alarm.Volume))

	soundFileEntry := widget.NewEntry()
	soundFileEntry.SetPlaceHolder("generated tone")
	soundFileEntry.SetText(state.cfg.Alarm.SoundFile)

	beepsEntry := widget.NewEntry()
	beepsEntry.SetText(strconv.Itoa(state.cfg.Alarm.Beeps))

	toneEntry := widget.NewEntry()
	toneEntry.SetText(fmt.Sprintf("%.0f", state.cfg.Alarm.ToneHz))

	beepDurationEntry := widget.NewEntry()
	beepDurationEntry.SetText(state.cfg.Alarm.BeepDuration.String())

	apply := func(c *config.Config) {
		c.Alarm.Enabled = enabledCheck.Checked
		if vol, err := strconv.ParseFloat(volumeEntry.Text, 64); err == nil {
			c.Alarm.Volume = vol
		}
		c.Alarm.SoundFile = soundFileEntry.Text
		if beeps, err := strconv.Atoi(beepsEntry.Text); err == nil {
			c.Alarm.Beeps = beeps
		}
		if hz, err := strconv.ParseFloat(toneEntry.Text, 64); err == nil {
			c.Alarm.ToneHz = hz
		}
		if d, err := time.ParseDuration(beepDurationEntry.Text); err == nil {
			c.Alarm.BeepDuration = d
		}
	}

	testBtn := widget.NewButton("Test", func() {
		next, err := editConfig(state.cfg, apply)
		if err != nil {
			dialog.ShowError(fmt.Errorf("invalid settings: %w", err), state.window)
			return
		}
		if err := alarm.New(&next.Alarm).Play(); err != nil {
			dialog.ShowError(fmt.Errorf("failed to play alarm: %w", err), state.window)
		}
	})

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Enabled", Widget: enabledCheck},
			{Text: "Volume (log2 gain)", Widget: volumeEntry},
			{Text: "Sound File (WAV)", Widget: soundFileEntry},
			{Text: "Beeps", Widget: beepsEntry},
			{Text: "Tone (Hz)", Widget: toneEntry},
			{Text: "Beep Duration", Widget: beepDurationEntry},
			{Text: "", Widget: testBtn},
		},
		OnSubmit: func() {
			if !saveConfig(state, apply) {
				return
			}
			state.alarm.SetConfig(state.cfg.Alarm)
		},
	}

	return container.NewTabItem("Alarm", form)
}
