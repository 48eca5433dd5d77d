package main

import (
	"context"
	"flag"
	"log"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gotimer/pkg/alarm"
	"github.com/itohio/gotimer/pkg/config"
	"github.com/itohio/gotimer/pkg/countdown"
	"github.com/itohio/gotimer/pkg/link"
	"github.com/itohio/gotimer/pkg/panel"
	"github.com/itohio/gotimer/pkg/timer"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Use mocked device instead of serial port")
		minutesFlag        = flag.Int("minutes", -1, "Preset minutes (0 = start finished, overrides config)")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of battery reports to average (0 = disabled, overrides config)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	if *minutesFlag >= 0 {
		applyMinutesFlag(cfg, *minutesFlag)
	}

	// Override average samples if provided via command line
	if *averageSamplesFlag >= 0 {
		cfg.Battery.AverageSamples = *averageSamplesFlag
	}

	// Create Fyne application
	application := app.NewWithID("com.itohio.gotimer")

	// Create main window
	window := application.NewWindow("OLED Timer")
	window.CenterOnScreen()

	// The countdown outlives device connections
	cd := countdown.New(&cfg.Timer)

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		countdown:  cd,
		alarm:      alarm.New(&cfg.Alarm),
		app:        application,
		window:     window,
		useMock:    *mockFlag,
	}

	state.panel = panel.New(&cfg.Display)
	state.panel.UpdateTimer(cd.Snapshot())

	cd.OnUpdate(func(snap timer.Snapshot) {
		onTimerUpdate(state, snap)
	})
	cd.OnFinish(func(snap timer.Snapshot) {
		onTimerFinish(state, snap)
	})

	ctx, cancel := context.WithCancel(context.Background())
	tickerDone := make(chan struct{})
	go func() {
		defer close(tickerDone)
		cd.Run(ctx, countdown.SystemClock)
	}()

	window.SetOnClosed(func() {
		cancel()
		<-tickerDone
		closeDeviceChain(state.detachChain())
	})

	toolbar := createToolbar(state)

	// Create border layout with toolbar at top and panel widget as content
	content := container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		state.panel,
	)

	window.SetContent(content)
	window.Resize(content.MinSize())
	window.ShowAndRun()
}

// applyMinutesFlag sets the preset from the command line. Zero starts finished.
func applyMinutesFlag(cfg *config.Config, minutes int) {
	if minutes > 999 {
		minutes = 999
	}
	cfg.Timer.PresetMinutes = uint16(minutes)
	cfg.Timer.StartFinished = minutes == 0
}

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	configPath string
	countdown  *countdown.Countdown
	alarm      *alarm.Alarm
	panel      *panel.PanelWidget
	app        fyne.App
	window     fyne.Window
	connectBtn *widget.Button
	upBtn      *widget.Button
	downBtn    *widget.Button
	restartBtn *widget.Button
	useMock    bool

	// Device chain (nil if not connected). Read from countdown callbacks,
	// so it is guarded.
	mu    sync.RWMutex
	chain *deviceChain

	// Low battery notifications fire once per transition
	lowMu      sync.Mutex
	lowBattery bool
}

// device returns the connected device, or nil.
func (s *appState) device() link.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.chain == nil {
		return nil
	}
	return s.chain.device
}

// detachChain removes and returns the current device chain.
func (s *appState) detachChain() *deviceChain {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.chain
	s.chain = nil
	return chain
}

// createToolbar creates the application toolbar with Connect, Settings and timer buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	// Connect button with icon
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	// Settings button with icon
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.downBtn = widget.NewButtonWithIcon("", theme.ContentRemoveIcon(), func() {
		state.countdown.Decrement()
	})
	state.upBtn = widget.NewButtonWithIcon("", theme.ContentAddIcon(), func() {
		state.countdown.Up()
	})
	state.restartBtn = widget.NewButtonWithIcon("", theme.MediaReplayIcon(), func() {
		state.countdown.Restart()
	})

	// Create toolbar with connection buttons on left and timer buttons aligned to the right
	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(connectBtn, settingsBtn),                      // left
		container.NewHBox(state.downBtn, state.upBtn, state.restartBtn), // right
		nil, // center (spacer)
	)
}
