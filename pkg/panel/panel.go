// Package panel mirrors the device screen in a Fyne window and plots the
// battery trend below it.
package panel

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gotimer/pkg/battery"
	"github.com/itohio/gotimer/pkg/config"
	"github.com/itohio/gotimer/pkg/oled"
	"github.com/itohio/gotimer/pkg/timer"
)

const (
	defaultScale      = 4
	maxHistory        = 3600 // one hour at one reading per second
	maxDisplayPoints  = 300
	minTrendWindow    = time.Minute
	trendHeight       = 120
	trendMarginMV     = 10
	defaultTrendMinMV = 3000
	defaultTrendMaxMV = 4300
)

// PanelWidget is a custom Fyne widget that shows the oled frame and the battery trend.
type PanelWidget struct {
	widget.BaseWidget

	cfg *config.DisplayConfig

	// Data (protected by mu)
	mu       sync.RWMutex
	frame    oled.Frame
	snap     timer.Snapshot
	percent  float32
	history  []battery.Reading
	lowMV    uint16
	lowKnown bool

	// Display buffer (reused for downsampling)
	displayHistory []battery.Reading

	// Auto-scaling
	mvMin, mvMax float64
	xMin, xMax   time.Time
}

// New creates a new PanelWidget instance.
func New(cfg *config.DisplayConfig) *PanelWidget {
	if cfg == nil {
		cfg = &config.Default().Display
	}
	p := &PanelWidget{
		cfg:            cfg,
		history:        make([]battery.Reading, 0, 128),
		displayHistory: make([]battery.Reading, 0, maxDisplayPoints),
	}
	p.updateAutoScale()
	oled.Render(&p.frame, p.snap, p.percent)
	p.ExtendBaseWidget(p)
	return p
}

// UpdateTimer redraws the mirrored screen for a new timer snapshot.
// This should be called from the countdown callback using fyne.Do().
func (p *PanelWidget) UpdateTimer(snap timer.Snapshot) {
	p.mu.Lock()
	p.snap = snap
	oled.Render(&p.frame, p.snap, p.percent)
	p.mu.Unlock()

	p.Refresh()
}

// AddReading appends a battery reading to the trend and updates the gauge.
// This should be called from the reading pipeline using fyne.Do().
func (p *PanelWidget) AddReading(r battery.Reading, lowMV uint16) {
	p.mu.Lock()
	p.percent = r.Percent
	p.lowMV = lowMV
	p.lowKnown = true

	p.history = append(p.history, r)
	if len(p.history) > maxHistory {
		p.history = p.history[len(p.history)-maxHistory:]
	}
	p.displayHistory = battery.Downsample(p.displayHistory, p.history, maxDisplayPoints)
	p.updateAutoScale()

	oled.Render(&p.frame, p.snap, p.percent)
	p.mu.Unlock()

	p.Refresh()
}

// Clear drops the battery trend, e.g. after reconnecting to another device.
func (p *PanelWidget) Clear() {
	p.mu.Lock()
	p.history = p.history[:0]
	p.displayHistory = p.displayHistory[:0]
	p.percent = 0
	p.lowKnown = false
	p.updateAutoScale()
	oled.Render(&p.frame, p.snap, p.percent)
	p.mu.Unlock()

	p.Refresh()
}

// updateAutoScale calculates the millivolt and time range of the trend.
func (p *PanelWidget) updateAutoScale() {
	if len(p.displayHistory) == 0 {
		p.mvMin = defaultTrendMinMV
		p.mvMax = defaultTrendMaxMV
		p.xMin = time.Now()
		p.xMax = p.xMin.Add(minTrendWindow)
		return
	}

	p.mvMin = float64(p.displayHistory[0].Millivolts)
	p.mvMax = p.mvMin
	for _, r := range p.displayHistory {
		mv := float64(r.Millivolts)
		if mv < p.mvMin {
			p.mvMin = mv
		}
		if mv > p.mvMax {
			p.mvMax = mv
		}
	}

	p.mvMin -= trendMarginMV
	p.mvMax += trendMarginMV

	p.xMin = p.displayHistory[0].Timestamp
	p.xMax = p.displayHistory[len(p.displayHistory)-1].Timestamp
	// Ensure minimum window
	if p.xMax.Sub(p.xMin) < minTrendWindow {
		p.xMax = p.xMin.Add(minTrendWindow)
	}
}

// scale returns the configured pixel scale for the mirrored screen.
func (p *PanelWidget) scale() float32 {
	if p.cfg.Scale <= 0 {
		return defaultScale
	}
	return float32(p.cfg.Scale)
}

// CreateRenderer creates the widget renderer.
func (p *PanelWidget) CreateRenderer() fyne.WidgetRenderer {
	background := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	r := &panelRenderer{
		panel:      p,
		background: background,
	}
	r.screen = canvas.NewRasterWithPixels(r.pixel)
	r.screen.ScaleMode = canvas.ImageScalePixels
	r.objects = []fyne.CanvasObject{background, r.screen}
	return r
}
