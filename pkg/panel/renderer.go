package panel

import (
	"image/color"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/itohio/gotimer/pkg/battery"
	"github.com/itohio/gotimer/pkg/oled"
)

var (
	pixelOn   = color.RGBA{R: 120, G: 200, B: 255, A: 255} // Oled blue
	pixelOff  = color.RGBA{A: 255}
	gridColor = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	textColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	lineColor = color.RGBA{R: 255, G: 165, B: 0, A: 255}  // Orange
	lowColor  = color.RGBA{R: 200, G: 60, B: 60, A: 255} // Red
)

// panelRenderer renders the panel widget.
type panelRenderer struct {
	panel *PanelWidget

	background *canvas.Rectangle
	screen     *canvas.Raster

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *panelRenderer) MinSize() fyne.Size {
	scale := r.panel.scale()
	return fyne.NewSize(oled.Width*scale, oled.Height*scale+trendHeight)
}

// Layout arranges the widget components.
func (r *panelRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)

	screen := r.screenSize(size)
	r.screen.Move(fyne.NewPos((size.Width-screen.Width)/2, 0))
	r.screen.Resize(screen)

	if r.lastSize != size {
		r.lastSize = size
		r.panel.BaseWidget.Refresh()
	}
}

// screenSize fits the oled aspect ratio into the space above the trend.
func (r *panelRenderer) screenSize(size fyne.Size) fyne.Size {
	avail := size.Height - trendHeight
	w := size.Width
	h := w * oled.Height / oled.Width
	if h > avail && avail > 0 {
		h = avail
		w = h * oled.Width / oled.Height
	}
	return fyne.NewSize(w, h)
}

// Refresh updates the widget display.
func (r *panelRenderer) Refresh() {
	r.panel.mu.RLock()
	history := r.panel.displayHistory
	mvMin, mvMax := r.panel.mvMin, r.panel.mvMax
	xMin, xMax := r.panel.xMin, r.panel.xMax
	lowMV, lowKnown := r.panel.lowMV, r.panel.lowKnown
	r.panel.mu.RUnlock()

	r.screen.Refresh()

	size := r.panel.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	// Rebuild the trend, keeping background and screen
	r.objects = []fyne.CanvasObject{r.background, r.screen}

	marginLeft := float32(60.0)
	marginRight := float32(20.0)
	marginBottom := float32(20.0)

	plotX := marginLeft
	plotY := size.Height - trendHeight + 10
	plotWidth := size.Width - marginLeft - marginRight
	plotHeight := float32(trendHeight) - 10 - marginBottom
	if plotWidth <= 0 || plotHeight <= 0 {
		return
	}

	r.drawGrid(plotX, plotY, plotWidth, plotHeight, mvMin, mvMax, xMin, xMax)

	if lowKnown && float64(lowMV) > mvMin && float64(lowMV) < mvMax {
		y := valueY(float64(lowMV), mvMin, mvMax, plotY, plotHeight)
		line := canvas.NewLine(lowColor)
		line.Position1 = fyne.NewPos(plotX, y)
		line.Position2 = fyne.NewPos(plotX+plotWidth, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)
	}

	points := trendPoints(history, mvMin, mvMax, xMin, xMax, plotX, plotY, plotWidth, plotHeight)
	for i := range len(points) - 1 {
		line := canvas.NewLine(lineColor)
		line.Position1 = points[i]
		line.Position2 = points[i+1]
		line.StrokeWidth = 1.5
		r.objects = append(r.objects, line)
	}
}

// drawGrid draws horizontal millivolt lines and vertical time lines.
func (r *panelRenderer) drawGrid(plotX, plotY, plotWidth, plotHeight float32, mvMin, mvMax float64, xMin, xMax time.Time) {
	numHLines := 4
	for i := range numHLines + 1 {
		y := plotY + float32(i)*plotHeight/float32(numHLines)
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(plotX, y)
		line.Position2 = fyne.NewPos(plotX+plotWidth, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		value := mvMax - float64(i)*(mvMax-mvMin)/float64(numHLines)
		text := canvas.NewText(formatMillivolts(value), textColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(plotX-5, y-6))
		r.objects = append(r.objects, text)
	}

	numVLines := 6
	for i := range numVLines + 1 {
		x := plotX + float32(i)*plotWidth/float32(numVLines)
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(x, plotY)
		line.Position2 = fyne.NewPos(x, plotY+plotHeight)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		offset := time.Duration(float64(i) * float64(xMax.Sub(xMin)) / float64(numVLines))
		text := canvas.NewText(formatElapsed(offset), textColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, plotY+plotHeight+3))
		r.objects = append(r.objects, text)
	}
}

// pixel maps a raster pixel onto the oled frame.
func (r *panelRenderer) pixel(x, y, w, h int) color.Color {
	r.panel.mu.RLock()
	defer r.panel.mu.RUnlock()
	return pixelColor(&r.panel.frame, x, y, w, h, r.panel.cfg.Invert)
}

// Objects returns all canvas objects for rendering.
func (r *panelRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *panelRenderer) Destroy() {
	// Cleanup handled by Fyne
}

// pixelColor returns the colour of raster pixel x, y in a w by h raster
// showing the frame.
func pixelColor(f *oled.Frame, x, y, w, h int, invert bool) color.Color {
	if w <= 0 || h <= 0 {
		return pixelOff
	}
	on := f.Pixel(x*oled.Width/w, y*oled.Height/h)
	if on != invert {
		return pixelOn
	}
	return pixelOff
}

// trendPoints converts readings into plot coordinates.
func trendPoints(readings []battery.Reading, mvMin, mvMax float64, xMin, xMax time.Time, plotX, plotY, plotWidth, plotHeight float32) []fyne.Position {
	span := xMax.Sub(xMin).Seconds()
	if len(readings) < 2 || span <= 0 || mvMax <= mvMin {
		return nil
	}

	points := make([]fyne.Position, 0, len(readings))
	for _, rd := range readings {
		x := plotX + float32(rd.Timestamp.Sub(xMin).Seconds()/span)*plotWidth
		y := valueY(float64(rd.Millivolts), mvMin, mvMax, plotY, plotHeight)
		points = append(points, fyne.NewPos(x, y))
	}
	return points
}

// valueY maps a millivolt value onto the plot, larger values higher up.
func valueY(mv, mvMin, mvMax float64, plotY, plotHeight float32) float32 {
	return plotY + plotHeight - float32((mv-mvMin)/(mvMax-mvMin))*plotHeight
}

// Helper functions for formatting

func formatMillivolts(mv float64) string {
	return strconv.FormatFloat(mv, 'f', 0, 64) + " mV"
}

func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return strconv.FormatFloat(d.Seconds(), 'f', 0, 64) + "s"
	}
	return strconv.FormatFloat(d.Minutes(), 'f', 1, 64) + "m"
}
