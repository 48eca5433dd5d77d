package oled

import (
	"strconv"

	"github.com/chewxy/math32"
	"github.com/itohio/gotimer/pkg/mathx"
	"github.com/itohio/gotimer/pkg/timer"
)

// Layout of the timer screen.
const (
	gaugeX, gaugeY = 0, 0
	gaugeW, gaugeH = 20, 10
	gaugeFillMax   = gaugeW - 4

	digitY     = 20
	digitW     = 18
	digitH     = 36
	digitT     = 4 // segment thickness
	digitGap   = 4
	colonX     = 70
	secondsX   = 80
	doneScale  = 6
	doneY      = 22
	glyphW     = 3
	glyphH     = 5
	glyphSpace = 1
)

// Seven-segment masks, bit 0 is segment a, bit 6 is segment g.
var segments = [10]uint8{0x3F, 0x06, 0x5B, 0x4F, 0x66, 0x6D, 0x7D, 0x07, 0x7F, 0x6F}

// 3x5 glyphs, one row per byte, most significant of the low three bits on the left.
var glyphs = map[rune][glyphH]uint8{
	'0': {7, 5, 5, 5, 7},
	'1': {2, 6, 2, 2, 7},
	'2': {7, 1, 7, 4, 7},
	'3': {7, 1, 7, 1, 7},
	'4': {5, 5, 7, 1, 1},
	'5': {7, 4, 7, 1, 7},
	'6': {7, 4, 7, 5, 7},
	'7': {7, 1, 1, 1, 1},
	'8': {7, 5, 7, 5, 7},
	'9': {7, 5, 7, 1, 7},
	'm': {0, 6, 7, 5, 5},
	'V': {5, 5, 5, 5, 2},
	'D': {6, 5, 5, 5, 6},
	'O': {7, 5, 5, 5, 7},
	'N': {5, 7, 7, 5, 5},
	'E': {7, 4, 7, 4, 7},
}

// Render draws the timer screen: battery gauge and millivolts on top, the
// remaining time as MMM:SS below, or DONE once the timer has finished.
// percent is the battery state of charge, 0-100.
func Render(f *Frame, snap timer.Snapshot, percent float32) {
	f.Clear()

	drawGauge(f, percent)

	mv := strconv.FormatUint(uint64(snap.Voltage), 10) + "mV"
	DrawText(f, Width-TextWidth(mv, 1), gaugeY+2, mv, 1)

	if snap.IsFinished() {
		DrawText(f, (Width-TextWidth("DONE", doneScale))/2, doneY, "DONE", doneScale)
		return
	}

	minutes := mathx.Clamp(snap.Minutes, 0, timer.MaxMinutes)
	x := 4
	for _, d := range [3]uint16{minutes / 100, minutes / 10 % 10, minutes % 10} {
		DrawDigit(f, x, digitY, int(d))
		x += digitW + digitGap
	}

	f.FillRect(colonX+1, digitY+8, digitT, digitT, true)
	f.FillRect(colonX+1, digitY+digitH-8-digitT, digitT, digitT, true)

	seconds := mathx.Clamp(snap.Seconds, 0, timer.MaxSeconds)
	DrawDigit(f, secondsX, digitY, int(seconds/10))
	DrawDigit(f, secondsX+digitW+digitGap, digitY, int(seconds%10))
}

// drawGauge draws a battery outline with a nub and a fill proportional to percent.
func drawGauge(f *Frame, percent float32) {
	f.Rect(gaugeX, gaugeY, gaugeW, gaugeH)
	f.FillRect(gaugeX+gaugeW, gaugeY+3, 2, gaugeH-6, true)

	fill := int(math32.Round(mathx.Clamp(percent, 0, 100) / 100 * gaugeFillMax))
	f.FillRect(gaugeX+2, gaugeY+2, fill, gaugeH-4, true)
}

// DrawDigit draws a seven-segment digit with its top-left corner at x, y.
// Values outside 0-9 are ignored.
func DrawDigit(f *Frame, x, y, d int) {
	if d < 0 || d > 9 {
		return
	}
	mask := segments[d]
	half := digitH / 2

	if mask&(1<<0) != 0 { // a
		f.FillRect(x, y, digitW, digitT, true)
	}
	if mask&(1<<1) != 0 { // b
		f.FillRect(x+digitW-digitT, y, digitT, half, true)
	}
	if mask&(1<<2) != 0 { // c
		f.FillRect(x+digitW-digitT, y+half, digitT, digitH-half, true)
	}
	if mask&(1<<3) != 0 { // d
		f.FillRect(x, y+digitH-digitT, digitW, digitT, true)
	}
	if mask&(1<<4) != 0 { // e
		f.FillRect(x, y+half, digitT, digitH-half, true)
	}
	if mask&(1<<5) != 0 { // f
		f.FillRect(x, y, digitT, half, true)
	}
	if mask&(1<<6) != 0 { // g
		f.FillRect(x, y+half-digitT/2, digitW, digitT, true)
	}
}

// DrawText draws s in the 3x5 font, each font pixel scaled to a square of
// scale pixels. Unknown characters leave a blank cell.
func DrawText(f *Frame, x, y int, s string, scale int) {
	if scale < 1 {
		scale = 1
	}
	for _, r := range s {
		g, ok := glyphs[r]
		if ok {
			for row := 0; row < glyphH; row++ {
				for col := 0; col < glyphW; col++ {
					if g[row]&(1<<uint(glyphW-1-col)) != 0 {
						f.FillRect(x+col*scale, y+row*scale, scale, scale, true)
					}
				}
			}
		}
		x += (glyphW + glyphSpace) * scale
	}
}

// TextWidth returns the width of s in pixels, without trailing spacing.
func TextWidth(s string, scale int) int {
	if scale < 1 {
		scale = 1
	}
	n := len([]rune(s))
	if n == 0 {
		return 0
	}
	return (n*(glyphW+glyphSpace) - glyphSpace) * scale
}
