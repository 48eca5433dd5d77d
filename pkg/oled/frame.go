// Package oled renders the timer onto a 128x64 monochrome framebuffer.
//
// The package only depends on packages TinyGo supports, so the firmware and
// the desktop mirror draw exactly the same pixels.
package oled

const (
	Width  = 128
	Height = 64
)

// Frame is a monochrome framebuffer in SSD1306 page layout: each byte holds
// eight vertical pixels, least significant bit on top.
type Frame struct {
	buf [Width * Height / 8]byte
}

// Set turns a pixel on or off. Coordinates outside the frame are ignored.
func (f *Frame) Set(x, y int, on bool) {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return
	}
	idx := x + (y/8)*Width
	bit := byte(1) << uint(y%8)
	if on {
		f.buf[idx] |= bit
	} else {
		f.buf[idx] &^= bit
	}
}

// Pixel reports whether a pixel is on. Coordinates outside the frame are off.
func (f *Frame) Pixel(x, y int) bool {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return false
	}
	return f.buf[x+(y/8)*Width]&(byte(1)<<uint(y%8)) != 0
}

// Clear turns every pixel off.
func (f *Frame) Clear() {
	f.buf = [Width * Height / 8]byte{}
}

// Pages returns the raw buffer, suitable for ssd1306.Device.SetBuffer.
// The slice aliases the frame.
func (f *Frame) Pages() []byte {
	return f.buf[:]
}

// FillRect sets a w by h rectangle with its top-left corner at x, y.
func (f *Frame) FillRect(x, y, w, h int, on bool) {
	for j := y; j < y+h; j++ {
		for i := x; i < x+w; i++ {
			f.Set(i, j, on)
		}
	}
}

// Rect draws the one pixel outline of a w by h rectangle.
func (f *Frame) Rect(x, y, w, h int) {
	f.FillRect(x, y, w, 1, true)
	f.FillRect(x, y+h-1, w, 1, true)
	f.FillRect(x, y, 1, h, true)
	f.FillRect(x+w-1, y, 1, h, true)
}
