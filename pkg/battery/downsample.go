package battery

// Downsample reduces readings to at most maxPoints using simple decimation,
// for drawing a battery trend.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
// If len(readings) <= maxPoints, copies all readings.
func Downsample(dst []Reading, readings []Reading, maxPoints int) []Reading {
	if maxPoints <= 0 {
		return dst[:0]
	}

	if len(readings) <= maxPoints {
		if cap(dst) >= len(readings) {
			dst = dst[:len(readings)]
			copy(dst, readings)
			return dst
		}
		result := make([]Reading, len(readings))
		copy(result, readings)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0] // Reset length but keep capacity
	} else {
		dst = make([]Reading, 0, maxPoints)
	}

	step := float64(len(readings)) / float64(maxPoints)

	for i := range maxPoints {
		idx := int(float64(i) * step)
		if idx < len(readings) {
			dst = append(dst, readings[idx])
		}
	}

	return dst
}
