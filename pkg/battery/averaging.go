package battery

import (
	"log"
	"time"

	"github.com/itohio/gotimer/pkg/config"
	"github.com/itohio/gotimer/pkg/protocol"
)

// NewAveragingConverter creates a converter that averages the ADC readings of
// the last windowSize reports before conversion. One Reading is produced per
// Report, so the output keeps the input cadence. The configuration is copied.
func NewAveragingConverter(cfg *config.BatteryConfig, windowSize int, bufSize int) Converter {
	if windowSize <= 0 {
		windowSize = 1 // No averaging if invalid
	}
	if bufSize <= 0 {
		bufSize = 100
	}
	c := *cfg

	return func(in <-chan protocol.Report) <-chan Reading {
		out := make(chan Reading, bufSize)

		go func() {
			defer close(out)

			window := make([]uint16, 0, windowSize)
			for report := range in {
				window = append(window, report.ADC)
				if len(window) > windowSize {
					window = window[1:] // Remove oldest
				}

				reading := Convert(report.Timestamp, averageADC(window), &c)

				select {
				case out <- reading:
				case <-time.After(time.Second):
					log.Printf("Averaging converter output channel full, dropping reading")
				}
			}
		}()

		return out
	}
}

// averageADC returns the rounded mean of the readings.
func averageADC(readings []uint16) uint16 {
	if len(readings) == 0 {
		return 0
	}

	var sum uint32
	for _, r := range readings {
		sum += uint32(r)
	}

	n := uint32(len(readings))
	return uint16((sum + n/2) / n) // Round to nearest
}
