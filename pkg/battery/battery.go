package battery

import (
	"log"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/gotimer/pkg/config"
	"github.com/itohio/gotimer/pkg/mathx"
	"github.com/itohio/gotimer/pkg/protocol"
)

// Reading is a battery measurement converted to physical units.
type Reading struct {
	Timestamp  time.Time
	Millivolts uint16
	Percent    float32 // State of charge estimate, 0-100
	Low        bool    // Below the configured low threshold
}

// Converter is a function type that converts a Report channel to a Reading channel.
type Converter func(in <-chan protocol.Report) <-chan Reading

// NewConverter creates a converter function that transforms every Report into a Reading.
// The configuration is copied; later changes to cfg do not affect the converter.
func NewConverter(cfg *config.BatteryConfig, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}
	c := *cfg

	return func(in <-chan protocol.Report) <-chan Reading {
		out := make(chan Reading, bufSize)

		go func() {
			defer close(out)

			for report := range in {
				reading := Convert(report.Timestamp, report.ADC, &c)

				select {
				case out <- reading:
				case <-time.After(time.Second):
					log.Printf("Battery converter output channel full, dropping reading")
				}
			}
		}()

		return out
	}
}

// Convert converts a raw ADC reading into a Reading using the configured
// divider and thresholds.
func Convert(ts time.Time, adc uint16, cfg *config.BatteryConfig) Reading {
	vout := adcToVoltage(adc, cfg.VRef)
	vin := voltageDivider(vout, cfg.R1, cfg.R2)
	mv := uint16(mathx.Clamp(math32.Round(float32(vin*1000)), 0, math32.MaxUint16))

	return Reading{
		Timestamp:  ts,
		Millivolts: mv,
		Percent:    Percent(mv, cfg.EmptyMV, cfg.FullMV),
		Low:        mv < cfg.LowMV,
	}
}

// Percent estimates the state of charge as a linear interpolation between
// the empty and full voltages, clamped to 0-100.
func Percent(mv, emptyMV, fullMV uint16) float32 {
	if fullMV <= emptyMV {
		return 0
	}
	p := float32(int32(mv)-int32(emptyMV)) / float32(fullMV-emptyMV) * 100
	return mathx.Clamp(p, 0, 100)
}

// adcToVoltage converts a 12-bit ADC reading to voltage.
func adcToVoltage(adc uint16, vref float64) float64 {
	return (float64(adc) / protocol.MaxADC) * vref
}

// voltageDivider calculates the input voltage from the measured output voltage.
// Formula: V_in = V_out * ((R1 + R2) / R2)
func voltageDivider(vout float64, r1, r2 float64) float64 {
	if r2 <= 0 {
		return vout
	}
	return vout * ((r1 + r2) / r2)
}
