package battery

import (
	"testing"
	"time"

	"github.com/itohio/gotimer/pkg/config"
	"github.com/itohio/gotimer/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBatteryConfig() *config.BatteryConfig {
	return &config.BatteryConfig{
		R1:      10000,
		R2:      10000,
		VRef:    3.3,
		EmptyMV: 3300,
		FullMV:  4200,
		LowMV:   3500,
	}
}

func TestAdcToVoltage(t *testing.T) {
	assert.InDelta(t, 0.0, adcToVoltage(0, 3.3), 1e-9)
	assert.InDelta(t, 3.3, adcToVoltage(4095, 3.3), 1e-9)
	assert.InDelta(t, 1.65, adcToVoltage(2047, 3.3), 0.001)
}

func TestVoltageDivider(t *testing.T) {
	assert.InDelta(t, 4.0, voltageDivider(2.0, 10000, 10000), 1e-9)
	assert.InDelta(t, 6.0, voltageDivider(2.0, 20000, 10000), 1e-9)
	// A missing bottom resistor means no divider.
	assert.InDelta(t, 2.0, voltageDivider(2.0, 10000, 0), 1e-9)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name string
		mv   uint16
		want float32
	}{
		{"empty", 3300, 0},
		{"below empty", 3000, 0},
		{"full", 4200, 100},
		{"above full", 4400, 100},
		{"half", 3750, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percent(tt.mv, 3300, 4200), 0.01)
		})
	}

	assert.Equal(t, float32(0), Percent(3700, 4200, 3300), "inverted thresholds")
}

func TestConvert(t *testing.T) {
	cfg := testBatteryConfig()
	now := time.Now()

	// 2482 counts -> 2.0 V at the ADC -> 4.0 V battery
	r := Convert(now, 2482, cfg)
	assert.Equal(t, now, r.Timestamp)
	assert.InDelta(t, 4000, int(r.Millivolts), 2)
	assert.InDelta(t, 77.8, r.Percent, 0.5)
	assert.False(t, r.Low)

	// 1700 counts -> ~1.37 V -> ~2.74 V battery: empty and low
	r = Convert(now, 1700, cfg)
	assert.InDelta(t, 2740, int(r.Millivolts), 2)
	assert.Equal(t, float32(0), r.Percent)
	assert.True(t, r.Low)

	r = Convert(now, 0, cfg)
	assert.Equal(t, uint16(0), r.Millivolts)
	assert.True(t, r.Low)
}

func TestNewConverter(t *testing.T) {
	cfg := testBatteryConfig()
	converter := NewConverter(cfg, 10)

	in := make(chan protocol.Report, 10)
	out := converter(in)

	// The converter works on its own copy of the configuration.
	cfg.LowMV = 5000

	now := time.Now()
	in <- protocol.Report{Timestamp: now, ADC: 2482}
	in <- protocol.Report{Timestamp: now.Add(time.Second), ADC: 2300, Buttons: protocol.Buttons{Up: true}}
	close(in)

	var readings []Reading
	for r := range out {
		readings = append(readings, r)
	}

	require.Len(t, readings, 2)
	assert.Equal(t, now, readings[0].Timestamp)
	assert.False(t, readings[0].Low)
	assert.Greater(t, readings[0].Millivolts, readings[1].Millivolts)
}
