package battery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeReadings(n int) []Reading {
	now := time.Now()
	readings := make([]Reading, n)
	for i := range readings {
		readings[i] = Reading{
			Timestamp:  now.Add(time.Duration(i) * time.Second),
			Millivolts: uint16(4200 - i),
		}
	}
	return readings
}

func TestDownsample_NoDownsampling(t *testing.T) {
	readings := makeReadings(3)

	result := Downsample(nil, readings, 10)
	require.Equal(t, 3, len(result))
	assert.Equal(t, readings, result)

	dst := make([]Reading, 0, 10)
	result = Downsample(dst, readings, 10)
	require.Equal(t, 3, len(result))
	assert.Equal(t, readings, result)
	// Should reuse dst
	assert.Equal(t, cap(dst), cap(result))
}

func TestDownsample_WithDownsampling(t *testing.T) {
	readings := makeReadings(100)

	dst := make([]Reading, 0, 20)
	result := Downsample(dst, readings, 10)
	require.Equal(t, 10, len(result))

	// Should always include first reading
	assert.Equal(t, readings[0], result[0])
	assert.Equal(t, readings[90], result[9])

	for i := 1; i < len(result); i++ {
		assert.True(t, result[i].Timestamp.After(result[i-1].Timestamp), "order preserved")
	}
}

func TestDownsample_DestinationReuse(t *testing.T) {
	dst := make([]Reading, 0, 10)

	first := Downsample(dst, makeReadings(2), 10)
	require.Len(t, first, 2)

	second := Downsample(first, makeReadings(3), 10)
	require.Len(t, second, 3)
	assert.Equal(t, cap(dst), cap(second))
}

func TestDownsample_EdgeCases(t *testing.T) {
	readings := makeReadings(5)

	assert.Empty(t, Downsample(nil, readings, 0))
	assert.Empty(t, Downsample(make([]Reading, 3), readings, -1))
	assert.Empty(t, Downsample(nil, nil, 10))

	result := Downsample(nil, readings, 5)
	assert.Equal(t, readings, result)
}
