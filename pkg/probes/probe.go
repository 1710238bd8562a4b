// Package probes provides the metrics provider used by the beacon loop.
package probes

import (
	"context"
	"math"

	"github.com/gravito-framework/statbeacon-go/pkg/types"
)

// SystemProbe refreshes system-wide metrics and returns a new Sample
type SystemProbe interface {
	Refresh(ctx context.Context) (*types.Sample, error)
}

// MemoryPercent returns used/total*100, clamped to [0, 100].
// A zero total yields 0.
func MemoryPercent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return clamp(float64(used)/float64(total)*100, 0, 100)
}

// AverageTemperature returns the arithmetic mean of the readings.
// ok is false when there are no readings; the mean is then 0, never NaN.
func AverageTemperature(readings []types.TemperatureReading) (avg float64, ok bool) {
	if len(readings) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range readings {
		sum += r.Temperature
	}
	avg = sum / float64(len(readings))
	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		return 0, false
	}
	return avg, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
