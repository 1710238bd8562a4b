package probes

import (
	"math"
	"testing"

	"github.com/gravito-framework/statbeacon-go/pkg/types"
	"github.com/shirou/gopsutil/v3/cpu"
)

func TestMemoryPercent(t *testing.T) {
	tests := []struct {
		name     string
		used     uint64
		total    uint64
		expected float64
	}{
		{"half used", 4 << 30, 8 << 30, 50},
		{"nothing used", 0, 8 << 30, 0},
		{"fully used", 8 << 30, 8 << 30, 100},
		{"zero total", 10, 0, 0},
		{"used above total is clamped", 9, 8, 100},
		{"fraction", 1, 3, 100.0 / 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MemoryPercent(tt.used, tt.total)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
			if got < 0 || got > 100 {
				t.Errorf("Expected value in [0, 100], got %v", got)
			}
		})
	}
}

func TestAverageTemperature(t *testing.T) {
	t.Run("mean of readings", func(t *testing.T) {
		avg, ok := AverageTemperature([]types.TemperatureReading{
			{Label: "core0", Temperature: 50},
			{Label: "core1", Temperature: 60},
			{Label: "nvme", Temperature: 70},
		})
		if !ok {
			t.Fatal("Expected temperature data")
		}
		if avg != 60 {
			t.Errorf("Expected 60, got %v", avg)
		}
	})

	t.Run("single reading", func(t *testing.T) {
		avg, ok := AverageTemperature([]types.TemperatureReading{{Temperature: 42.5}})
		if !ok || avg != 42.5 {
			t.Errorf("Expected 42.5, got %v (ok=%v)", avg, ok)
		}
	})

	t.Run("no readings", func(t *testing.T) {
		avg, ok := AverageTemperature(nil)
		if ok {
			t.Error("Expected no temperature data")
		}
		if math.IsNaN(avg) || avg != 0 {
			t.Errorf("Expected 0, got %v", avg)
		}
	})
}

func TestCPUPercent(t *testing.T) {
	tests := []struct {
		name     string
		prev     cpu.TimesStat
		cur      cpu.TimesStat
		expected float64
	}{
		{
			name:     "quarter busy",
			prev:     cpu.TimesStat{User: 10, Idle: 30},
			cur:      cpu.TimesStat{User: 20, Idle: 60},
			expected: 25,
		},
		{
			name:     "iowait counts as idle",
			prev:     cpu.TimesStat{System: 0, Idle: 0, Iowait: 0},
			cur:      cpu.TimesStat{System: 50, Idle: 25, Iowait: 25},
			expected: 50,
		},
		{
			name:     "no elapsed time",
			prev:     cpu.TimesStat{User: 10, Idle: 10},
			cur:      cpu.TimesStat{User: 10, Idle: 10},
			expected: 0,
		},
		{
			name:     "counter reset",
			prev:     cpu.TimesStat{User: 100, Idle: 100},
			cur:      cpu.TimesStat{User: 1, Idle: 1},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CPUPercent(tt.prev, tt.cur)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
