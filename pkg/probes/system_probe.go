package probes

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/gravito-framework/statbeacon-go/pkg/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// primeInterval is the window of the first CPU delta
const primeInterval = 1 * time.Second

// GoSystemProbe implements SystemProbe using gopsutil.
// It is driven by a single loop and holds no locks.
type GoSystemProbe struct {
	lastCPUTimes cpu.TimesStat
	hasBaseline  bool
	cores        int
	now          func() time.Time
}

// NewGoSystemProbe takes a CPU baseline and waits one priming interval so
// the first Refresh reports a meaningful utilization.
func NewGoSystemProbe(ctx context.Context) (*GoSystemProbe, error) {
	probe := &GoSystemProbe{
		cores: runtime.NumCPU(),
		now:   time.Now,
	}

	if c, err := cpu.CountsWithContext(ctx, true); err == nil && c > 0 {
		probe.cores = c
	}

	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read cpu times: %w", err)
	}
	if len(times) > 0 {
		probe.lastCPUTimes = times[0]
		probe.hasBaseline = true
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(primeInterval):
	}

	return probe, nil
}

// Refresh samples CPU, memory and temperature sensors
func (p *GoSystemProbe) Refresh(ctx context.Context) (*types.Sample, error) {
	cpuPercent, err := p.sampleCPU(ctx)
	if err != nil {
		return nil, err
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory: %w", err)
	}

	sensors := readSensors(ctx)
	avg, ok := AverageTemperature(sensors)

	return &types.Sample{
		CPUPercent:     cpuPercent,
		MemoryPercent:  MemoryPercent(vm.Used, vm.Total),
		Temperature:    avg,
		HasTemperature: ok,
		Cores:          p.cores,
		Sensors:        sensors,
		Timestamp:      types.FormatTime(p.now()),
	}, nil
}

// sampleCPU returns aggregate utilization since the previous call
func (p *GoSystemProbe) sampleCPU(ctx context.Context) (float64, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("failed to read cpu times: %w", err)
	}
	if len(times) == 0 {
		return 0, errors.New("no cpu times reported")
	}

	current := times[0]
	var percent float64
	if p.hasBaseline {
		percent = CPUPercent(p.lastCPUTimes, current)
	}
	p.lastCPUTimes = current
	p.hasBaseline = true
	return percent, nil
}

// CPUPercent computes busy time between two aggregate snapshots, 0-100
func CPUPercent(prev, cur cpu.TimesStat) float64 {
	deltaTotal := cur.Total() - prev.Total()
	deltaIdle := (cur.Idle + cur.Iowait) - (prev.Idle + prev.Iowait)
	if deltaTotal <= 0 {
		return 0
	}
	return clamp(100*(deltaTotal-deltaIdle)/deltaTotal, 0, 100)
}

// readSensors lists hardware temperature sensors. gopsutil may return
// partial results alongside warnings; whatever was read is kept.
func readSensors(ctx context.Context) []types.TemperatureReading {
	temps, _ := host.SensorsTemperaturesWithContext(ctx)

	readings := make([]types.TemperatureReading, 0, len(temps))
	for _, t := range temps {
		readings = append(readings, types.TemperatureReading{
			Label:       t.SensorKey,
			Temperature: t.Temperature,
		})
	}
	return readings
}

// Ensure GoSystemProbe implements SystemProbe
var _ SystemProbe = (*GoSystemProbe)(nil)
