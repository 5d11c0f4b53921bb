package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"hostpilot/internal/models"
)

// Probe produces one snapshot of host figures per call.
type Probe interface {
	Probe(ctx context.Context) (models.MetricsSnapshot, error)
}

type ProbeFunc func(ctx context.Context) (models.MetricsSnapshot, error)

func (f ProbeFunc) Probe(ctx context.Context) (models.MetricsSnapshot, error) { return f(ctx) }

type HostProbe struct {
	diskPath string
	detailed bool
	now      func() time.Time

	mu      sync.Mutex
	prevNet *netSample
}

type netSample struct {
	at   time.Time
	sent uint64
	recv uint64
}

func NewHostProbe(diskPath string, detailed bool) *HostProbe {
	if diskPath == "" {
		diskPath = "/"
	}
	return &HostProbe{diskPath: diskPath, detailed: detailed, now: time.Now}
}

func (h *HostProbe) Probe(ctx context.Context) (models.MetricsSnapshot, error) {
	snap := models.MetricsSnapshot{Timestamp: h.now().UTC(), NetworkInterfaces: []string{}}

	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return models.MetricsSnapshot{}, fmt.Errorf("cpu percent: %w", err)
	}
	if len(pct) == 0 {
		return models.MetricsSnapshot{}, fmt.Errorf("cpu percent: no samples")
	}
	snap.CPUUsagePercent = models.ClampPercent(pct[0])
	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		snap.CPUCoreCount = cores
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.MetricsSnapshot{}, fmt.Errorf("virtual memory: %w", err)
	}
	snap.MemoryTotalBytes = vm.Total
	snap.MemoryUsedBytes = vm.Used
	snap.MemoryPercent = models.ClampPercent(vm.UsedPercent)

	if du, err := disk.UsageWithContext(ctx, h.diskPath); err == nil {
		snap.DiskTotalBytes = du.Total
		snap.DiskUsedBytes = du.Used
		snap.DiskPercent = models.ClampPercent(du.UsedPercent)
	}

	if io, err := psnet.IOCountersWithContext(ctx, false); err == nil && len(io) > 0 {
		snap.NetworkRxBytesPerSec, snap.NetworkTxBytesPerSec = h.netRates(snap.Timestamp, io[0].BytesSent, io[0].BytesRecv)
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.Load1, snap.Load5, snap.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		snap.Hostname = info.Hostname
		snap.Platform = info.OS
		snap.UptimeSeconds = info.Uptime
	}

	if !h.detailed {
		return snap, nil
	}
	if ifaces, err := psnet.InterfacesWithContext(ctx); err == nil {
		for _, i := range ifaces {
			snap.NetworkInterfaces = append(snap.NetworkInterfaces, i.Name)
		}
	}
	if pids, err := process.PidsWithContext(ctx); err == nil {
		snap.ProcessCount = len(pids)
	}
	if temps, err := host.SensorsTemperaturesWithContext(ctx); err == nil || len(temps) > 0 {
		snap.CPUTemperatureC = cpuTemperature(temps)
	}
	return snap, nil
}

// netRates turns cumulative counters into per-second rates against the
// previous call. The first call reports zero.
func (h *HostProbe) netRates(at time.Time, sent, recv uint64) (rx, tx float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.prevNet
	h.prevNet = &netSample{at: at, sent: sent, recv: recv}
	if prev == nil {
		return 0, 0
	}
	secs := at.Sub(prev.at).Seconds()
	if secs <= 0 || sent < prev.sent || recv < prev.recv {
		return 0, 0
	}
	return float64(recv-prev.recv) / secs, float64(sent-prev.sent) / secs
}

var cpuSensorHints = []string{"package", "coretemp", "k10temp", "cpu", "tctl", "soc"}

// cpuTemperature picks the hottest sensor that looks like a CPU reading and
// falls back to the hottest sensor overall.
func cpuTemperature(temps []host.TemperatureStat) float64 {
	if len(temps) == 0 {
		return 0
	}
	sorted := make([]host.TemperatureStat, len(temps))
	copy(sorted, temps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Temperature > sorted[j].Temperature })
	for _, t := range sorted {
		key := strings.ToLower(t.SensorKey)
		for _, hint := range cpuSensorHints {
			if strings.Contains(key, hint) && t.Temperature > 0 {
				return t.Temperature
			}
		}
	}
	if sorted[0].Temperature > 0 {
		return sorted[0].Temperature
	}
	return 0
}
