package snapshot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"wfemitter/internal/config"
)

// Collect builds one collector-shaped payload from the local machine. The
// result has the same shape as an agent collector snapshot: required
// collection_timestamp and internalHostname, cpu*/mem* gauges, a generic
// metrics array, per-disk ioStats, a process list, and load averages.
// Params: ctx for cancellation; cfg optional hostname override.
// Returns: payload document or scrape error.
func Collect(ctx context.Context, cfg config.SnapshotConfig) (map[string]any, error) {
	hostname := strings.TrimSpace(cfg.Hostname)
	if hostname == "" {
		resolved, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("resolve hostname: %w", err)
		}
		hostname = resolved
	}

	now := time.Now()
	payload := map[string]any{
		"collection_timestamp": float64(now.UnixNano()) / float64(time.Second),
		"internalHostname":     hostname,
	}

	if err := addCPUGauges(ctx, payload); err != nil {
		return nil, err
	}
	if err := addMemGauges(ctx, payload); err != nil {
		return nil, err
	}
	if err := addLoadAverages(ctx, payload); err != nil {
		return nil, err
	}
	if err := addIOStats(ctx, payload); err != nil {
		return nil, err
	}
	if err := addProcesses(ctx, payload, hostname); err != nil {
		return nil, err
	}
	if err := addGenericMetrics(ctx, payload, hostname, now); err != nil {
		return nil, err
	}

	return payload, nil
}

// addCPUGauges adds cpu* top-level gauges as percentages of total cpu time.
// Params: ctx for cancellation; payload destination document.
// Returns: scrape error.
func addCPUGauges(ctx context.Context, payload map[string]any) error {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return fmt.Errorf("read cpu times: %w", err)
	}
	if len(times) == 0 {
		return fmt.Errorf("read cpu times: empty result")
	}

	t := times[0]
	total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal + t.Guest + t.GuestNice
	if total <= 0 {
		return fmt.Errorf("read cpu times: zero total")
	}

	payload["cpuUser"] = t.User / total * 100
	payload["cpuSystem"] = t.System / total * 100
	payload["cpuIdle"] = t.Idle / total * 100
	payload["cpuWait"] = t.Iowait / total * 100
	payload["cpuStolen"] = t.Steal / total * 100
	payload["cpuGuest"] = t.Guest / total * 100
	return nil
}

// addMemGauges adds mem* top-level gauges in bytes plus usable percent.
// Params: ctx for cancellation; payload destination document.
// Returns: scrape error.
func addMemGauges(ctx context.Context, payload map[string]any) error {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("read virtual memory: %w", err)
	}
	swap, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("read swap memory: %w", err)
	}

	payload["memPhysTotal"] = float64(vm.Total)
	payload["memPhysUsed"] = float64(vm.Used)
	payload["memPhysFree"] = float64(vm.Free)
	payload["memPhysUsable"] = float64(vm.Available)
	if vm.Total > 0 {
		payload["memPhysPctUsable"] = float64(vm.Available) / float64(vm.Total) * 100
	}
	payload["memSwapTotal"] = float64(swap.Total)
	payload["memSwapUsed"] = float64(swap.Used)
	payload["memSwapFree"] = float64(swap.Free)
	return nil
}

// addLoadAverages adds the six well-known system.load.* keys; normalized
// variants divide by the logical cpu count.
// Params: ctx for cancellation; payload destination document.
// Returns: scrape error.
func addLoadAverages(ctx context.Context, payload map[string]any) error {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return fmt.Errorf("read load averages: %w", err)
	}
	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return fmt.Errorf("count cpus: %w", err)
	}
	if cpus <= 0 {
		cpus = 1
	}

	payload["system.load.1"] = avg.Load1
	payload["system.load.5"] = avg.Load5
	payload["system.load.15"] = avg.Load15
	payload["system.load.norm.1"] = avg.Load1 / float64(cpus)
	payload["system.load.norm.5"] = avg.Load5 / float64(cpus)
	payload["system.load.norm.15"] = avg.Load15 / float64(cpus)
	return nil
}

// addIOStats adds per-disk counter stats under ioStats.
// Params: ctx for cancellation; payload destination document.
// Returns: scrape error.
func addIOStats(ctx context.Context, payload map[string]any) error {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return fmt.Errorf("read disk io counters: %w", err)
	}

	ioStats := make(map[string]any, len(counters))
	for name, c := range counters {
		ioStats[name] = map[string]any{
			"reads":       float64(c.ReadCount),
			"writes":      float64(c.WriteCount),
			"read_bytes":  float64(c.ReadBytes),
			"write_bytes": float64(c.WriteBytes),
			"read_time":   float64(c.ReadTime),
			"write_time":  float64(c.WriteTime),
		}
	}
	payload["ioStats"] = ioStats
	return nil
}

// addProcesses adds the process pid list under processes.processes.
// Params: ctx for cancellation; payload destination document; hostname local host.
// Returns: scrape error.
func addProcesses(ctx context.Context, payload map[string]any, hostname string) error {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	list := make([]any, 0, len(pids))
	for _, pid := range pids {
		list = append(list, float64(pid))
	}
	payload["processes"] = map[string]any{
		"host":      hostname,
		"processes": list,
	}
	return nil
}

// addGenericMetrics adds the metrics tuple array with one uptime sample.
// Params: ctx for cancellation; payload destination document; hostname local
// host; now collection time.
// Returns: scrape error.
func addGenericMetrics(ctx context.Context, payload map[string]any, hostname string, now time.Time) error {
	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		return fmt.Errorf("read uptime: %w", err)
	}

	payload["metrics"] = []any{
		[]any{
			"system.uptime",
			float64(now.Unix()),
			float64(uptime),
			map[string]any{"hostname": hostname},
		},
	}
	return nil
}
