// Package sysmon samples host system readings on a fixed delay and records
// them as gauges in the metric catalog and the sample store.
package sysmon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"

	"telemon/internal/catalog"
	"telemon/internal/storage"
)

// Self-collected gauge names.
const (
	MetricCPUPercent    = "system_cpu_usage_percent"
	MetricMemoryPercent = "system_memory_usage_percent"
	MetricMemoryBytes   = "system_memory_bytes"
	MetricDiskPercent   = "system_disk_usage_percent"
	MetricUptime        = "system_uptime_seconds"
	MetricNetworkRx     = "system_network_rx_bytes"
	MetricNetworkTx     = "system_network_tx_bytes"
)

// MemoryReading is one virtual-memory probe result.
// Params: none.
// Returns: memory reading entity.
type MemoryReading struct {
	UsedBytes   float64
	TotalBytes  float64
	UsedPercent float64
}

// NetworkReading is one cumulative interface-counter probe result.
// Params: none.
// Returns: network reading entity.
type NetworkReading struct {
	RxBytes float64
	TxBytes float64
}

// Probes are the host readers used each cycle. Every field is replaceable
// in tests; zero fields fall back to the gopsutil readers.
// Params: see fields.
// Returns: probe set.
type Probes struct {
	CPUPercent  func(ctx context.Context) (float64, error)
	Memory      func(ctx context.Context) (MemoryReading, error)
	DiskPercent func(ctx context.Context, path string) (float64, error)
	Uptime      func(ctx context.Context) (float64, error)
	Network     func(ctx context.Context) (NetworkReading, error)
}

// fillDefaults replaces nil probes with the gopsutil readers.
// Params: none.
// Returns: none; mutates receiver in place.
func (p *Probes) fillDefaults() {
	if p.CPUPercent == nil {
		p.CPUPercent = func(ctx context.Context) (float64, error) {
			percents, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil {
				return 0, fmt.Errorf("read CPU percent: %w", err)
			}
			if len(percents) == 0 {
				return 0, fmt.Errorf("read CPU percent: empty result")
			}
			return percents[0], nil
		}
	}
	if p.Memory == nil {
		p.Memory = func(ctx context.Context) (MemoryReading, error) {
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return MemoryReading{}, fmt.Errorf("read virtual memory: %w", err)
			}
			return MemoryReading{
				UsedBytes:   float64(vm.Used),
				TotalBytes:  float64(vm.Total),
				UsedPercent: vm.UsedPercent,
			}, nil
		}
	}
	if p.DiskPercent == nil {
		p.DiskPercent = func(ctx context.Context, path string) (float64, error) {
			usage, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				return 0, fmt.Errorf("read disk usage %s: %w", path, err)
			}
			return usage.UsedPercent, nil
		}
	}
	if p.Uptime == nil {
		p.Uptime = func(ctx context.Context) (float64, error) {
			uptime, err := host.UptimeWithContext(ctx)
			if err != nil {
				return 0, fmt.Errorf("read host uptime: %w", err)
			}
			return float64(uptime), nil
		}
	}
	if p.Network == nil {
		p.Network = func(ctx context.Context) (NetworkReading, error) {
			counters, err := net.IOCountersWithContext(ctx, false)
			if err != nil {
				return NetworkReading{}, fmt.Errorf("read network counters: %w", err)
			}
			if len(counters) == 0 {
				return NetworkReading{}, fmt.Errorf("read network counters: empty result")
			}
			return NetworkReading{
				RxBytes: float64(counters[0].BytesRecv),
				TxBytes: float64(counters[0].BytesSent),
			}, nil
		}
	}
}

// Config wires the collector to its collaborators.
// Params: catalog/store/logger required; Interval > 0; DiskPath defaults to "/".
// Returns: collector configuration.
type Config struct {
	Catalog  *catalog.Catalog
	Store    storage.Store
	Logger   *slog.Logger
	Interval time.Duration
	DiskPath string
	Probes   Probes
}

// Collector runs the self-collection loop.
// Params: none.
// Returns: collector instance.
type Collector struct {
	catalog  *catalog.Catalog
	store    storage.Store
	logger   *slog.Logger
	interval time.Duration
	diskPath string
	probes   Probes

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// New creates a collector and registers its gauges.
// Params: cfg collector configuration.
// Returns: collector instance or configuration error.
func New(cfg Config) (*Collector, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0")
	}
	if cfg.DiskPath == "" {
		cfg.DiskPath = "/"
	}
	cfg.Probes.fillDefaults()

	gauges := []struct {
		name string
		help string
	}{
		{MetricCPUPercent, "Host CPU utilization percent"},
		{MetricMemoryPercent, "Host memory utilization percent"},
		{MetricMemoryBytes, "Host memory bytes by kind"},
		{MetricDiskPercent, "Host disk utilization percent"},
		{MetricUptime, "Host uptime in seconds"},
		{MetricNetworkRx, "Cumulative bytes received on all interfaces"},
		{MetricNetworkTx, "Cumulative bytes sent on all interfaces"},
	}
	for _, gauge := range gauges {
		if _, err := cfg.Catalog.Register(gauge.name, catalog.KindGauge, gauge.help, nil); err != nil {
			return nil, fmt.Errorf("register %s: %w", gauge.name, err)
		}
	}

	return &Collector{
		catalog:  cfg.Catalog,
		store:    cfg.Store,
		logger:   cfg.Logger,
		interval: cfg.Interval,
		diskPath: cfg.DiskPath,
		probes:   cfg.Probes,
	}, nil
}

// Start launches the collection loop.
// Params: ctx collector lifecycle context.
// Returns: error when already started.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("collector already started")
	}
	c.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(loopCtx)
	}()

	c.logger.Info("self collector started", slog.Duration("interval", c.interval))
	return nil
}

// Stop cancels the loop and waits for it to join.
// Params: none.
// Returns: none.
func (c *Collector) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// run is the fixed-delay loop; probe time shifts the next cycle.
// Params: ctx loop lifecycle context.
// Returns: none.
func (c *Collector) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

// collect runs every probe once; each probe fails independently.
// Params: ctx loop lifecycle context.
// Returns: none.
func (c *Collector) collect(ctx context.Context) {
	now := time.Now()

	if value, err := c.probes.CPUPercent(ctx); err != nil {
		c.logger.Warn("cpu probe", slog.String("error", err.Error()))
	} else {
		c.record(MetricCPUPercent, value, nil, now)
	}

	if reading, err := c.probes.Memory(ctx); err != nil {
		c.logger.Warn("memory probe", slog.String("error", err.Error()))
	} else {
		c.record(MetricMemoryPercent, reading.UsedPercent, nil, now)
		c.record(MetricMemoryBytes, reading.UsedBytes, []catalog.Label{{Name: "kind", Value: "used"}}, now)
		c.record(MetricMemoryBytes, reading.TotalBytes, []catalog.Label{{Name: "kind", Value: "total"}}, now)
	}

	if value, err := c.probes.DiskPercent(ctx, c.diskPath); err != nil {
		c.logger.Warn("disk probe", slog.String("error", err.Error()))
	} else {
		c.record(MetricDiskPercent, value, nil, now)
	}

	if value, err := c.probes.Uptime(ctx); err != nil {
		c.logger.Warn("uptime probe", slog.String("error", err.Error()))
	} else {
		c.record(MetricUptime, value, nil, now)
	}

	if reading, err := c.probes.Network(ctx); err != nil {
		c.logger.Warn("network probe", slog.String("error", err.Error()))
	} else {
		c.record(MetricNetworkRx, reading.RxBytes, nil, now)
		c.record(MetricNetworkTx, reading.TxBytes, nil, now)
	}
}

// record writes one gauge reading to the catalog and the store.
// Params: name gauge name; value reading; labels sample labels; now cycle time.
// Returns: none.
func (c *Collector) record(name string, value float64, labels []catalog.Label, now time.Time) {
	if err := c.catalog.Set(name, value, labels); err != nil {
		c.logger.Error("record gauge", slog.String("metric", name), slog.String("error", err.Error()))
		return
	}
	if err := c.store.Write(name, catalog.KindGauge, labels, value, now); err != nil {
		c.logger.Warn("persist gauge", slog.String("metric", name), slog.String("error", err.Error()))
	}
}
