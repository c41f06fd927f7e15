package sysmon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"

	"telemon/internal/catalog"
	"telemon/internal/storage"
)

func fakeProbes() Probes {
	return Probes{
		CPUPercent: func(context.Context) (float64, error) { return 42.5, nil },
		Memory: func(context.Context) (MemoryReading, error) {
			return MemoryReading{UsedBytes: 2048, TotalBytes: 4096, UsedPercent: 50}, nil
		},
		DiskPercent: func(context.Context, string) (float64, error) { return 73, nil },
		Uptime:      func(context.Context) (float64, error) { return 3600, nil },
		Network: func(context.Context) (NetworkReading, error) {
			return NetworkReading{RxBytes: 100, TxBytes: 200}, nil
		},
	}
}

func newTestCollector(t *testing.T, probes Probes) (*Collector, *catalog.Catalog, *storage.MemoryStore) {
	t.Helper()

	cat := catalog.New()
	store := storage.NewMemoryStore(time.Hour)
	collector, err := New(Config{
		Catalog:  cat,
		Store:    store,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Interval: time.Hour,
		Probes:   probes,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return collector, cat, store
}

func TestCollectWritesGauges(t *testing.T) {
	collector, cat, store := newTestCollector(t, fakeProbes())

	collector.collect(context.Background())

	plain := []struct {
		name string
		want float64
	}{
		{MetricCPUPercent, 42.5},
		{MetricMemoryPercent, 50},
		{MetricDiskPercent, 73},
		{MetricUptime, 3600},
		{MetricNetworkRx, 100},
		{MetricNetworkTx, 200},
	}
	for _, tc := range plain {
		sample, ok := cat.Get(tc.name, nil)
		if !ok || sample.Value != tc.want {
			t.Errorf("%s = %+v ok=%v, want value %v", tc.name, sample, ok, tc.want)
		}
	}

	used, ok := cat.Get(MetricMemoryBytes, []catalog.Label{{Name: "kind", Value: "used"}})
	if !ok || used.Value != 2048 {
		t.Errorf("memory used bytes = %+v ok=%v, want 2048", used, ok)
	}
	total, ok := cat.Get(MetricMemoryBytes, []catalog.Label{{Name: "kind", Value: "total"}})
	if !ok || total.Value != 4096 {
		t.Errorf("memory total bytes = %+v ok=%v, want 4096", total, ok)
	}

	points, err := store.Read(MetricCPUPercent, time.Now().Add(-time.Minute), time.Now().Add(time.Minute), nil, 0)
	if err != nil {
		t.Fatalf("store Read() error = %v", err)
	}
	if len(points) != 1 || points[0].Value != 42.5 {
		t.Errorf("expected one persisted CPU point, got %+v", points)
	}
}

func TestCollectProbeFailureIsIsolated(t *testing.T) {
	probes := fakeProbes()
	probes.CPUPercent = func(context.Context) (float64, error) {
		return 0, fmt.Errorf("no such device")
	}
	collector, cat, _ := newTestCollector(t, probes)

	collector.collect(context.Background())

	if _, ok := cat.Get(MetricCPUPercent, nil); ok {
		t.Errorf("failed probe must not record a sample")
	}
	if sample, ok := cat.Get(MetricUptime, nil); !ok || sample.Value != 3600 {
		t.Errorf("other probes must still record, got %+v ok=%v", sample, ok)
	}
}

func TestCollectorStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	collector, cat, _ := newTestCollector(t, fakeProbes())

	if err := collector.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := collector.Start(context.Background()); err == nil {
		t.Errorf("expected second Start to fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := cat.Get(MetricCPUPercent, nil); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("collector did not record a cycle in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	collector.Stop()
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatalf("expected error for empty config")
	}

	cat := catalog.New()
	_, err = New(Config{
		Catalog:  cat,
		Store:    storage.NewMemoryStore(time.Hour),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Interval: 0,
	})
	if err == nil {
		t.Fatalf("expected error for zero interval")
	}
}
