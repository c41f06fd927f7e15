package storage

import (
	"testing"
	"time"

	"telemon/internal/catalog"
)

func TestMemoryStoreWriteRead(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		if err := s.Write("cpu_percent", catalog.KindGauge, nil, float64(i), ts); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}

	points, err := s.Read("cpu_percent", base, base.Add(time.Hour), nil, 0)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("unexpected point count: got=%d want=3", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].Timestamp.Before(points[i-1].Timestamp) {
			t.Fatalf("points not time-ordered at index %d", i)
		}
	}
}

func TestMemoryStoreReadRangeInclusive(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	if err := s.Write("x", catalog.KindGauge, nil, 1, base); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := s.Write("x", catalog.KindGauge, nil, 2, base.Add(time.Minute)); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	points, err := s.Read("x", base, base, nil, 0)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("boundary timestamps must be inclusive: got=%d want=1", len(points))
	}
}

func TestMemoryStoreWriteTriggeredRetention(t *testing.T) {
	retention := time.Hour
	s := NewMemoryStore(retention)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	// Old point, then let it age past the window with no further writes.
	if err := s.Write("mem_percent", catalog.KindGauge, nil, 10, base); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	now = base.Add(2 * time.Hour)

	points, err := s.Read("mem_percent", base.Add(-time.Hour), now, nil, 0)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("aged point must survive until next write: got=%d want=1", len(points))
	}

	// The next write evicts the aged point.
	if err := s.Write("mem_percent", catalog.KindGauge, nil, 20, now); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	points, err = s.Read("mem_percent", base.Add(-time.Hour), now, nil, 0)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected only the fresh point after eviction: got=%d", len(points))
	}
	if points[0].Value != 20 {
		t.Fatalf("wrong surviving point: got=%v want=20", points[0].Value)
	}
}

func TestMemoryStoreEvictionIsPerKey(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	hot := []catalog.Label{{Name: "core", Value: "0"}}
	cold := []catalog.Label{{Name: "core", Value: "1"}}

	if err := s.Write("cpu", catalog.KindGauge, hot, 1, base); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := s.Write("cpu", catalog.KindGauge, cold, 2, base); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	now = base.Add(2 * time.Hour)
	if err := s.Write("cpu", catalog.KindGauge, hot, 3, now); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	points, err := s.Read("cpu", base.Add(-time.Hour), now, nil, 0)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	// Hot key evicted its old point; cold key keeps its stale one.
	if len(points) != 2 {
		t.Fatalf("unexpected point count: got=%d want=2", len(points))
	}
}

func TestMemoryStoreLabelFilterYieldsEmpty(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	labels := []catalog.Label{{Name: "job", Value: "agents"}}
	if err := s.Write("up", catalog.KindGauge, labels, 1, base); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	points, err := s.Read("up", base.Add(-time.Minute), base.Add(time.Minute), labels, 0)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("non-empty label filter must yield empty result, got %d points", len(points))
	}
}

func TestMemoryStoreSeriesNames(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	for _, name := range []string{"b_metric", "a_metric", "a_metric"} {
		if err := s.Write(name, catalog.KindGauge, nil, 1, base); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}

	names, err := s.SeriesNames()
	if err != nil {
		t.Fatalf("SeriesNames() error: %v", err)
	}
	if len(names) != 2 || names[0] != "a_metric" || names[1] != "b_metric" {
		t.Fatalf("unexpected series names: %v", names)
	}
}
