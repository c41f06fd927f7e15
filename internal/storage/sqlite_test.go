package storage

import (
	"path/filepath"
	"testing"
	"time"

	"telemon/internal/catalog"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "telemon.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := s.Close(); closeErr != nil {
			t.Errorf("Close() error: %v", closeErr)
		}
	})
	return s
}

func TestSQLiteStoreWriteRead(t *testing.T) {
	s := newTestSQLiteStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	labels := []catalog.Label{{Name: "core", Value: "0"}}
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		if err := s.Write("cpu_percent", catalog.KindGauge, labels, float64(i)*1.5, ts); err != nil {
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
	for i, point := range points {
		if point.Value != float64(i)*1.5 {
			t.Fatalf("point[%d] value: got=%v want=%v", i, point.Value, float64(i)*1.5)
		}
		if !point.Timestamp.Equal(base.Add(time.Duration(i) * time.Minute)) {
			t.Fatalf("point[%d] timestamp round-trip failed: got=%v", i, point.Timestamp)
		}
	}
}

func TestSQLiteStoreReadIgnoresLabelFilter(t *testing.T) {
	s := newTestSQLiteStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Write("up", catalog.KindGauge, []catalog.Label{{Name: "job", Value: "agents"}}, 1, base); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	points, err := s.Read("up", base.Add(-time.Minute), base.Add(time.Minute), []catalog.Label{{Name: "job", Value: "other"}}, 0)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("durable backend ignores label filter: got=%d want=1", len(points))
	}
}

func TestSQLiteStoreNoRetention(t *testing.T) {
	s := newTestSQLiteStore(t)
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Write("ancient", catalog.KindGauge, nil, 1, old); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	points, err := s.Read("ancient", old.Add(-time.Hour), old.Add(time.Hour), nil, 0)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("durable backend never evicts: got=%d want=1", len(points))
	}
}

func TestSQLiteStoreSeriesNames(t *testing.T) {
	s := newTestSQLiteStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for _, name := range []string{"zeta", "alpha", "alpha"} {
		if err := s.Write(name, catalog.KindGauge, nil, 1, base); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}

	names, err := s.SeriesNames()
	if err != nil {
		t.Fatalf("SeriesNames() error: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("unexpected series names: %v", names)
	}
}

func TestSQLiteStoreHostStatusUpsert(t *testing.T) {
	s := newTestSQLiteStore(t)
	checked := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	first := HostStatus{
		Status:        "up",
		CheckedAt:     checked,
		CPUPercent:    12.5,
		MemoryPercent: 40,
		DiskPercent:   70,
		NetworkRx:     1024,
		NetworkTx:     2048,
		Uptime:        "86400",
	}
	if err := s.UpdateHostStatus(7, first); err != nil {
		t.Fatalf("UpdateHostStatus() error: %v", err)
	}

	got, found, err := s.HostStatusByID(7)
	if err != nil {
		t.Fatalf("HostStatusByID() error: %v", err)
	}
	if !found {
		t.Fatalf("expected host row after upsert")
	}
	if got.Status != "up" || got.CPUPercent != 12.5 || got.Uptime != "86400" {
		t.Fatalf("unexpected host status: %+v", got)
	}
	if !got.CheckedAt.Equal(checked) {
		t.Fatalf("check time round-trip failed: got=%v", got.CheckedAt)
	}

	// Second update overwrites the same row.
	second := first
	second.Status = "down"
	second.CPUPercent = 0
	if err := s.UpdateHostStatus(7, second); err != nil {
		t.Fatalf("UpdateHostStatus() second call error: %v", err)
	}
	got, found, err = s.HostStatusByID(7)
	if err != nil {
		t.Fatalf("HostStatusByID() error: %v", err)
	}
	if !found || got.Status != "down" {
		t.Fatalf("expected overwritten status, got: %+v", got)
	}
}

func TestSQLiteStoreHostStatusMissing(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, found, err := s.HostStatusByID(99)
	if err != nil {
		t.Fatalf("HostStatusByID() error: %v", err)
	}
	if found {
		t.Fatalf("expected no host row")
	}
}
