// Package storage holds the time-series sample store behind the catalog:
// a volatile in-memory backend with write-triggered retention and a durable
// SQLite backend with no retention at all.
package storage

import (
	"time"

	"telemon/internal/catalog"
)

// DataPoint is one entry in the time series of a (name, label-set key) pair.
// Params: none.
// Returns: timestamped value entity.
type DataPoint struct {
	Timestamp time.Time
	Value     float64
}

// Store appends and queries time-series sample data.
// The step argument of Read is accepted for interface compatibility but
// never used to downsample; both backends treat it as a no-op.
// Params: see each method.
// Returns: see each method.
type Store interface {
	// Write appends one data point for the (name, label-set key) series.
	Write(name string, kind catalog.Kind, labels []catalog.Label, value float64, ts time.Time) error
	// Read returns data points with start <= timestamp <= end ordered by time.
	Read(name string, start, end time.Time, labels []catalog.Label, step time.Duration) ([]DataPoint, error)
	// SeriesNames returns the distinct metric names known to the store.
	SeriesNames() ([]string, error)
	// Close releases backend resources.
	Close() error
}

// HostStatus is the best-available health reading extracted from one
// scrape cycle for a known host.
// Params: none.
// Returns: host status entity consumed by the dashboard layer.
type HostStatus struct {
	Status        string
	CheckedAt     time.Time
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
	NetworkRx     float64
	NetworkTx     float64
	Uptime        string
	DiskInfo      string
}
